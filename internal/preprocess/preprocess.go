// Package preprocess normalizes check images before extraction: decode,
// bound the dimensions, convert to grayscale and stretch contrast, then
// locate the check on the page.
package preprocess

import (
	"bytes"
	"image"
	"image/png"
	"net/http"

	// Registered decoders. Scanners commonly emit TIFF; phones emit JPEG.
	_ "image/jpeg"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/model"
)

// Result is a normalized page image.
type Result struct {
	Gray         *image.Gray
	OriginalSize image.Point
	Scale        float64
	Format       string
}

// Preprocessor applies the configured normalization steps.
type Preprocessor struct {
	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int
	minAspect float64
	maxAspect float64
}

// New creates a Preprocessor from pipeline settings.
func New(cfg config.PipelineConfig) *Preprocessor {
	return &Preprocessor{
		maxWidth:  cfg.MaxImageWidth,
		maxHeight: cfg.MaxImageHeight,
		minWidth:  cfg.MinCheckWidth,
		minHeight: cfg.MinCheckHeight,
		minAspect: cfg.MinAspectRatio,
		maxAspect: cfg.MaxAspectRatio,
	}
}

// DetectFormat returns the registered image format of data ("png", "jpeg",
// "tiff", "webp") and its dimensions without decoding the pixels.
func DetectFormat(data []byte) (string, image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", image.Config{}, unsupported(err)
	}
	return format, cfg, nil
}

// Prepare decodes data and returns the normalized grayscale page.
func (p *Preprocessor) Prepare(data []byte) (*Result, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported(err)
	}

	b := src.Bounds()
	res := &Result{OriginalSize: b.Size(), Scale: 1, Format: format}

	img := src
	if scale := fitScale(b.Dx(), b.Dy(), p.maxWidth, p.maxHeight); scale < 1 {
		w := max(1, int(float64(b.Dx())*scale))
		h := max(1, int(float64(b.Dy())*scale))
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		img = dst
		res.Scale = scale
	}

	res.Gray = Grayscale(img)
	StretchContrast(res.Gray)

	zap.L().Debug("preprocess: image normalized",
		zap.String("format", format),
		zap.Int("width", res.Gray.Bounds().Dx()),
		zap.Int("height", res.Gray.Bounds().Dy()),
		zap.Float64("scale", res.Scale),
	)
	return res, nil
}

// fitScale returns the factor that fits w x h inside maxW x maxH, or 1 when
// it already fits or no bound is set.
func fitScale(w, h, maxW, maxH int) float64 {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		scale = min(scale, float64(maxH)/float64(h))
	}
	return scale
}

// Grayscale converts img to 8-bit luminance with its origin at (0,0).
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// StretchContrast linearly maps the 1st..99th luminance percentiles onto the
// full 0..255 range in place. Flat images are left unchanged.
func StretchContrast(g *image.Gray) {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return
	}
	lo := percentile(hist[:], total/100)
	hi := percentile(hist[:], total-total/100-1)
	if hi <= lo {
		return
	}

	var lut [256]uint8
	span := float64(hi - lo)
	for i := range lut {
		switch {
		case i <= lo:
			lut[i] = 0
		case i >= hi:
			lut[i] = 255
		default:
			lut[i] = uint8(float64(i-lo)*255/span + 0.5)
		}
	}
	for i, v := range g.Pix {
		g.Pix[i] = lut[v]
	}
}

// percentile returns the luminance value at which the cumulative count first
// exceeds rank.
func percentile(hist []int, rank int) int {
	seen := 0
	for v, n := range hist {
		seen += n
		if seen > rank {
			return v
		}
	}
	return len(hist) - 1
}

// EncodePNG serializes g for the extraction engines.
func EncodePNG(g image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, g); err != nil {
		return nil, eris.Wrap(err, "preprocess: encode png")
	}
	return buf.Bytes(), nil
}

func unsupported(err error) error {
	return &model.ProcessingError{
		Code:       model.CodeUnsupportedFormat,
		StatusCode: http.StatusUnsupportedMediaType,
		Message:    "preprocess: decode image",
		Err:        err,
	}
}
