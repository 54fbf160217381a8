package preprocess

import (
	"image"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
)

const (
	// inkThreshold is the luminance below which a pixel counts as content.
	inkThreshold = 200
	// minInkFraction of a row or column must be ink for it to bound content.
	minInkFraction = 0.005
	// paddingFraction of the content box is added on every side.
	paddingFraction = 0.02
)

// Segment is one check located on a page.
type Segment struct {
	Image  *image.Gray
	Bounds image.Rectangle
	// Whole is true when the content box was rejected and the full page used.
	Whole bool
}

// Segment locates the check on g. It tries the content bounding box first
// and falls back to the whole page; whichever passes the size and aspect
// filters is returned. Neither passing yields NO_SEGMENTS_FOUND.
func (p *Preprocessor) Segment(g *image.Gray) ([]Segment, error) {
	page := g.Bounds()
	if box, ok := contentBox(g); ok && p.usable(box) {
		return []Segment{{Image: crop(g, box), Bounds: box}}, nil
	}
	if p.usable(page) {
		zap.L().Debug("preprocess: using whole page as segment",
			zap.Int("width", page.Dx()), zap.Int("height", page.Dy()))
		return []Segment{{Image: g, Bounds: page, Whole: true}}, nil
	}
	return nil, &model.ProcessingError{
		Code:       model.CodeNoSegmentsFound,
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "preprocess: no check-shaped region found",
	}
}

func (p *Preprocessor) usable(r image.Rectangle) bool {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 || w < p.minWidth || h < p.minHeight {
		return false
	}
	aspect := float64(w) / float64(h)
	if p.minAspect > 0 && aspect < p.minAspect {
		return false
	}
	if p.maxAspect > 0 && aspect > p.maxAspect {
		return false
	}
	return true
}

// contentBox returns the padded bounding box of rows and columns carrying
// enough ink, clipped to the image.
func contentBox(g *image.Gray) (image.Rectangle, bool) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.Rectangle{}, false
	}

	rows := make([]int, h)
	cols := make([]int, w)
	for y := 0; y < h; y++ {
		line := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range line {
			if v < inkThreshold {
				rows[y]++
				cols[x]++
			}
		}
	}

	y0, y1 := span(rows, max(1, int(float64(w)*minInkFraction)))
	x0, x1 := span(cols, max(1, int(float64(h)*minInkFraction)))
	if y0 < 0 || x0 < 0 {
		return image.Rectangle{}, false
	}

	padX := int(float64(x1-x0) * paddingFraction)
	padY := int(float64(y1-y0) * paddingFraction)
	box := image.Rect(x0-padX, y0-padY, x1+padX, y1+padY).Add(b.Min).Intersect(b)
	return box, !box.Empty()
}

// span returns the first index and one past the last index whose count
// reaches minCount, or -1,-1.
func span(counts []int, minCount int) (int, int) {
	first, last := -1, -1
	for i, n := range counts {
		if n >= minCount {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return -1, -1
	}
	return first, last + 1
}

func crop(g *image.Gray, r image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		src := g.Pix[g.PixOffset(r.Min.X, r.Min.Y+y):]
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()], src[:r.Dx()])
	}
	return out
}
