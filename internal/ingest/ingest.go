// Package ingest loads check images from a local path or an http(s) URL and
// enforces the upload limits before any processing starts.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/preprocess"
	"github.com/sells-group/check-cli/internal/resilience"
)

// Image is a loaded and validated check image.
type Image struct {
	Source string
	Data   []byte
	Format string
	Width  int
	Height int
}

// Options configures a Loader.
type Options struct {
	MaxBytes       int64
	AllowedFormats []string
	UserAgent      string
	Timeout        time.Duration
	Retry          resilience.RetryConfig
}

// OptionsFromConfig maps pipeline settings onto loader options.
func OptionsFromConfig(cfg config.PipelineConfig, retry resilience.RetryConfig) Options {
	return Options{
		MaxBytes:       cfg.MaxFileBytes,
		AllowedFormats: cfg.AllowedFormats,
		Retry:          retry,
	}
}

// Loader reads images and checks their size and format.
type Loader struct {
	client  *http.Client
	opts    Options
	allowed []string
}

// NewLoader creates a Loader.
func NewLoader(opts Options) *Loader {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "check-cli/1.0"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("ingest", "download")
	}
	allowed := make([]string, 0, len(opts.AllowedFormats))
	for _, f := range opts.AllowedFormats {
		allowed = append(allowed, normalizeFormat(f))
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Loader{
		client:  &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:    opts,
		allowed: allowed,
	}
}

// Load reads source, which is either a file path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) (*Image, error) {
	var (
		data []byte
		err  error
	)
	if isURL(source) {
		data, err = l.download(ctx, source)
	} else {
		data, err = l.readFile(source)
	}
	if err != nil {
		return nil, err
	}

	img, err := l.Validate(data)
	if err != nil {
		return nil, err
	}
	img.Source = source

	zap.L().Debug("ingest: image loaded",
		zap.String("source", source),
		zap.String("format", img.Format),
		zap.Int("bytes", len(data)),
	)
	return img, nil
}

// Validate checks data against the size limit and the format allow-list.
func (l *Loader) Validate(data []byte) (*Image, error) {
	if err := l.checkSize(int64(len(data))); err != nil {
		return nil, err
	}
	format, cfg, err := preprocess.DetectFormat(data)
	if err != nil {
		return nil, err
	}
	if len(l.allowed) > 0 && !slices.Contains(l.allowed, normalizeFormat(format)) {
		return nil, &model.ProcessingError{
			Code:       model.CodeUnsupportedFormat,
			StatusCode: http.StatusUnsupportedMediaType,
			Message:    fmt.Sprintf("ingest: format %s not in %s", format, strings.Join(l.opts.AllowedFormats, ", ")),
		}
	}
	return &Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: stat %s", path)
	}
	if err := l.checkSize(info.Size()); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return data, nil
}

func (l *Loader) download(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, l.opts.Retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: create request")
		}
		req.Header.Set("User-Agent", l.opts.UserAgent)

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: download %s", rawURL)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return nil, resilience.HTTPError(
				eris.Errorf("ingest: unexpected status %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode,
			)
		}
		if resp.ContentLength > 0 {
			if err := l.checkSize(resp.ContentLength); err != nil {
				return nil, err
			}
		}

		body := io.Reader(resp.Body)
		if l.opts.MaxBytes > 0 {
			body = io.LimitReader(resp.Body, l.opts.MaxBytes+1)
		}
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read body from %s", rawURL)
		}
		return data, nil
	})
}

func (l *Loader) checkSize(n int64) error {
	if l.opts.MaxBytes > 0 && n > l.opts.MaxBytes {
		return &model.ProcessingError{
			Code:       model.CodeFileTooLarge,
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("ingest: file is %d bytes, limit is %d", n, l.opts.MaxBytes),
		}
	}
	return nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
	if f == "jpg" {
		return "jpeg"
	}
	if f == "tif" {
		return "tiff"
	}
	return f
}
