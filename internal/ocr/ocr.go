// Package ocr implements the text-recognition extraction engine: a
// recognizer turns the check image into text and word boxes, and heuristic
// field parsers read the check fields and the MICR line out of that text.
package ocr

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/model"
)

// Word is a single recognized word with its box and confidence in [0,1].
type Word struct {
	Text       string
	Confidence float64
	Box        model.Rect
}

// Page is the raw recognition output for one check image. Confidence is the
// mean word confidence in [0,1], or 0 when the recognizer reports none.
type Page struct {
	Text       string
	Confidence float64
	Words      []Word
}

// Recognizer turns an image into text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (*Page, error)
}

// NewRecognizer creates a Recognizer based on config.
func NewRecognizer(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "tesseract", "":
		return NewTesseract(cfg.Language), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Engine is the text-recognition extraction engine.
type Engine struct {
	rec Recognizer
}

// NewEngine wraps a recognizer as an extraction engine.
func NewEngine(rec Recognizer) *Engine {
	return &Engine{rec: rec}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "ocr-" + e.rec.Name() }

// Extract implements engine.Engine.
func (e *Engine) Extract(ctx context.Context, image []byte) (*model.PartialFields, error) {
	start := time.Now()
	page, err := e.rec.Recognize(ctx, image)
	if err != nil {
		return nil, model.NewOCRError("ocr: recognize with "+e.rec.Name(), err)
	}

	fields := ExtractFields(page)
	zap.L().Debug("ocr: extracted fields",
		zap.String("recognizer", e.rec.Name()),
		zap.Int("fields", fields.Count()),
		zap.Bool("micr", fields.MICR != nil),
		zap.Float64("page_confidence", page.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fields, nil
}
