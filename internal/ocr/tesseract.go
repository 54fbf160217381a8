package ocr

import (
	"context"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/model"
)

// Tesseract recognizes text locally with the tesseract library.
type Tesseract struct {
	language      string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a Tesseract recognizer. An empty language means "eng".
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language, clientFactory: gosseract.NewClient}
}

// Name implements Recognizer.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize implements Recognizer. The tesseract call itself cannot be
// interrupted, so a cancelled ctx returns early and the call finishes in
// the background.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ocr: tesseract")
	}

	type result struct {
		page *Page
		err  error
	}
	done := make(chan result, 1)
	go func() {
		page, err := t.recognize(image)
		done <- result{page, err}
	}()

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "ocr: tesseract")
	case r := <-done:
		return r.page, r.err
	}
}

func (t *Tesseract) recognize(image []byte) (*Page, error) {
	c := t.clientFactory()
	defer c.Close() //nolint:errcheck

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, eris.Wrap(err, "ocr: tesseract set image")
	}
	if err := c.SetLanguage(t.language); err != nil {
		return nil, eris.Wrapf(err, "ocr: tesseract set language %s", t.language)
	}
	text, err := c.Text()
	if err != nil {
		return nil, eris.Wrap(err, "ocr: tesseract recognize text")
	}

	page := &Page{Text: text}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return page, nil
	}
	var sum float64
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		sum += conf
		page.Words = append(page.Words, Word{
			Text:       b.Word,
			Confidence: conf,
			Box:        model.Rect{X: b.Box.Min.X, Y: b.Box.Min.Y, Width: b.Box.Dx(), Height: b.Box.Dy()},
		})
	}
	page.Confidence = sum / float64(len(boxes))
	return page, nil
}
