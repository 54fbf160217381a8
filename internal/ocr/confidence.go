package ocr

import (
	"strings"
	"unicode"

	"github.com/sells-group/check-cli/internal/model"
)

const suspiciousChars = "~`^°¬¦§±µ¶"

// Confidence scores how trustworthy raw, a span of recognized text, is on
// page. The page confidence is scaled by length and suspicious-character
// factors and averaged with the confidence of the words making up raw.
func Confidence(page *Page, raw string) float64 {
	if page == nil {
		return 0
	}
	base := page.Confidence * lengthFactor(raw) * suspiciousFactor(raw)
	return model.ClampConfidence((base + wordConfidence(page, raw)) / 2)
}

func lengthFactor(raw string) float64 {
	n := len([]rune(strings.TrimSpace(raw)))
	switch {
	case n < 3:
		return 0.7
	case n < 5:
		return 0.85
	case n <= 50:
		return 1.0
	case n > 100:
		return 0.9
	default:
		return 0.95
	}
}

func suspiciousFactor(raw string) float64 {
	f := 1.0
	for _, r := range raw {
		if strings.ContainsRune(suspiciousChars, r) {
			f -= 0.1
		}
	}
	if f < 0.5 {
		return 0.5
	}
	return f
}

// wordConfidence averages the confidence of page words that occur in raw.
// 0.5 when none match.
func wordConfidence(page *Page, raw string) float64 {
	words := matchingWords(page, raw)
	if len(words) == 0 {
		return 0.5
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

func matchingWords(page *Page, raw string) []Word {
	if page == nil || raw == "" {
		return nil
	}
	haystack := strings.ToLower(raw)
	var out []Word
	for _, w := range page.Words {
		token := strings.ToLower(strings.TrimFunc(w.Text, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if token != "" && strings.Contains(haystack, token) {
			out = append(out, w)
		}
	}
	return out
}

// locate returns the union box of the page words that make up raw.
func locate(page *Page, raw string) *model.Rect {
	words := matchingWords(page, raw)
	if len(words) == 0 {
		return nil
	}
	minX, minY := words[0].Box.X, words[0].Box.Y
	maxX, maxY := minX+words[0].Box.Width, minY+words[0].Box.Height
	for _, w := range words[1:] {
		minX = min(minX, w.Box.X)
		minY = min(minY, w.Box.Y)
		maxX = max(maxX, w.Box.X+w.Box.Width)
		maxY = max(maxY, w.Box.Y+w.Box.Height)
	}
	return &model.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// fieldConfidence blends a heuristic base confidence with the recognizer's
// own confidence for raw. Recognizers that report no confidences leave the
// base unchanged.
func fieldConfidence(page *Page, raw string, base float64) float64 {
	if page == nil || (len(page.Words) == 0 && page.Confidence == 0) {
		return base
	}
	return model.ClampConfidence((base + Confidence(page, raw)) / 2)
}
