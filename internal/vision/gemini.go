package vision

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/check-cli/internal/resilience"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiModel calls Google's Gemini API.
type GeminiModel struct {
	apiKey      string
	model       string
	temperature float32
	maxTokens   int32
	opts        []option.ClientOption
}

// NewGeminiModel creates a GeminiModel. If model is empty, the default is used.
func NewGeminiModel(apiKey, model string, temperature float32, maxTokens int, opts ...option.ClientOption) *GeminiModel {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiModel{
		apiKey:      strings.TrimSpace(apiKey),
		model:       strings.TrimSpace(model),
		temperature: temperature,
		maxTokens:   int32(maxTokens),
		opts:        opts,
	}
}

// Name implements Model.
func (g *GeminiModel) Name() string { return "gemini" }

// Generate implements Model.
func (g *GeminiModel) Generate(ctx context.Context, image []byte, mimeType string) (string, error) {
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)...)
	if err != nil {
		return "", eris.Wrap(err, "vision: create gemini client")
	}
	defer cl.Close() //nolint:errcheck

	m := cl.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &g.temperature,
		ResponseMIMEType: "application/json",
	}
	if g.maxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = &g.maxTokens
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt), genai.Blob{MIMEType: mimeType, Data: image})
	if err != nil {
		return "", resilience.HTTPError(eris.Wrap(err, "vision: gemini generate"), googleStatus(err))
	}

	txt := firstText(resp)
	if txt == "" {
		return "", eris.New("vision: empty gemini response")
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func googleStatus(err error) int {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}
