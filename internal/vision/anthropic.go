package vision

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/resilience"
	"github.com/sells-group/check-cli/pkg/anthropic"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicModel calls Claude through the Anthropic client.
type AnthropicModel struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropicModel creates an AnthropicModel. If model is empty, the default is used.
func NewAnthropicModel(client anthropic.Client, model string, temperature float32, maxTokens int) *AnthropicModel {
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicModel{client: client, model: model, temperature: float64(temperature), maxTokens: int64(maxTokens)}
}

// Name implements Model.
func (a *AnthropicModel) Name() string { return "anthropic" }

// Generate implements Model.
func (a *AnthropicModel) Generate(ctx context.Context, image []byte, mimeType string) (string, error) {
	temp := a.temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.CachedSystem(systemPrompt, "5m"),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: userPrompt,
			Images:  []anthropic.Image{{MediaType: mimeType, Data: image}},
		}},
		Temperature: &temp,
	})
	if err != nil {
		return "", resilience.HTTPError(eris.Wrap(err, "vision: anthropic generate"), anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(a.model, "vision")

	txt := resp.Text()
	if txt == "" {
		return "", eris.Errorf("vision: empty anthropic response (stop_reason=%s)", resp.StopReason)
	}
	return txt, nil
}
