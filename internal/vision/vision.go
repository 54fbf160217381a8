// Package vision implements the vision-model extraction engine: the check
// image is sent to a multimodal model with an extraction prompt and the JSON
// reply is parsed into check fields.
package vision

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/pkg/anthropic"
)

// Model sends a check image to a multimodal model and returns its raw reply.
type Model interface {
	Name() string
	Generate(ctx context.Context, image []byte, mimeType string) (string, error)
}

// NewModel creates a Model based on config.
func NewModel(cfg config.VisionConfig) (Model, error) {
	switch cfg.Provider {
	case "gemini", "":
		if cfg.GeminiKey == "" {
			return nil, eris.New("vision: gemini provider requires gemini_api_key")
		}
		return NewGeminiModel(cfg.GeminiKey, cfg.GeminiModel, cfg.Temperature, cfg.MaxTokens), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("vision: anthropic provider requires anthropic_api_key")
		}
		return NewAnthropicModel(anthropic.NewClient(cfg.AnthropicKey), cfg.AnthropicModel, cfg.Temperature, cfg.MaxTokens), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, eris.New("vision: openai provider requires openai_api_key")
		}
		return NewOpenAIModel(cfg.OpenAIKey, cfg.OpenAIModel, cfg.Temperature, cfg.MaxTokens, ""), nil
	default:
		return nil, eris.Errorf("vision: unknown provider %q", cfg.Provider)
	}
}

// Engine is the vision-model extraction engine. Calls are throttled to the
// provider's request budget.
type Engine struct {
	model   Model
	limiter *rate.Limiter
}

// NewEngine wraps m as an extraction engine. requestsPerMinute <= 0 disables
// throttling.
func NewEngine(m Model, requestsPerMinute int) *Engine {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Engine{model: m, limiter: rate.NewLimiter(limit, 1)}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "vision-" + e.model.Name() }

// Extract implements engine.Engine.
func (e *Engine) Extract(ctx context.Context, image []byte) (*model.PartialFields, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "vision: wait for rate limit")
	}

	start := time.Now()
	reply, err := e.model.Generate(ctx, image, http.DetectContentType(image))
	if err != nil {
		return nil, model.NewAIError("vision: generate with "+e.model.Name(), err)
	}

	fields, err := ParseResponse(reply)
	if err != nil {
		zap.L().Warn("vision: unparseable reply",
			zap.String("model", e.model.Name()),
			zap.Int("reply_len", len(reply)),
			zap.Error(err),
		)
		return nil, model.NewAIError("vision: parse reply from "+e.model.Name(), err)
	}

	zap.L().Debug("vision: extracted fields",
		zap.String("model", e.model.Name()),
		zap.Int("fields", fields.Count()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fields, nil
}
