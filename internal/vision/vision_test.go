package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/resilience"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VisionConfig
		want    any
		wantErr string
	}{
		{"gemini default", config.VisionConfig{GeminiKey: "g"}, &GeminiModel{}, ""},
		{"gemini missing key", config.VisionConfig{Provider: "gemini"}, nil, "requires gemini_api_key"},
		{"anthropic", config.VisionConfig{Provider: "anthropic", AnthropicKey: "a"}, &AnthropicModel{}, ""},
		{"anthropic missing key", config.VisionConfig{Provider: "anthropic"}, nil, "requires anthropic_api_key"},
		{"openai", config.VisionConfig{Provider: "openai", OpenAIKey: "o"}, &OpenAIModel{}, ""},
		{"openai missing key", config.VisionConfig{Provider: "openai"}, nil, "requires openai_api_key"},
		{"unknown", config.VisionConfig{Provider: "llava"}, nil, `unknown provider "llava"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestEngine_Extract(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, pngImage, "image/png").
		Return(`{"payee": {"value": "Acme Supplies", "confidence": 0.93}, "amount": 1250, "confidence": 0.8}`, nil)

	e := NewEngine(m, 0)
	fields, err := e.Extract(context.Background(), pngImage)

	require.NoError(t, err)
	assert.Equal(t, "vision-mock", e.Name())
	require.NotNil(t, fields.Payee)
	assert.InDelta(t, 0.93, fields.Payee.Confidence, 0.001)
	require.NotNil(t, fields.Amount)
	assert.Equal(t, int64(125000), fields.Amount.Value.Cents)
	assert.InDelta(t, 0.8, fields.Amount.Confidence, 0.001)
	m.AssertExpectations(t)
}

func TestEngine_ExtractGenerateError(t *testing.T) {
	m := &mockModel{}
	cause := resilience.NewTransientError(errors.New("503 unavailable"), 503)
	m.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", cause)

	_, err := NewEngine(m, 0).Extract(context.Background(), pngImage)

	require.Error(t, err)
	assert.Equal(t, model.CodeAIError, model.ErrorCode(err))
	assert.True(t, resilience.IsTransient(err))
}

func TestEngine_ExtractBadReply(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("I cannot read this check.", nil)

	_, err := NewEngine(m, 0).Extract(context.Background(), pngImage)

	require.Error(t, err)
	assert.Equal(t, model.CodeAIError, model.ErrorCode(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestEngine_RateLimitHonoursContext(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(`{"memo": "rent"}`, nil).Once()

	e := NewEngine(m, 1)
	_, err := e.Extract(context.Background(), pngImage)
	require.NoError(t, err)

	// The next token is a minute away.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Extract(ctx, pngImage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	m.AssertNumberOfCalls(t, "Generate", 1)
}
