package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-cli/pkg/anthropic"
)

func TestAnthropicModel_Generate(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == defaultAnthropicModel &&
			req.MaxTokens == 1024 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 &&
			len(req.Messages[0].Images) == 1 &&
			req.Messages[0].Images[0].MediaType == "image/jpeg"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"memo": "rent"}`}},
		Usage:   anthropic.TokenUsage{InputTokens: 1600, OutputTokens: 40},
	}, nil)

	m := NewAnthropicModel(client, "", 0.1, 0)
	reply, err := m.Generate(context.Background(), []byte("jpeg"), "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, `{"memo": "rent"}`, reply)
	assert.Equal(t, "anthropic", m.Name())
	client.AssertExpectations(t)
}

func TestAnthropicModel_EmptyReply(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{StopReason: "max_tokens"}, nil)

	_, err := NewAnthropicModel(client, "claude-sonnet-4-5-20250929", 0, 64).Generate(context.Background(), nil, "image/png")
	assert.ErrorContains(t, err, "stop_reason=max_tokens")
}

func TestAnthropicModel_Error(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid x-api-key"))

	_, err := NewAnthropicModel(client, "", 0, 0).Generate(context.Background(), nil, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic generate")
}
