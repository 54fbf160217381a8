package anthropic

import (
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSDKMessages_ImagesBeforeText(t *testing.T) {
	msgs := []Message{{
		Role:    "user",
		Content: "Extract the check fields.",
		Images:  []Image{{MediaType: "image/png", Data: []byte("png-bytes")}},
	}}

	out := toSDKMessages(msgs)
	require.Len(t, out, 1)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	require.Len(t, out[0].Content, 2)
	require.NotNil(t, out[0].Content[0].OfImage)
	require.NotNil(t, out[0].Content[1].OfText)
	assert.Equal(t, "Extract the check fields.", out[0].Content[1].OfText.Text)
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "{"},
		{Role: "system", Content: "unknown role"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
	assert.Equal(t, sdk.MessageParamRoleUser, out[2].Role)
	assert.Len(t, out[0].Content, 1)

	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKSystemBlocks(t *testing.T) {
	sdkBlocks := toSDKSystemBlocks(CachedSystem("Read checks.", "1h"))
	require.Len(t, sdkBlocks, 1)
	assert.Equal(t, "Read checks.", sdkBlocks[0].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), sdkBlocks[0].CacheControl.TTL)

	plain := toSDKSystemBlocks([]SystemBlock{{Text: "no cache"}})
	assert.Equal(t, "no cache", plain[0].Text)

	assert.Nil(t, CachedSystem("", "5m"))
}

func TestFromSDKMessage(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{
		ID:         "msg_test_123",
		Model:      "claude-haiku-4-5-20251001",
		StopReason: "end_turn",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: `{"payee":`},
			{Type: "text", Text: `"Acme"}`},
		},
		Usage: sdk.Usage{InputTokens: 1500, OutputTokens: 80, CacheReadInputTokens: 900},
	})

	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"payee":"Acme"}`, resp.Text())
	assert.Equal(t, int64(1500), resp.Usage.InputTokens)
	assert.Equal(t, int64(900), resp.Usage.CacheReadInputTokens)

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 529, StatusCode(&sdk.Error{StatusCode: 529}))
	assert.Equal(t, 0, StatusCode(errors.New("dial tcp: refused")))
}

func TestEstimateCost_Haiku(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	// 1M * $0.80 + 1M * $4.00
	assert.InDelta(t, 4.80, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
}

func TestEstimateCost_WithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              500_000,
		OutputTokens:             100_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     300_000,
	}
	// 0.40 input + 0.40 output + 0.20 cache write + 0.024 cache read
	assert.InDelta(t, 1.024, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.Equal(t, 0.0, usage.EstimateCost("unknown-model"))
	assert.Equal(t, 0.0, TokenUsage{}.EstimateCost("claude-haiku-4-5-20251001"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "vision")
		TokenUsage{}.LogCost("unknown-model", "")
	})
}
