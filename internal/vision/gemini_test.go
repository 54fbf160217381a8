package vision

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestNewGeminiModel_Defaults(t *testing.T) {
	m := NewGeminiModel(" key ", "", 0.2, 512)
	assert.Equal(t, "key", m.apiKey)
	assert.Equal(t, defaultGeminiModel, m.model)
	assert.Equal(t, int32(512), m.maxTokens)
	assert.Equal(t, "gemini", m.Name())
}

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", firstText(nil))
	assert.Equal(t, "", firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}, genai.Text(`{"payee":"Acme"}`)}}},
		},
	}
	assert.Equal(t, `{"payee":"Acme"}`, firstText(resp))
}

func TestGoogleStatus(t *testing.T) {
	assert.Equal(t, 429, googleStatus(eris.Wrap(&googleapi.Error{Code: 429, Message: "quota"}, "gemini")))
	assert.Equal(t, 0, googleStatus(eris.New("boom")))
}
