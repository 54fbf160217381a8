package vision

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/check-cli/pkg/anthropic"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Name() string { return "mock" }

func (m *mockModel) Generate(ctx context.Context, image []byte, mimeType string) (string, error) {
	args := m.Called(ctx, image, mimeType)
	return args.String(0), args.Error(1)
}

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}
