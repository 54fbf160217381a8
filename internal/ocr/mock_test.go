package ocr

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Name() string { return "mock" }

func (m *mockRecognizer) Recognize(ctx context.Context, image []byte) (*Page, error) {
	args := m.Called(ctx, image)
	page, _ := args.Get(0).(*Page)
	return page, args.Error(1)
}
