package main

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/pipeline"
)

// --- Stage Lister Mock ---

type mockStageLister struct {
	mock.Mock
}

func (m *mockStageLister) ListStages(ctx context.Context, checkID string) ([]model.ProcessingStage, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProcessingStage), args.Error(1)
}

func (m *mockStageLister) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- Runner Mock ---

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, checkID string) (*pipeline.Result, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}
