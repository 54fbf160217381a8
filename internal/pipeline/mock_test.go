package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/check-cli/internal/ingest"
	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/preprocess"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetCheck(ctx context.Context, checkID string) (*model.Check, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Check), args.Error(1)
}

func (m *mockStore) UpdateCheckStatus(ctx context.Context, checkID string, status model.CheckStatus) error {
	return m.Called(ctx, checkID, status).Error(0)
}

func (m *mockStore) UpdateCheckFields(ctx context.Context, checkID string, fields model.CheckFields, validation model.ValidationResult, consensus model.ConsensusReport) error {
	return m.Called(ctx, checkID, fields, validation, consensus).Error(0)
}

func (m *mockStore) SaveProcessingStage(ctx context.Context, checkID string, s model.ProcessingStage) error {
	return m.Called(ctx, checkID, s).Error(0)
}

func (m *mockStore) CreateAuditLog(ctx context.Context, entry model.AuditLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockStore) FindDuplicates(ctx context.Context, tenantID, checkNumber string, amountCents int64, checkDate time.Time, excludeID string) ([]string, error) {
	args := m.Called(ctx, tenantID, checkNumber, amountCents, checkDate, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Loader Mock ---

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, source string) (*ingest.Image, error) {
	args := m.Called(ctx, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Image), args.Error(1)
}

// --- Preprocessor Mock ---

type mockPreprocessor struct {
	mock.Mock
}

func (m *mockPreprocessor) Prepare(data []byte) (*preprocess.Result, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preprocess.Result), args.Error(1)
}

func (m *mockPreprocessor) Segment(g *image.Gray) ([]preprocess.Segment, error) {
	args := m.Called(g)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]preprocess.Segment), args.Error(1)
}
