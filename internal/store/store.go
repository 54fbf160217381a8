// Package store persists checks, their stage records and audit entries.
package store

import (
	"context"
	"time"

	"github.com/sells-group/check-cli/internal/db"
	"github.com/sells-group/check-cli/internal/model"
)

// Store defines the persistence interface for check processing.
type Store interface {
	// Checks
	CreateCheck(ctx context.Context, check model.Check) (*model.Check, error)
	GetCheck(ctx context.Context, checkID string) (*model.Check, error)
	UpdateCheckStatus(ctx context.Context, checkID string, status model.CheckStatus) error
	UpdateCheckFields(ctx context.Context, checkID string, fields model.CheckFields, validation model.ValidationResult, consensus model.ConsensusReport) error
	FindDuplicates(ctx context.Context, tenantID, checkNumber string, amountCents int64, checkDate time.Time, excludeID string) ([]string, error)

	// Stages
	SaveProcessingStage(ctx context.Context, checkID string, stage model.ProcessingStage) error
	ListStages(ctx context.Context, checkID string) ([]model.ProcessingStage, error)

	// Audit
	CreateAuditLog(ctx context.Context, entry model.AuditLog) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

var stageColumns = []string{
	"check_id", "stage_name", "stage_order", "status", "progress", "data",
	"started_at", "completed_at", "duration_ms", "error_message", "updated_at",
}

var stageUpsert = db.UpsertConfig{
	Table:        "processing_stages",
	Columns:      stageColumns,
	ConflictKeys: []string{"check_id", "stage_name"},
}

// duplicateKeys are the denormalized columns duplicate detection matches on.
type duplicateKeys struct {
	checkNumber *string
	amountCents *int64
	checkDate   *string
}

func keysFor(fields model.CheckFields) duplicateKeys {
	var k duplicateKeys
	if fields.CheckNumber.Present() {
		n := fields.CheckNumber.Value.String()
		k.checkNumber = &n
	}
	if v, ok := fields.Amount.Value.AsAmount(); ok {
		k.amountCents = &v.Cents
	}
	if v, ok := fields.CheckDate.Value.AsDate(); ok {
		d := v.Date.Format(model.DateLayout)
		k.checkDate = &d
	}
	return k
}

func stageArgs(checkID string, s model.ProcessingStage, data any, now time.Time) []any {
	return []any{
		checkID, string(s.Name), s.Order, string(s.Status), s.Progress, data,
		s.StartedAt, s.CompletedAt, s.DurationMs, s.ErrorMessage, now,
	}
}
