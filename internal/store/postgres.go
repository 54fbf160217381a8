package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/db"
	"github.com/sells-group/check-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS checks (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id          TEXT NOT NULL,
	file_url           TEXT NOT NULL,
	file_type          TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'uploaded',
	fields             JSONB,
	validation         JSONB,
	consensus          JSONB,
	confidence_summary DOUBLE PRECISION NOT NULL DEFAULT 0,
	check_number       TEXT,
	amount_cents       BIGINT,
	check_date         DATE,
	deleted_at         TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_checks_tenant_status ON checks(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_checks_duplicates ON checks(tenant_id, check_number, amount_cents, check_date);

CREATE TABLE IF NOT EXISTS processing_stages (
	check_id      TEXT NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
	stage_name    TEXT NOT NULL,
	stage_order   INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	progress      INTEGER NOT NULL DEFAULT 0,
	data          JSONB,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (check_id, stage_name)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	check_id   TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	changes    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_check_id ON audit_logs(check_id);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateCheck(ctx context.Context, check model.Check) (*model.Check, error) {
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	if check.Status == "" {
		check.Status = model.CheckStatusUploaded
	}
	now := time.Now().UTC()
	check.CreatedAt, check.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks (id, tenant_id, file_url, file_type, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		check.ID, check.TenantID, check.FileURL, check.FileType, string(check.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert check")
	}
	return &check, nil
}

func (s *PostgresStore) GetCheck(ctx context.Context, checkID string) (*model.Check, error) {
	var c model.Check
	var fieldsJSON, validationJSON, consensusJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, file_url, file_type, status, fields, validation, consensus, confidence_summary, created_at, updated_at
		 FROM checks WHERE id = $1 AND deleted_at IS NULL`,
		checkID,
	).Scan(&c.ID, &c.TenantID, &c.FileURL, &c.FileType, &c.Status, &fieldsJSON, &validationJSON, &consensusJSON,
		&c.ConfidenceSummary, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewCheckNotFound(checkID)
		}
		return nil, eris.Wrapf(err, "postgres: get check %s", checkID)
	}
	if err := decodeResult(&c, fieldsJSON, validationJSON, consensusJSON); err != nil {
		return nil, eris.Wrapf(err, "postgres: get check %s", checkID)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCheckStatus(ctx context.Context, checkID string, status model.CheckStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checks SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), checkID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update check status %s", checkID)
	}
	if tag.RowsAffected() == 0 {
		return model.NewCheckNotFound(checkID)
	}
	return nil
}

func (s *PostgresStore) UpdateCheckFields(ctx context.Context, checkID string, fields model.CheckFields, validation model.ValidationResult, consensus model.ConsensusReport) error {
	fieldsJSON, validationJSON, consensusJSON, err := encodeResult(fields, validation, consensus)
	if err != nil {
		return eris.Wrap(err, "postgres: update check fields")
	}
	keys := keysFor(fields)

	tag, err := s.pool.Exec(ctx,
		`UPDATE checks SET fields = $1, validation = $2, consensus = $3, confidence_summary = $4,
		 check_number = $5, amount_cents = $6, check_date = $7::date, updated_at = $8 WHERE id = $9`,
		fieldsJSON, validationJSON, consensusJSON, validation.ConfidenceSummary,
		keys.checkNumber, keys.amountCents, keys.checkDate, time.Now().UTC(), checkID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update check fields %s", checkID)
	}
	if tag.RowsAffected() == 0 {
		return model.NewCheckNotFound(checkID)
	}
	return nil
}

func (s *PostgresStore) FindDuplicates(ctx context.Context, tenantID, checkNumber string, amountCents int64, checkDate time.Time, excludeID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM checks
		 WHERE tenant_id = $1 AND check_number = $2 AND amount_cents = $3 AND check_date = $4::date
		   AND id <> $5 AND deleted_at IS NULL AND status <> 'rejected'
		 ORDER BY created_at`,
		tenantID, checkNumber, amountCents, checkDate.Format(model.DateLayout), excludeID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find duplicates")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: find duplicates iterate")
}

var postgresStageUpsert = db.MustUpsertSQL(stageUpsert)

func (s *PostgresStore) SaveProcessingStage(ctx context.Context, checkID string, stage model.ProcessingStage) error {
	data, err := json.Marshal(stage.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage data")
	}
	_, err = s.pool.Exec(ctx, postgresStageUpsert, stageArgs(checkID, stage, data, time.Now().UTC())...)
	return eris.Wrapf(err, "postgres: save stage %s for check %s", stage.Name, checkID)
}

func (s *PostgresStore) ListStages(ctx context.Context, checkID string) ([]model.ProcessingStage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT stage_name, stage_order, status, progress, data, started_at, completed_at, duration_ms, error_message
		 FROM processing_stages WHERE check_id = $1 ORDER BY stage_order`,
		checkID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages %s", checkID)
	}
	defer rows.Close()

	var stages []model.ProcessingStage
	for rows.Next() {
		var st model.ProcessingStage
		var data []byte
		if err := rows.Scan(&st.Name, &st.Order, &st.Status, &st.Progress, &data,
			&st.StartedAt, &st.CompletedAt, &st.DurationMs, &st.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		if err := decodeData(&st, data); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stage data")
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func (s *PostgresStore) CreateAuditLog(ctx context.Context, entry model.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit changes")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, check_id, tenant_id, action, changes, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.CheckID, entry.TenantID, entry.Action, changes, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert audit log for check %s", entry.CheckID)
}
