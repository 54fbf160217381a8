package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/check-cli/internal/db"
	"github.com/sells-group/check-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It suits local
// runs of the process command.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS checks (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	file_url           TEXT NOT NULL,
	file_type          TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'uploaded',
	fields             TEXT,
	validation         TEXT,
	consensus          TEXT,
	confidence_summary REAL NOT NULL DEFAULT 0,
	check_number       TEXT,
	amount_cents       INTEGER,
	check_date         TEXT,
	deleted_at         DATETIME,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_checks_tenant_status ON checks(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_checks_duplicates ON checks(tenant_id, check_number, amount_cents, check_date);

CREATE TABLE IF NOT EXISTS processing_stages (
	check_id      TEXT NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
	stage_name    TEXT NOT NULL,
	stage_order   INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	progress      INTEGER NOT NULL DEFAULT 0,
	data          TEXT,
	started_at    DATETIME,
	completed_at  DATETIME,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (check_id, stage_name)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         TEXT PRIMARY KEY,
	check_id   TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	changes    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_check_id ON audit_logs(check_id);
`

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCheck(ctx context.Context, check model.Check) (*model.Check, error) {
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	if check.Status == "" {
		check.Status = model.CheckStatusUploaded
	}
	now := time.Now().UTC()
	check.CreatedAt, check.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (id, tenant_id, file_url, file_type, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		check.ID, check.TenantID, check.FileURL, check.FileType, string(check.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert check")
	}
	return &check, nil
}

func (s *SQLiteStore) GetCheck(ctx context.Context, checkID string) (*model.Check, error) {
	var c model.Check
	var fieldsJSON, validationJSON, consensusJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, file_url, file_type, status, fields, validation, consensus, confidence_summary, created_at, updated_at
		 FROM checks WHERE id = ? AND deleted_at IS NULL`,
		checkID,
	).Scan(&c.ID, &c.TenantID, &c.FileURL, &c.FileType, &c.Status, &fieldsJSON, &validationJSON, &consensusJSON,
		&c.ConfidenceSummary, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewCheckNotFound(checkID)
		}
		return nil, eris.Wrapf(err, "sqlite: get check %s", checkID)
	}
	if err := decodeResult(&c, []byte(fieldsJSON.String), []byte(validationJSON.String), []byte(consensusJSON.String)); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get check %s", checkID)
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateCheckStatus(ctx context.Context, checkID string, status model.CheckStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE checks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), checkID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update check status %s", checkID)
	}
	return checkRowsAffected(res, checkID)
}

func (s *SQLiteStore) UpdateCheckFields(ctx context.Context, checkID string, fields model.CheckFields, validation model.ValidationResult, consensus model.ConsensusReport) error {
	fieldsJSON, validationJSON, consensusJSON, err := encodeResult(fields, validation, consensus)
	if err != nil {
		return eris.Wrap(err, "sqlite: update check fields")
	}
	keys := keysFor(fields)

	res, err := s.db.ExecContext(ctx,
		`UPDATE checks SET fields = ?, validation = ?, consensus = ?, confidence_summary = ?,
		 check_number = ?, amount_cents = ?, check_date = ?, updated_at = ? WHERE id = ?`,
		string(fieldsJSON), string(validationJSON), string(consensusJSON), validation.ConfidenceSummary,
		deref(keys.checkNumber), deref(keys.amountCents), deref(keys.checkDate), time.Now().UTC(), checkID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update check fields %s", checkID)
	}
	return checkRowsAffected(res, checkID)
}

func (s *SQLiteStore) FindDuplicates(ctx context.Context, tenantID, checkNumber string, amountCents int64, checkDate time.Time, excludeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM checks
		 WHERE tenant_id = ? AND check_number = ? AND amount_cents = ? AND check_date = ?
		   AND id <> ? AND deleted_at IS NULL AND status <> 'rejected'
		 ORDER BY created_at`,
		tenantID, checkNumber, amountCents, checkDate.Format(model.DateLayout), excludeID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find duplicates")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: find duplicates iterate")
}

var sqliteStageUpsert = func() string {
	cfg := stageUpsert
	cfg.Placeholder = db.Question
	return db.MustUpsertSQL(cfg)
}()

func (s *SQLiteStore) SaveProcessingStage(ctx context.Context, checkID string, stage model.ProcessingStage) error {
	data, err := json.Marshal(stage.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage data")
	}
	args := stageArgs(checkID, stage, string(data), time.Now().UTC())
	args[6], args[7] = nullTime(stage.StartedAt), nullTime(stage.CompletedAt)

	_, err = s.db.ExecContext(ctx, sqliteStageUpsert, args...)
	return eris.Wrapf(err, "sqlite: save stage %s for check %s", stage.Name, checkID)
}

func (s *SQLiteStore) ListStages(ctx context.Context, checkID string) ([]model.ProcessingStage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage_name, stage_order, status, progress, data, started_at, completed_at, duration_ms, error_message
		 FROM processing_stages WHERE check_id = ? ORDER BY stage_order`,
		checkID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list stages %s", checkID)
	}
	defer rows.Close() //nolint:errcheck

	var stages []model.ProcessingStage
	for rows.Next() {
		var st model.ProcessingStage
		var data sql.NullString
		var started, completed sql.NullTime
		if err := rows.Scan(&st.Name, &st.Order, &st.Status, &st.Progress, &data,
			&started, &completed, &st.DurationMs, &st.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		if started.Valid {
			st.StartedAt = &started.Time
		}
		if completed.Valid {
			st.CompletedAt = &completed.Time
		}
		if err := decodeData(&st, []byte(data.String)); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stage data")
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "sqlite: list stages iterate")
}

func (s *SQLiteStore) CreateAuditLog(ctx context.Context, entry model.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit changes")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, check_id, tenant_id, action, changes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CheckID, entry.TenantID, entry.Action, string(changes), entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert audit log for check %s", entry.CheckID)
}

// ListAuditLogs returns the audit trail of a check, oldest first.
func (s *SQLiteStore) ListAuditLogs(ctx context.Context, checkID string) ([]model.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, check_id, tenant_id, action, changes, created_at FROM audit_logs WHERE check_id = ? ORDER BY created_at`,
		checkID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit logs %s", checkID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		var changes sql.NullString
		if err := rows.Scan(&e.ID, &e.CheckID, &e.TenantID, &e.Action, &changes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit log")
		}
		if changes.Valid && changes.String != "null" {
			if err := json.Unmarshal([]byte(changes.String), &e.Changes); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal audit changes")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit logs iterate")
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func checkRowsAffected(res sql.Result, checkID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.NewCheckNotFound(checkID)
	}
	return nil
}
