package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry records who changed what. OldValues/NewValues carry snapshots of
// the affected rows so historical documents stay explainable.
type AuditEntry struct {
	UserID    int64
	Action    string
	Table     string
	RecordID  string
	OldValues map[string]any
	NewValues map[string]any
	At        time.Time
}

// AuditPort is implemented by the audit sink. Writes are fire-and-forget:
// callers never let the returned error affect the primary operation.
type AuditPort interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogger persists audit entries in PostgreSQL.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Table == "" || entry.RecordID == "" {
		return errors.New("audit entry requires action/table/record_id")
	}
	oldJSON, err := json.Marshal(entry.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(entry.NewValues)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (id, user_id, action, table_name, record_id, old_values, new_values, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), entry.UserID, entry.Action, entry.Table, entry.RecordID, oldJSON, newJSON, at)
	return err
}
