package audit

import (
	"context"
	"database/sql"
	"fmt"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_trail (
	id TEXT PRIMARY KEY,
	ts TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	kind TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	detail TEXT
)`

// PostgresSink writes audit records into the audit_trail table. The table is
// created on construction when missing.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink prepares the sink over an already-open connection pool.
func NewPostgresSink(db *sql.DB) (*PostgresSink, error) {
	if _, err := db.Exec(auditSchema); err != nil {
		return nil, fmt.Errorf("error creating the audit_trail table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Append(ctx context.Context, record Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_trail (id, ts, actor, action, kind, entity_id, detail) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.Timestamp, record.Actor, record.Action, record.Kind, record.EntityID, record.Detail)
	return err
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
