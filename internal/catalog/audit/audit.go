// Package audit appends a trail record for every ACL mutation and entity
// status transition. Sink failures are logged and swallowed so that audit
// problems never fail the gated operation.
package audit

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/nicholsn/opencga/internal/common"
)

// Record is one audit trail entry.
type Record struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Kind      string `json:"kind"`
	EntityID  int    `json:"entityId"`
	Detail    string `json:"detail"`
}

// Sink persists audit records.
type Sink interface {
	Append(ctx context.Context, record Record) error
	Close() error
}

// NopSink discards every record. Used when audit is not configured.
type NopSink struct{}

func (NopSink) Append(ctx context.Context, record Record) error { return nil }

func (NopSink) Close() error { return nil }

// Log fills in the record id and timestamp, appends it, and downgrades sink
// failures to a log line.
func Log(ctx context.Context, sink Sink, actor, action, kind string, entityID int, detail string) {
	if sink == nil {
		return
	}
	record := Record{
		ID:        uuid.NewString(),
		Timestamp: common.GetCurrentTimestamp(),
		Actor:     actor,
		Action:    action,
		Kind:      kind,
		EntityID:  entityID,
		Detail:    detail,
	}
	if err := sink.Append(ctx, record); err != nil {
		log.Printf("audit append failed (action=%s kind=%s id=%d): %v", action, kind, entityID, err)
	}
}
