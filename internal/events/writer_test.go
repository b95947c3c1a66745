package events_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"gatherly/internal/db"
	"gatherly/internal/events"
	"gatherly/internal/migrate"
)

func newWriter(t *testing.T) events.Writer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return events.Writer{DB: conn, Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }}
}

func appendEvent(t *testing.T, w events.Writer, evtType, entityID string, payload events.EventPayload) {
	t.Helper()
	ctx := context.Background()
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.Append(ctx, tx, evtType, "activity", entityID, "tester", payload); err != nil {
		tx.Rollback()
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAppendAndTail(t *testing.T) {
	w := newWriter(t)
	appendEvent(t, w, "activity.created", "act-1", events.EventPayload{"title": "Run"})
	appendEvent(t, w, "activity.deleted", "act-1", nil)

	entries, err := w.Tail(context.Background(), 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// newest first
	if entries[0].Type != "activity.deleted" || entries[1].Type != "activity.created" {
		t.Fatalf("unexpected order: %s, %s", entries[0].Type, entries[1].Type)
	}
	if entries[0].Payload != "{}" {
		t.Fatalf("nil payload must serialize as empty object, got %q", entries[0].Payload)
	}
	if entries[1].EntityID != "act-1" || entries[1].ActorID != "tester" {
		t.Fatalf("unexpected entry %+v", entries[1])
	}
}

func TestAppendWithoutEntityStoresNull(t *testing.T) {
	w := newWriter(t)
	appendEvent(t, w, "system.started", "", nil)

	var entityID sql.NullString
	if err := w.DB.QueryRowContext(context.Background(), `SELECT entity_id FROM events LIMIT 1`).Scan(&entityID); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if entityID.Valid {
		t.Fatalf("empty entity id must be stored as NULL, got %q", entityID.String)
	}
	entries, err := w.Tail(context.Background(), 1)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if entries[0].EntityID != "" {
		t.Fatalf("tail must render NULL entity as empty, got %q", entries[0].EntityID)
	}
}
