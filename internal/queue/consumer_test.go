package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/iliyamo/movieflix/internal/logger"
    "github.com/iliyamo/movieflix/internal/model"
)

func TestAuditConsumerHandle(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "entries.log")
    a := NewAuditConsumer("amqp://unused", "", path, logger.Nop())

    at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
    ev := NewEntryEvent(EntryCreated, &model.Entry{ID: 5, UserID: 2, Title: "Dune", Type: model.EntryTypeMovie}, at)
    body, err := json.Marshal(ev)
    if err != nil {
        t.Fatal(err)
    }

    t.Run("appends a line", func(t *testing.T) {
        if err := a.Handle(body); err != nil {
            t.Fatalf("Handle: %v", err)
        }
        if err := a.Handle(body); err != nil {
            t.Fatalf("Handle: %v", err)
        }
        raw, err := os.ReadFile(path)
        if err != nil {
            t.Fatal(err)
        }
        lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
        if len(lines) != 2 {
            t.Fatalf("got %d lines", len(lines))
        }
        want := `[2025-03-01T10:00:00Z] entry.created | entry_id=5 | user_id=2 | type=movie | title="Dune"`
        if lines[0] != want {
            t.Errorf("line = %q\nwant   %q", lines[0], want)
        }
    })

    t.Run("rejects garbage", func(t *testing.T) {
        if err := a.Handle([]byte("{not json")); err == nil {
            t.Error("expected error for invalid JSON")
        }
        if err := a.Handle([]byte(`{"type":""}`)); err == nil {
            t.Error("expected error for incomplete event")
        }
    })

    if ev.Key() != "2" {
        t.Errorf("Key = %q", ev.Key())
    }
}
