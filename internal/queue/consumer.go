package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// AuditConsumer listens to the entry.events queue and appends one line per
// event to an audit log file.
type AuditConsumer struct {
    URL     string
    Queue   string
    LogPath string
    Log     *zap.SugaredLogger

    mu sync.Mutex // serializes writes to LogPath
}

// NewAuditConsumer returns a consumer for url that writes to logPath.
func NewAuditConsumer(url, queueName, logPath string, log *zap.SugaredLogger) *AuditConsumer {
    if queueName == "" {
        queueName = EntriesQueue
    }
    if logPath == "" {
        logPath = filepath.Join("logs", "entries.log")
    }
    return &AuditConsumer{URL: url, Queue: queueName, LogPath: logPath, Log: log}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes until
// ctx is cancelled.  Broker failures trigger a reconnect with exponential
// backoff capped at 30s.  Undecodable messages are rejected without
// requeue so they cannot loop.
func (a *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(a.URL)
        if err != nil {
            a.Log.Warnw("audit consumer: dial failed", "error", err, "retry_in", backoff.String())
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = a.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        a.Log.Warnw("audit consumer: consume loop ended, reconnecting", "error", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        a.Log.Warnw("audit consumer: set QoS failed", "error", err)
    }
    if _, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, a.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := a.Handle(d.Body); err != nil {
            a.Log.Errorw("audit consumer: handle message failed", "error", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends it to the audit log.
func (a *AuditConsumer) Handle(body []byte) error {
    var ev EntryEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.EntryID == 0 {
        return fmt.Errorf("incomplete event: %s", body)
    }

    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(a.LogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders ev as a single human-friendly log line.
func FormatAuditLine(ev EntryEvent) string {
    return fmt.Sprintf("[%s] %s | entry_id=%d | user_id=%d | type=%s | title=%q\n",
        ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.EntryID, ev.UserID, ev.EntryType, ev.Title)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
