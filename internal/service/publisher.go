// Package service holds the background collaborators of the HTTP layer:
// publishers that ship entry events to a broker and the scheduled refresh
// token sweeper.  Publishing failures are logged and returned so callers
// can ignore them without interrupting the main request flow.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/movieflix/internal/config"
    "github.com/iliyamo/movieflix/internal/queue"
)

// Publisher ships entry events to a message broker.
type Publisher interface {
    Publish(ctx context.Context, ev queue.EntryEvent) error
    Close() error
}

// NewPublisher returns the publisher selected by cfg.Backend.
func NewPublisher(cfg config.EventsConfig, log *zap.SugaredLogger) (Publisher, error) {
    switch cfg.Backend {
    case "", "none":
        return NopPublisher{}, nil
    case "rabbitmq":
        return NewRabbitPublisher(cfg.RabbitMQURL, cfg.Queue, log), nil
    case "kafka":
        return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
    }
    return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.EntryEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

// dialTimeout bounds connection setup when Publish is called without a
// deadline.
const dialTimeout = 5 * time.Second

// RabbitPublisher publishes events to a durable queue on the default
// exchange.  The connection is opened lazily and re-opened after failures.
// Waiting for the connection, dialing and publishing all stop at the
// deadline of the Publish context.
type RabbitPublisher struct {
    url   string
    queue string
    log   *zap.SugaredLogger

    lock chan struct{} // one slot; held while conn and ch are used
    conn *amqp.Connection
    ch   *amqp.Channel
}

func NewRabbitPublisher(url, queueName string, log *zap.SugaredLogger) *RabbitPublisher {
    if queueName == "" {
        queueName = queue.EntriesQueue
    }
    return &RabbitPublisher{url: url, queue: queueName, log: log, lock: make(chan struct{}, 1)}
}

// Publish sends ev as a persistent JSON message routed to the queue.
func (p *RabbitPublisher) Publish(ctx context.Context, ev queue.EntryEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    select {
    case p.lock <- struct{}{}:
    case <-ctx.Done():
        return fmt.Errorf("rabbitmq: %w", ctx.Err())
    }
    defer func() { <-p.lock }()

    ch, err := p.channel(ctx)
    if err != nil {
        p.log.Warnw("rabbitmq: connect failed", "error", err)
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Type:         string(ev.Type),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        p.log.Warnw("rabbitmq: publish failed", "error", err, "event", ev.Type, "entry_id", ev.EntryID)
        p.reset()
        return err
    }
    return nil
}

// channel returns an open channel, dialing and declaring the queue when
// needed.  Callers hold p.lock.
func (p *RabbitPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    timeout := dialTimeout
    if dl, ok := ctx.Deadline(); ok {
        timeout = time.Until(dl)
    }
    if timeout <= 0 {
        return nil, fmt.Errorf("dial: %w", context.DeadlineExceeded)
    }
    // DefaultDial puts the deadline on the socket until the handshake is done.
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *RabbitPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

func (p *RabbitPublisher) Close() error {
    p.lock <- struct{}{}
    defer func() { <-p.lock }()
    p.reset()
    return nil
}
