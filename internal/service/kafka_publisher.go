package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"

    "github.com/IBM/sarama"
    "go.uber.org/zap"

    "github.com/iliyamo/movieflix/internal/queue"
)

// KafkaPublisher sends events through a sarama async producer.  Messages
// are keyed by user id so one user's events land on one partition.
type KafkaPublisher struct {
    producer sarama.AsyncProducer
    topic    string
    log      *zap.SugaredLogger
    wg       sync.WaitGroup
}

// NewKafkaPublisher connects an async producer to brokers.
func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) (*KafkaPublisher, error) {
    producer, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
    if err != nil {
        return nil, fmt.Errorf("failed to create async producer: %w", err)
    }
    return newKafkaPublisher(producer, topic, log), nil
}

// ProducerConfig is the sarama configuration used for entry events.
func ProducerConfig() *sarama.Config {
    cfg := sarama.NewConfig()
    cfg.Producer.RequiredAcks = sarama.WaitForAll
    cfg.Producer.Retry.Max = 5
    cfg.Producer.Return.Successes = false
    cfg.Producer.Return.Errors = true
    cfg.Producer.Partitioner = sarama.NewHashPartitioner
    return cfg
}

func newKafkaPublisher(producer sarama.AsyncProducer, topic string, log *zap.SugaredLogger) *KafkaPublisher {
    k := &KafkaPublisher{producer: producer, topic: topic, log: log}
    k.wg.Add(1)
    go k.handleProducerErrors()
    return k
}

func (k *KafkaPublisher) handleProducerErrors() {
    defer k.wg.Done()
    for err := range k.producer.Errors() {
        k.log.Warnw("kafka: failed to write event", "error", err.Err, "topic", err.Msg.Topic)
    }
}

// Publish queues ev on the producer.  It blocks only while the producer's
// input buffer is full, and gives up when ctx is done.
func (k *KafkaPublisher) Publish(ctx context.Context, ev queue.EntryEvent) error {
    payload, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }
    msg := &sarama.ProducerMessage{
        Topic: k.topic,
        Key:   sarama.StringEncoder(ev.Key()),
        Value: sarama.ByteEncoder(payload),
    }
    select {
    case k.producer.Input() <- msg:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Close flushes buffered messages and waits for the error reader to drain.
func (k *KafkaPublisher) Close() error {
    err := k.producer.Close()
    k.wg.Wait()
    if err != nil {
        return fmt.Errorf("failed to close producer: %w", err)
    }
    return nil
}
