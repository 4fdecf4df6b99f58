package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultKafkaQueueSize is how many encoded messages may wait for the
// writer before Publish starts dropping them.
const DefaultKafkaQueueSize = 256

// ErrKafkaBacklog is returned by Publish when the send queue is full and
// the message was dropped.
var ErrKafkaBacklog = errors.New("kafka: send queue full, message dropped")

// ErrKafkaClosed is returned by Publish after Close.
var ErrKafkaClosed = errors.New("kafka: publisher closed")

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	QueueSize    int
}

// KafkaPublisher writes each event envelope to a topic, keyed by event
// name. Publish only enqueues; a single goroutine performs the writes so
// a slow or unreachable broker never blocks the caller.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	queue chan kafka.Message
	done  chan struct{}

	mu        sync.RWMutex // guards closed against sends on a closed queue
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
	}
	logger.Info("kafka publisher created", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafkaPublisher(w, cfg.Topic, cfg.WriteTimeout, cfg.QueueSize, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, timeout time.Duration, queueSize int, logger *slog.Logger) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if queueSize <= 0 {
		queueSize = DefaultKafkaQueueSize
	}
	p := &KafkaPublisher{
		writer:  w,
		topic:   topic,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		queue:   make(chan kafka.Message, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish encodes the event and queues it for the writer. It never waits
// on the broker: a full queue drops the message and returns
// ErrKafkaBacklog.
func (p *KafkaPublisher) Publish(_ context.Context, event string, data any) error {
	at := p.now()
	payload, err := encode(event, data, at)
	if err != nil {
		return fmt.Errorf("kafka: encoding %s: %w", event, err)
	}
	msg := kafka.Message{
		Key:   []byte(event),
		Value: payload,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrKafkaClosed
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.logger.Warn("kafka queue full, dropping message", "topic", p.topic, "event", event)
		return ErrKafkaBacklog
	}
}

// run writes queued messages until the queue is closed and drained.
func (p *KafkaPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.logger.Warn("kafka write failed", "topic", p.topic, "event", string(msg.Key), "error", err)
			continue
		}
		p.logger.Debug("kafka message sent", "topic", p.topic, "event", string(msg.Key), "bytes", len(msg.Value))
	}
}

// Close stops accepting messages and closes the writer once the queue is
// drained. It waits at most one write timeout for the drain.
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-time.After(p.timeout):
			p.logger.Warn("kafka flush timed out", "topic", p.topic, "pending", len(p.queue))
		}
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}
