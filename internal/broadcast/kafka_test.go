package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	attempts int
	err      error
	deadline bool
	closed   bool

	started chan struct{} // receives once per write when non-nil
	release chan struct{} // writes block until closed when non-nil
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.started != nil {
		w.started <- struct{}{}
	}
	if w.release != nil {
		<-w.release
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() ([]kafka.Message, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...), w.attempts
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "market-data", time.Second, 0, discardLogger())
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	if err := p.Publish(context.Background(), "market-event", map[string]any{"type": "negative"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	msgs, _ := w.written()
	if len(msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if string(msg.Key) != "market-event" || !msg.Time.Equal(at) {
		t.Fatalf("message = %+v", msg)
	}
	if !w.deadline {
		t.Fatal("write context has no deadline")
	}
	if !w.closed {
		t.Fatal("writer not closed")
	}

	var env Message
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != "market-event" || !env.Timestamp.Equal(at) {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestKafkaPublisher_WriteErrorIsNotReturned(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, "market-data", 0, 0, discardLogger())

	if err := p.Publish(context.Background(), "market-update", []int{}); err != nil {
		t.Fatalf("Publish = %v, want nil for a queued message", err)
	}
	if err := p.Publish(context.Background(), "market-update", []int{}); err != nil {
		t.Fatalf("second Publish = %v", err)
	}
	p.Close()

	if msgs, attempts := w.written(); attempts != 2 || len(msgs) != 0 {
		t.Fatalf("attempts = %d, written = %d", attempts, len(msgs))
	}
}

func TestKafkaPublisher_BlockedBrokerDoesNotBlockPublish(t *testing.T) {
	w := &fakeWriter{started: make(chan struct{}, 4), release: make(chan struct{})}
	p := newKafkaPublisher(w, "market-data", time.Second, 1, discardLogger())
	ctx := context.Background()

	if err := p.Publish(ctx, "market-update", 1); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	select {
	case <-w.started:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never picked up the first message")
	}

	begin := time.Now()
	if err := p.Publish(ctx, "market-update", 2); err != nil {
		t.Fatalf("queued Publish: %v", err)
	}
	if err := p.Publish(ctx, "market-update", 3); !errors.Is(err, ErrKafkaBacklog) {
		t.Fatalf("overflow Publish = %v, want ErrKafkaBacklog", err)
	}
	if elapsed := time.Since(begin); elapsed > 100*time.Millisecond {
		t.Fatalf("Publish blocked for %v behind a stalled write", elapsed)
	}

	close(w.release)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if msgs, _ := w.written(); len(msgs) != 2 {
		t.Fatalf("wrote %d messages, want the 2 queued ones", len(msgs))
	}
}

func TestKafkaPublisher_PublishAfterClose(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, "market-data", 0, 0, discardLogger())
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := p.Publish(context.Background(), "market-update", 1); !errors.Is(err, ErrKafkaClosed) {
		t.Fatalf("Publish = %v, want ErrKafkaClosed", err)
	}
}

func TestKafkaPublisher_EncodeError(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, "market-data", 0, 0, discardLogger())
	defer p.Close()
	if err := p.Publish(context.Background(), "market-update", make(chan int)); err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, discardLogger()); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, discardLogger()); err == nil {
		t.Fatal("expected error without topic")
	}
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "market-data"}, discardLogger())
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	_ = p.Close()
}
