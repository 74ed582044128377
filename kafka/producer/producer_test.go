package producer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/701789262a/backend-dailychat/kafka"
	"github.com/701789262a/backend-dailychat/logger"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures []error
	written  []kafkago.Message
	calls    int
	closed   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(w.failures) > 0 {
		err := w.failures[0]
		w.failures = w.failures[1:]
		return err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestSendJSONUsesDefaultTopic(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(kafka.Config{Topic: "decisions"}, w, logger.Nop())

	if err := p.SendJSON(context.Background(), "", "abc", map[string]int{"speaker_id": 3}); err != nil {
		t.Fatal(err)
	}
	if len(w.written) != 1 {
		t.Fatalf("written = %d", len(w.written))
	}
	msg := w.written[0]
	if msg.Topic != "decisions" || string(msg.Key) != "abc" {
		t.Errorf("msg = %+v", msg)
	}
	var body map[string]int
	if err := json.Unmarshal(msg.Value, &body); err != nil || body["speaker_id"] != 3 {
		t.Errorf("body = %s", msg.Value)
	}
}

func TestWriteRetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{failures: []error{errors.New("dial tcp: connection refused")}}
	p := NewWithWriter(kafka.Config{Retries: 3}, w, logger.Nop())
	if err := p.SendJSON(context.Background(), "t", "k", 1); err != nil {
		t.Fatal(err)
	}
	if w.calls != 2 {
		t.Errorf("calls = %d, want 2", w.calls)
	}
}

func TestWriteDoesNotRetryPermanentErrors(t *testing.T) {
	w := &fakeWriter{failures: []error{kafkago.MessageSizeTooLarge}}
	p := NewWithWriter(kafka.Config{Retries: 3}, w, logger.Nop())
	if err := p.SendJSON(context.Background(), "t", "k", 1); err == nil {
		t.Fatal("expected error")
	}
	if w.calls != 1 {
		t.Errorf("calls = %d, want 1", w.calls)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(kafka.Config{}, w, logger.Nop())
	p.Close() //nolint:errcheck
	p.Close() //nolint:errcheck
	if w.closed != 1 {
		t.Errorf("closed = %d", w.closed)
	}
	if err := p.SendJSON(context.Background(), "t", "k", 1); err == nil {
		t.Error("send after close should fail")
	}
}
