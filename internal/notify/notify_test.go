package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/701789262a/backend-dailychat/internal/identify"
	"github.com/701789262a/backend-dailychat/logger"
)

type recordingSender struct {
	topic, key string
	value      interface{}
	err        error
}

func (r *recordingSender) SendJSON(_ context.Context, topic, key string, value interface{}) error {
	r.topic, r.key, r.value = topic, key, value
	return r.err
}

func event() Event {
	return Event{
		JobID:  "job-1",
		Clip:   strings.Repeat("c", 64),
		Status: StatusDone,
		Subclips: []Result{
			{Subclip: strings.Repeat("a", 64), Decision: &identify.Decision{SpeakerID: 4, Score: 0.81}},
			{Subclip: strings.Repeat("b", 64), Decision: &identify.Decision{}},
		},
	}
}

func TestKafkaSinkKeysByClip(t *testing.T) {
	sender := &recordingSender{}
	n := New(logger.Nop(), NewKafkaSink(sender, "voiceid.decisions"))
	n.Notify(context.Background(), event())

	if sender.topic != "voiceid.decisions" || sender.key != strings.Repeat("c", 64) {
		t.Errorf("sent to %s key %s", sender.topic, sender.key)
	}
	if ev, ok := sender.value.(Event); !ok || ev.JobID != "job-1" {
		t.Errorf("value = %#v", sender.value)
	}
}

func TestNtfySink(t *testing.T) {
	var (
		path, title string
		body        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, title = r.URL.Path, r.Header.Get("Title")
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	sink, err := NewNtfySink(NtfyConfig{URL: srv.URL, Topic: "speakers"})
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Send(context.Background(), event()); err != nil {
		t.Fatal(err)
	}
	if path != "/speakers" || title != "Clip identified" {
		t.Errorf("path = %s title = %s", path, title)
	}
	if !bytes.Contains(body, []byte("speaker 4 score 0.81")) || !bytes.Contains(body, []byte("unknown speaker")) {
		t.Errorf("body = %s", body)
	}
}

func TestNotifyNeverFails(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)
	failing := NewKafkaSink(&recordingSender{err: errors.New("broker down")}, "")
	ok := &recordingSender{}
	n := New(log, failing, NewKafkaSink(ok, ""))

	n.Notify(context.Background(), event())

	if ok.key == "" {
		t.Error("second sink skipped after first failed")
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.Split(buf.Bytes(), []byte("\n"))[0], &line); err != nil {
		t.Fatalf("log = %s", buf.String())
	}
	if line["sink"] != "kafka" || line["level"] != "warn" {
		t.Errorf("log line = %v", line)
	}
}

func TestNoop(t *testing.T) {
	n := Noop()
	n.Notify(context.Background(), event())
	if len(n.Sinks()) != 0 {
		t.Errorf("sinks = %v", n.Sinks())
	}
}
