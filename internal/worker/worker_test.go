package worker

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/identify"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/internal/notify"
	"github.com/701789262a/backend-dailychat/internal/segment"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/storage"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"uploads/2024/1700000000.wav", 1700000000, false},
		{"1700000000.part.wav", 1700000000, false},
		{"1700000000", 1700000000, false},
		{"2023-11-14T22:13:20Z", 1700000000, false},
		{"", 0, true},
		{"uploads/recording.wav", 0, true},
		{"-5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Unix() != tt.want {
				t.Errorf("got %d, want %d", got.Unix(), tt.want)
			}
		})
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(2)
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(Job{ID: string(rune('a' + i))}); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Enqueue(Job{ID: "c"}); !apperrors.HasCode(err, apperrors.ErrCodeNoCapacity) {
		t.Fatalf("err = %v, want NO_CAPACITY", err)
	}
	job, ok := q.Dequeue(context.Background())
	if !ok || job.ID != "a" {
		t.Errorf("dequeued %+v, want FIFO order", job)
	}
	if NewQueue(0).Cap() != DefaultQueueCapacity {
		t.Error("zero capacity should use the default")
	}
}

type countingReleaser struct {
	calls atomic.Int32
	done  chan struct{}
}

func (r *countingReleaser) Release(context.Context) error {
	r.calls.Add(1)
	r.done <- struct{}{}
	return nil
}

type scriptedProcessor struct {
	mu      sync.Mutex
	order   []string
	active  atomic.Int32
	overlap atomic.Bool
}

func (p *scriptedProcessor) Process(_ context.Context, job Job) (*Outcome, error) {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.active.Add(-1)
	p.mu.Lock()
	p.order = append(p.order, job.ID)
	p.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	switch job.ID {
	case "panic":
		panic("model crashed")
	case "fail":
		return nil, apperrors.IdentificationFailed(apperrors.FailureRemoteStep, errors.New("fetch"))
	}
	return &Outcome{ClipLength: time.Second}, nil
}

func TestLoopReleasesOncePerJob(t *testing.T) {
	q := NewQueue(8)
	proc := &scriptedProcessor{}
	rel := &countingReleaser{done: make(chan struct{}, 8)}
	loop := NewLoop(q, proc, rel, logger.Nop())

	ctx := context.Background()
	if err := loop.Start(ctx); err != nil {
		t.Fatal(err)
	}
	ids := []string{"ok-1", "panic", "fail", "ok-2"}
	for _, id := range ids {
		if err := q.Enqueue(Job{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	for range ids {
		select {
		case <-rel.done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for unbusy")
		}
	}
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := loop.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}

	if n := rel.calls.Load(); n != int32(len(ids)) {
		t.Errorf("unbusy calls = %d, want %d", n, len(ids))
	}
	if proc.overlap.Load() {
		t.Error("jobs overlapped")
	}
	for i, id := range ids {
		if proc.order[i] != id {
			t.Errorf("order = %v", proc.order)
			break
		}
	}
}

// gatedProcessor holds each job until gate closes or its context ends.
type gatedProcessor struct {
	started chan struct{}
	gate    chan struct{}
	jobErr  chan error
}

func (p *gatedProcessor) Process(ctx context.Context, _ Job) (*Outcome, error) {
	close(p.started)
	select {
	case <-p.gate:
		p.jobErr <- nil
		return &Outcome{ClipLength: time.Second}, nil
	case <-ctx.Done():
		p.jobErr <- ctx.Err()
		return nil, ctx.Err()
	}
}

func TestLoopStopLetsRunningJobFinish(t *testing.T) {
	q := NewQueue(2)
	proc := &gatedProcessor{started: make(chan struct{}), gate: make(chan struct{}), jobErr: make(chan error, 1)}
	rel := &countingReleaser{done: make(chan struct{}, 2)}
	loop := NewLoop(q, proc, rel, logger.Nop())
	if err := loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(Job{ID: "long"}); err != nil {
		t.Fatal(err)
	}
	<-proc.started

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- loop.Stop(ctx)
	}()
	select {
	case err := <-stopped:
		t.Fatalf("Stop returned before the job finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(proc.gate)

	if err := <-proc.jobErr; err != nil {
		t.Errorf("job saw %v, want it to run to completion", err)
	}
	if err := <-stopped; err != nil {
		t.Errorf("Stop: %v", err)
	}
	if n := rel.calls.Load(); n != 1 {
		t.Errorf("unbusy calls = %d, want 1", n)
	}
}

func TestLoopStopDeadlineCancelsJob(t *testing.T) {
	q := NewQueue(2)
	proc := &gatedProcessor{started: make(chan struct{}), gate: make(chan struct{}), jobErr: make(chan error, 1)}
	rel := &countingReleaser{done: make(chan struct{}, 2)}
	loop := NewLoop(q, proc, rel, logger.Nop())
	if err := loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(Job{ID: "stuck"}); err != nil {
		t.Fatal(err)
	}
	<-proc.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop = %v, want deadline exceeded", err)
	}
	if err := <-proc.jobErr; !errors.Is(err, context.Canceled) {
		t.Errorf("job saw %v, want canceled", err)
	}
	if n := rel.calls.Load(); n != 1 {
		t.Errorf("unbusy calls = %d, want 1", n)
	}
}

type fakeSplitter struct{ res *segment.Result }

func (f fakeSplitter) Split(context.Context, []byte, string) (*segment.Result, error) {
	return f.res, nil
}

type fakeIdentifier struct {
	errs  map[string]error
	calls []string
}

func (f *fakeIdentifier) Identify(_ context.Context, q identify.Query) (*identify.Decision, error) {
	f.calls = append(f.calls, q.Subclip)
	dec := &identify.Decision{Subclip: q.Subclip, SpeakerID: 1}
	if err := f.errs[q.Subclip]; err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed) {
			return dec, err
		}
		return nil, err
	}
	return dec, nil
}

func TestPipeline(t *testing.T) {
	blobs := storage.NewBlobStore(storage.NewMemory())
	clip, _ := blobs.Put(context.Background(), storage.KindClip, []byte("clip"))
	split := &segment.Result{
		Duration: 3 * time.Second,
		Subclips: []segment.Subclip{{Hash: "s1"}, {Hash: "s2"}, {Hash: "s3"}},
	}

	t.Run("persistence failure continues", func(t *testing.T) {
		id := &fakeIdentifier{errs: map[string]error{"s2": apperrors.PersistenceFailed(errors.New("locked"))}}
		out, err := NewPipeline(blobs, fakeSplitter{split}, id).Process(context.Background(), Job{ClipHash: clip})
		if !apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed) {
			t.Fatalf("err = %v", err)
		}
		if len(id.calls) != 3 || len(out.Results) != 3 || out.Results[1].Decision == nil {
			t.Errorf("outcome = %+v", out)
		}
		if out.ClipLength != 3*time.Second {
			t.Errorf("clip length = %v", out.ClipLength)
		}
	})

	t.Run("identification failure stops", func(t *testing.T) {
		id := &fakeIdentifier{errs: map[string]error{"s2": apperrors.IdentificationFailed(101, errors.New("fetch"))}}
		out, err := NewPipeline(blobs, fakeSplitter{split}, id).Process(context.Background(), Job{ClipHash: clip})
		if !apperrors.HasCode(err, apperrors.ErrCodeIdentificationFailed) {
			t.Fatalf("err = %v", err)
		}
		if len(id.calls) != 2 || out.Results[1].Error != string(apperrors.ErrCodeIdentificationFailed) {
			t.Errorf("outcome = %+v", out)
		}
	})

	t.Run("missing clip", func(t *testing.T) {
		if _, err := NewPipeline(blobs, fakeSplitter{split}, &fakeIdentifier{}).Process(context.Background(), Job{ClipHash: "nope"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func intakeRequest(t *testing.T, timestamp string, clip []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("timestamp", timestamp)
	mw.WriteField("user_id", "7")
	if clip != nil {
		fw, _ := mw.CreateFormFile("clip", "1700000000.wav")
		fw.Write(clip)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/job", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIntake(t *testing.T) {
	gin.SetMode(gin.TestMode)
	q := NewQueue(1)
	blobs := storage.NewBlobStore(storage.NewMemory())
	r := gin.New()
	NewHandler(q, blobs, logger.Nop()).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, intakeRequest(t, "uploads/1700000000.wav", []byte("RIFF")))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	job, _ := q.Dequeue(context.Background())
	if job.RecordedAt.Unix() != 1700000000 || job.UserID != "7" || job.ClipHash != storage.Hash([]byte("RIFF")) {
		t.Errorf("job = %+v", job)
	}
	if ok, _ := blobs.Has(context.Background(), storage.KindClip, job.ClipHash); !ok {
		t.Error("clip not stored")
	}

	q.Enqueue(Job{ID: "filler"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, intakeRequest(t, "1700000000", []byte("RIFF")))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("full queue status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, intakeRequest(t, "not-a-time", []byte("RIFF")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad timestamp status = %d", w.Code)
	}
}

func TestHTTPReleaser(t *testing.T) {
	var gotIP atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/unbusy" {
			gotIP.Store(r.URL.Query().Get("ip"))
		}
	}))
	defer srv.Close()

	rel, err := NewHTTPReleaser(node.StaticURL(srv.URL), "10.0.0.5", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := rel.Release(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotIP.Load() != "10.0.0.5" {
		t.Errorf("ip = %v", gotIP.Load())
	}
}

func TestLoopNotifies(t *testing.T) {
	q := NewQueue(1)
	rel := &countingReleaser{done: make(chan struct{}, 1)}
	sink := &captureSink{}
	loop := NewLoop(q, &scriptedProcessor{}, rel, logger.Nop(), WithNotifier(notify.New(logger.Nop(), sink)), WithNodeName("10.0.0.5"))
	loop.Start(context.Background())
	q.Enqueue(Job{ID: "fail", ClipHash: "c1"})
	<-rel.done
	loop.Stop(context.Background())

	if len(sink.events) != 1 {
		t.Fatalf("events = %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Status != notify.StatusFailed || ev.FailureCode != apperrors.FailureRemoteStep || ev.Node != "10.0.0.5" {
		t.Errorf("event = %+v", ev)
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureSink) Name() string                     { return "capture" }
func (c *captureSink) IsAvailable(context.Context) bool { return true }

func (c *captureSink) Send(_ context.Context, ev notify.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}
