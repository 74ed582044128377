package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/redis"
)

var now = time.Unix(1_000_000, 0)

type fakeSource struct {
	recs []node.Record
	err  error
}

func (s fakeSource) Snapshot(context.Context) ([]node.Record, error) {
	return s.recs, s.err
}

type fakeForwarder struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeForwarder) Forward(_ context.Context, address string, _ Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	if f.fail[address] {
		return errors.New("connection refused")
	}
	return nil
}

func rec(addr string, age time.Duration) node.Record {
	return node.Record{Address: addr, LastSeen: now.Add(-age), Latency: time.Millisecond}
}

func newDispatcher(src node.Source, busy BusySet, fwd Forwarder) *Dispatcher {
	return New(src, busy, fwd, logger.Nop(), WithClock(func() time.Time { return now }))
}

func TestAssignFirstFit(t *testing.T) {
	tests := []struct {
		name    string
		recs    []node.Record
		busy    []string
		want    string
		wantErr bool
	}{
		{"first fresh", []node.Record{rec("10.0.0.1", time.Second), rec("10.0.0.2", time.Second)}, nil, "10.0.0.1", false},
		{"skips busy", []node.Record{rec("10.0.0.1", time.Second), rec("10.0.0.2", time.Second)}, []string{"10.0.0.1"}, "10.0.0.2", false},
		{"skips stale", []node.Record{rec("10.0.0.1", 21*time.Second), rec("10.0.0.2", 20*time.Second)}, nil, "10.0.0.2", false},
		{"all busy", []node.Record{rec("10.0.0.1", 0)}, []string{"10.0.0.1"}, "", true},
		{"empty registry", nil, nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busy := NewMemoryBusySet()
			for _, b := range tt.busy {
				busy.Add(context.Background(), b)
			}
			d := newDispatcher(fakeSource{recs: tt.recs}, busy, &fakeForwarder{})
			got, err := d.Assign(context.Background(), Job{ID: "j1"})
			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.ErrCodeNoCapacity) {
					t.Fatalf("err = %v, want NO_CAPACITY", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("node = %q, want %q", got, tt.want)
			}
			if ok, _ := busy.Contains(context.Background(), got); !ok {
				t.Error("assigned node not marked busy")
			}
		})
	}
}

func TestAssignForwardFailureReleases(t *testing.T) {
	busy := NewMemoryBusySet()
	fwd := &fakeForwarder{fail: map[string]bool{"10.0.0.1": true}}
	d := newDispatcher(fakeSource{recs: []node.Record{rec("10.0.0.1", 0), rec("10.0.0.2", 0)}}, busy, fwd)

	_, err := d.Assign(context.Background(), Job{ID: "j1"})
	if !apperrors.HasCode(err, apperrors.ErrCodeNoCapacity) {
		t.Fatalf("err = %v", err)
	}
	if ok, _ := busy.Contains(context.Background(), "10.0.0.1"); ok {
		t.Error("node still busy after failed forward")
	}
	if len(fwd.calls) != 1 {
		t.Errorf("forward calls = %v, want no retry on other nodes", fwd.calls)
	}
}

func TestAssignRegistryUnavailable(t *testing.T) {
	d := newDispatcher(fakeSource{err: errors.New("dial tcp: refused")}, NewMemoryBusySet(), &fakeForwarder{})
	_, err := d.Assign(context.Background(), Job{})
	if !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentAssignNeverDoublesUp(t *testing.T) {
	recs := []node.Record{rec("10.0.0.1", 0), rec("10.0.0.2", 0), rec("10.0.0.3", 0)}
	d := newDispatcher(fakeSource{recs: recs}, NewMemoryBusySet(), &fakeForwarder{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned = map[string]int{}
		rejected atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr, err := d.Assign(context.Background(), Job{})
			if err != nil {
				rejected.Add(1)
				return
			}
			mu.Lock()
			assigned[addr]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(assigned) != 3 || rejected.Load() != 17 {
		t.Fatalf("assigned = %v, rejected = %d", assigned, rejected.Load())
	}
	for addr, n := range assigned {
		if n != 1 {
			t.Errorf("%s assigned %d times", addr, n)
		}
	}
}

func TestReleaseIdempotent(t *testing.T) {
	d := newDispatcher(fakeSource{recs: []node.Record{rec("10.0.0.1", 0)}}, NewMemoryBusySet(), &fakeForwarder{})
	ctx := context.Background()
	if _, err := d.Assign(ctx, Job{}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := d.Release(ctx, "10.0.0.1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Release(ctx, "10.9.9.9"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Assign(ctx, Job{}); err != nil {
		t.Fatalf("node not reusable after release: %v", err)
	}
}

func TestRedisBusySet(t *testing.T) {
	mini := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	a := NewRedisBusySet(client)
	b := NewRedisBusySet(client)
	if ok, err := a.Add(ctx, "10.0.0.1"); err != nil || !ok {
		t.Fatalf("first Add = %v, %v", ok, err)
	}
	if ok, _ := b.Add(ctx, "10.0.0.1"); ok {
		t.Error("second replica won an already busy node")
	}
	if !mini.Exists("voiceid:dispatch:busy") {
		t.Error("busy key missing in redis")
	}
	if err := b.Remove(ctx, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if members, _ := a.Members(ctx); len(members) != 0 {
		t.Errorf("members = %v", members)
	}
}

func TestHTTPForwarder(t *testing.T) {
	var got struct {
		timestamp, jobID string
		clip             []byte
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job" || r.Method != http.MethodPost {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		got.timestamp = r.FormValue("timestamp")
		got.jobID = r.FormValue("job_id")
		f, _, err := r.FormFile("clip")
		if err == nil {
			got.clip, _ = io.ReadAll(f)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	fwd, err := NewHTTPForwarder(port, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	err = fwd.Forward(context.Background(), host, Job{ID: "j-7", Clip: []byte("RIFF"), Timestamp: "1700000000"})
	if err != nil {
		t.Fatal(err)
	}
	if got.timestamp != "1700000000" || got.jobID != "j-7" || string(got.clip) != "RIFF" {
		t.Errorf("node saw %+v", got)
	}
}

func TestHTTPForwarderNodeRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	fwd, _ := NewHTTPForwarder(port, time.Second)
	if err := fwd.Forward(context.Background(), host, Job{Clip: []byte("x")}); err == nil {
		t.Fatal("expected error")
	}
}

func multipartClip(t *testing.T, fields map[string]string, clip []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if clip != nil {
		fw, _ := mw.CreateFormFile("clip", "clip.wav")
		fw.Write(clip)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func newTestRouter(d *Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(d).Register(r)
	return r
}

func TestHandlerSubmit(t *testing.T) {
	d := newDispatcher(fakeSource{recs: []node.Record{rec("10.0.0.1", 0)}}, NewMemoryBusySet(), &fakeForwarder{})
	r := newTestRouter(d)

	body, ct := multipartClip(t, map[string]string{"timestamp": "1700000000"}, []byte("RIFF"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var resp struct {
		Data submitResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Node != "10.0.0.1" || resp.Data.JobID == "" {
		t.Errorf("resp = %+v", resp.Data)
	}

	// Only node is now busy.
	body, ct = multipartClip(t, map[string]string{"timestamp": "1700000001"}, []byte("RIFF"))
	req = httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHandlerSubmitValidation(t *testing.T) {
	d := newDispatcher(fakeSource{recs: []node.Record{rec("10.0.0.1", 0)}}, NewMemoryBusySet(), &fakeForwarder{})
	r := newTestRouter(d)
	tests := []struct {
		name   string
		fields map[string]string
		clip   []byte
	}{
		{"missing clip", map[string]string{"timestamp": "1"}, nil},
		{"missing timestamp", map[string]string{}, []byte("RIFF")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartClip(t, tt.fields, tt.clip)
			req := httptest.NewRequest(http.MethodPost, "/", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandlerUnbusy(t *testing.T) {
	busy := NewMemoryBusySet()
	busy.Add(context.Background(), "10.0.0.1")
	r := newTestRouter(newDispatcher(fakeSource{}, busy, &fakeForwarder{}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unbusy?ip=10.0.0.1", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("call %d status = %d", i, w.Code)
		}
	}
	if ok, _ := busy.Contains(context.Background(), "10.0.0.1"); ok {
		t.Error("still busy")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unbusy?ip=not-an-ip", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
