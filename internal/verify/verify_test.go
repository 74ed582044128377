package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/provider"
)

func sidecar(t *testing.T, score float64, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/verify":
			for _, field := range []string{"query", "reference"} {
				f, _, err := r.FormFile(field)
				if err != nil {
					t.Errorf("missing %s: %v", field, err)
					continue
				}
				if b, _ := io.ReadAll(f); len(b) == 0 {
					t.Errorf("%s is empty", field)
				}
			}
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(Result{Score: score, Prediction: score > 0.25})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecute(t *testing.T) {
	srv := sidecar(t, 0.8, http.StatusOK)
	c, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsAvailable(context.Background()) {
		t.Error("sidecar should be available")
	}
	res, err := c.Execute(context.Background(), Pair{Query: []byte("q"), Reference: []byte("r")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 0.8 || !res.Prediction {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		status int
		pair   Pair
	}{
		{"empty query", 0.5, http.StatusOK, Pair{Reference: []byte("r")}},
		{"sidecar error", 0.5, http.StatusInternalServerError, Pair{Query: []byte("q"), Reference: []byte("r")}},
		{"score out of range", 1.5, http.StatusOK, Pair{Query: []byte("q"), Reference: []byte("r")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := New(Config{URL: sidecar(t, tt.score, tt.status).URL})
			if _, err := c.Execute(context.Background(), tt.pair); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestComparerThroughMiddleware(t *testing.T) {
	srv := sidecar(t, 0.3, http.StatusOK)
	reg := provider.NewRegistry[provider.RequestResponse[Pair, Result]]()
	reg.RegisterFactory(ProviderName, Factory())
	rr, err := reg.Create(ProviderName, map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	wrapped := provider.Chain(
		provider.WithLogging[Pair, Result](logger.Nop()),
		provider.WithTracing[Pair, Result]("verify.compare"),
	)(rr)

	score, err := NewComparer(wrapped).Compare(context.Background(), []byte("q"), []byte("r"))
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.3 {
		t.Errorf("score = %v", score)
	}
}
