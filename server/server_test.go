package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/701789262a/backend-dailychat/component"
	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/logger"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", defaultMaxBodySize, false},
		{"512KB", 512 << 10, false},
		{"64MB", 64 << 20, false},
		{"1gb", 1 << 30, false},
		{"100", 100, false},
		{"10 MB", 10 << 20, false},
		{"lots", 0, true},
		{"-1MB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Port: 70000}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected port range error")
	}
	cfg = Config{Port: 8080, MaxBodySize: "huge"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected body size error")
	}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []component.HealthStatus
		wantStatus int
		wantBody   string
	}{
		{"all healthy", []component.HealthStatus{component.StatusHealthy}, http.StatusOK, "healthy"},
		{"degraded", []component.HealthStatus{component.StatusHealthy, component.StatusDegraded}, http.StatusOK, "degraded"},
		{"unhealthy", []component.HealthStatus{component.StatusDegraded, component.StatusUnhealthy}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(Config{}, logger.Nop())
			srv.ApplyDefaults("registry", func(ctx context.Context) []component.Health {
				hs := make([]component.Health, 0, len(tt.statuses))
				for i, s := range tt.statuses {
					hs = append(hs, component.Health{Name: fmt.Sprint(i), Status: s})
				}
				return hs
			})

			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body map[string]any
			_ = json.Unmarshal(rr.Body.Bytes(), &body)
			if body["status"] != tt.wantBody || body["service"] != "registry" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestRespondWithError(t *testing.T) {
	srv := New(Config{}, logger.Nop())
	srv.ApplyMiddleware()
	srv.Engine().GET("/busy", func(c *gin.Context) { RespondWithError(c, apperrors.NoCapacity("all nodes busy")) })
	srv.Engine().GET("/raw", func(c *gin.Context) { RespondWithError(c, fmt.Errorf("raw failure")) })
	srv.Engine().GET("/panic", func(c *gin.Context) { panic("boom") })

	tests := []struct {
		path string
		code int
		want apperrors.ErrorCode
	}{
		{"/busy", http.StatusServiceUnavailable, apperrors.ErrCodeNoCapacity},
		{"/raw", http.StatusInternalServerError, apperrors.ErrCodeInternal},
		{"/panic", http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.code {
				t.Errorf("status = %d, want %d", rr.Code, tt.code)
			}
			var resp apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tt.want {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.want)
			}
		})
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := New(Config{}, logger.Nop())
	srv.ApplyMiddleware()
	srv.Engine().GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Body.String() != "abc-123" || rr.Header().Get("X-Request-Id") != "abc-123" {
		t.Errorf("request id not propagated: body=%q header=%q", rr.Body.String(), rr.Header().Get("X-Request-Id"))
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/id", nil))
	if len(rr.Header().Get("X-Request-Id")) != 36 {
		t.Errorf("expected generated uuid, got %q", rr.Header().Get("X-Request-Id"))
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv := New(Config{MaxBodySize: "1KB"}, logger.Nop())
	srv.ApplyMiddleware()
	srv.Engine().POST("/job", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusAccepted)
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(strings.Repeat("x", 2048))))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}

func TestComponentLifecycle(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0}, logger.Nop())
	srv.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	comp := NewComponent(srv)

	if comp.Health(context.Background()).Status != component.StatusUnhealthy {
		t.Error("expected unhealthy before start")
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = comp.Stop(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Errorf("body = %q", body)
	}
	if comp.Health(context.Background()).Status != component.StatusHealthy {
		t.Error("expected healthy after start")
	}
	if comp.Describe().Details != srv.Addr() {
		t.Errorf("describe = %+v", comp.Describe())
	}
}
