package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRootCommandHasServices(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"registry", "dispatcher", "node", "nodes"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q missing: %v", name, err)
		}
	}
}

func TestNodesCommandRendersRegistry(t *testing.T) {
	seen := time.Now().Add(-time.Second).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"10.0.0.7":{"last_seen":` + strconv.FormatInt(seen, 10) + `,"latency":1.5}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"nodes", "--registry", srv.URL})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "10.0.0.7") {
		t.Errorf("table missing node:\n%s", out.String())
	}
}

func TestNodesCommandRegistryDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"nodes", "--registry", srv.URL, "--timeout", "1s"})
	if err := root.Execute(); err == nil {
		t.Error("expected error when the registry fails")
	}
}
