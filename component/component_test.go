package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/701789262a/backend-dailychat/logger"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	order    *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health { return m.health }

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(logger.Nop())
	if err := r.Register(&mockComponent{name: "db"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "db"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestStartStopOrder(t *testing.T) {
	var order []string
	r := NewRegistry(logger.Nop())
	for _, name := range []string{"database", "prober", "http"} {
		if err := r.Register(&mockComponent{name: name, order: &order}); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := []string{"start:database", "start:prober", "start:http", "stop:http", "stop:prober", "stop:database"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestStartFailureStopsOnlyStarted(t *testing.T) {
	var order []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "a", order: &order})
	_ = r.Register(&mockComponent{name: "b", order: &order, startErr: fmt.Errorf("boom")})
	_ = r.Register(&mockComponent{name: "c", order: &order})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	_ = r.StopAll(context.Background())

	want := []string{"start:a", "start:b", "stop:a"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "a", stopErr: fmt.Errorf("a failed")})
	_ = r.Register(&mockComponent{name: "b", stopErr: fmt.Errorf("b failed")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected joined error")
	}
}

func TestHealthAllAndLookup(t *testing.T) {
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "redis", health: Health{Name: "redis", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "queue", health: Health{Name: "queue", Status: StatusDegraded, Message: "backlog"}})

	hs := r.HealthAll(context.Background())
	if len(hs) != 2 || hs[1].Status != StatusDegraded {
		t.Errorf("unexpected health %v", hs)
	}
	if r.Get("redis") == nil || r.Get("missing") != nil {
		t.Error("lookup mismatch")
	}
	if len(r.All()) != 2 {
		t.Error("All should return two components")
	}
}

func TestLaunchStopsWithTheRest(t *testing.T) {
	var order []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "database", order: &order})
	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Launch(ctx, &mockComponent{name: "http", order: &order}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := r.Launch(ctx, &mockComponent{name: "http"}); err == nil {
		t.Error("expected duplicate error")
	}
	_ = r.StopAll(ctx)

	want := []string{"start:database", "start:http", "stop:http", "stop:database"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}
