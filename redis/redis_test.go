package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/logger"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client, err := New(Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mini
}

func TestKey(t *testing.T) {
	client, _ := newTestClient(t)
	if got := client.Key("busy"); got != "voiceid:busy" {
		t.Errorf("Key = %q", got)
	}
	if got := client.Key("a", "b"); got != "voiceid:a:b" {
		t.Errorf("Key = %q", got)
	}
}

func TestSetOperations(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()
	key := client.Key("busy")

	added, err := client.SAdd(ctx, key, "10.0.0.2")
	if err != nil || !added {
		t.Fatalf("first SAdd = %v, %v", added, err)
	}
	added, err = client.SAdd(ctx, key, "10.0.0.2")
	if err != nil || added {
		t.Fatalf("second SAdd = %v, %v; want false", added, err)
	}
	if ok, _ := mini.SIsMember(key, "10.0.0.2"); !ok {
		t.Error("member should be visible in the server")
	}

	members, err := client.SMembers(ctx, key)
	if err != nil || len(members) != 1 {
		t.Fatalf("SMembers = %v, %v", members, err)
	}

	if err := client.SRem(ctx, key, "10.0.0.2"); err != nil {
		t.Fatal(err)
	}
	if err := client.SRem(ctx, key, "10.0.0.2"); err != nil {
		t.Errorf("SRem of absent member: %v", err)
	}
	if ok, _ := client.SIsMember(ctx, key, "10.0.0.2"); ok {
		t.Error("member should be gone")
	}
}

func TestSAddExactlyOnceUnderContention(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := client.SAdd(ctx, "k", "node"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("wins = %d, want 1", wins.Load())
	}
}

func TestGetMissing(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Get(context.Background(), "absent")
	if !IsNil(err) {
		t.Errorf("err = %v, want Nil", err)
	}
}

func TestComponentHealth(t *testing.T) {
	mini := miniredis.RunT(t)
	ctx := context.Background()
	c := NewComponent(Config{Addr: mini.Addr()}, logger.Nop())
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Stop(ctx) //nolint:errcheck

	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("Health = %+v", h)
	}
	mini.Close()
	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("Health after server close = %+v", h)
	}
}
