package dispatch

import (
	"context"
	"slices"
	"sync"

	"github.com/701789262a/backend-dailychat/redis"
)

// BusySet holds the addresses of nodes that are running a job.
type BusySet interface {
	// Add marks address busy. It returns false when it already was, so
	// exactly one concurrent caller wins a given node.
	Add(ctx context.Context, address string) (bool, error)
	// Remove clears the mark. Removing an absent address is not an error.
	Remove(ctx context.Context, address string) error
	Contains(ctx context.Context, address string) (bool, error)
	Members(ctx context.Context) ([]string, error)
}

// MemoryBusySet is a process-local BusySet.
type MemoryBusySet struct {
	mu      sync.Mutex
	members map[string]struct{}
}

func NewMemoryBusySet() *MemoryBusySet {
	return &MemoryBusySet{members: make(map[string]struct{})}
}

func (s *MemoryBusySet) Add(_ context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[address]; ok {
		return false, nil
	}
	s.members[address] = struct{}{}
	return true, nil
}

func (s *MemoryBusySet) Remove(_ context.Context, address string) error {
	s.mu.Lock()
	delete(s.members, address)
	s.mu.Unlock()
	return nil
}

func (s *MemoryBusySet) Contains(_ context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[address]
	return ok, nil
}

func (s *MemoryBusySet) Members(context.Context) ([]string, error) {
	s.mu.Lock()
	out := make([]string, 0, len(s.members))
	for a := range s.members {
		out = append(out, a)
	}
	s.mu.Unlock()
	slices.Sort(out)
	return out, nil
}

// RedisBusySet keeps the set in redis so several dispatcher replicas share
// one view of busy nodes. SADD's reply count gives exactly-once Add.
type RedisBusySet struct {
	client *redis.Client
	key    string
}

func NewRedisBusySet(client *redis.Client) *RedisBusySet {
	return &RedisBusySet{client: client, key: client.Key("dispatch", "busy")}
}

func (s *RedisBusySet) Add(ctx context.Context, address string) (bool, error) {
	return s.client.SAdd(ctx, s.key, address)
}

func (s *RedisBusySet) Remove(ctx context.Context, address string) error {
	return s.client.SRem(ctx, s.key, address)
}

func (s *RedisBusySet) Contains(ctx context.Context, address string) (bool, error) {
	return s.client.SIsMember(ctx, s.key, address)
}

func (s *RedisBusySet) Members(ctx context.Context) ([]string, error) {
	out, err := s.client.SMembers(ctx, s.key)
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}
