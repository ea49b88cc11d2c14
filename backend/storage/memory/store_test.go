package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duetroom/duetroom/backend/model"
	"github.com/rs/zerolog"
)

type nopDeliverer struct{}

func (nopDeliverer) Connect(string, string, model.Wire) {}
func (nopDeliverer) Disconnect(string, string)          {}
func (nopDeliverer) Broadcast(context.Context, string, model.Envelope, string) bool {
	return true
}
func (nopDeliverer) Send(context.Context, string, string, model.Envelope) bool {
	return true
}

func newTestStore(evictAfter time.Duration) *Store {
	logger := zerolog.Nop()
	return NewStore(Config{
		Deliverer:  nopDeliverer{},
		Logger:     &logger,
		EvictAfter: evictAfter,
	})
}

func TestGetOrCreate(t *testing.T) {
	s := newTestStore(0)
	defer s.Shutdown()

	t.Run("missing room without secret", func(t *testing.T) {
		if _, err := s.GetOrCreate("nope", ""); !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("err = %v, want ErrRoomNotFound", err)
		}
	})

	t.Run("create with secret", func(t *testing.T) {
		actor, err := s.GetOrCreate("r1", "tok")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if actor.Secret() != "tok" {
			t.Errorf("secret = %q", actor.Secret())
		}
	})

	t.Run("existing room requires exact secret", func(t *testing.T) {
		if _, err := s.GetOrCreate("r1", "TOK"); !errors.Is(err, ErrInvalidSecret) {
			t.Errorf("err = %v, want ErrInvalidSecret", err)
		}
		if _, err := s.GetOrCreate("r1", ""); !errors.Is(err, ErrInvalidSecret) {
			t.Errorf("empty secret err = %v, want ErrInvalidSecret", err)
		}
	})

	t.Run("same secret returns same actor", func(t *testing.T) {
		a1, _ := s.GetOrCreate("r1", "tok")
		a2, err := s.GetOrCreate("r1", "tok")
		if err != nil {
			t.Fatal(err)
		}
		if a1 != a2 {
			t.Error("second join created a different room actor")
		}
	})
}

func TestEmptyRoomEviction(t *testing.T) {
	s := newTestStore(30 * time.Millisecond)
	defer s.Shutdown()

	actor, err := s.GetOrCreate("r1", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = actor.Join("c1", "alice", model.NewWire()); err != nil {
		t.Fatal(err)
	}
	actor.Leave("c1")

	time.Sleep(120 * time.Millisecond)

	// The old secret is gone with the room: a join with a different
	// secret now creates a fresh one instead of failing.
	fresh, err := s.GetOrCreate("r1", "other")
	if err != nil {
		t.Fatalf("room was not evicted: %v", err)
	}
	if fresh == actor {
		t.Error("evicted actor handle was reused")
	}
}

// waitForScheduledEviction blocks until the room's leave has been
// processed and its eviction timer armed; leaves are asynchronous.
func waitForScheduledEviction(t *testing.T, s *Store, roomID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mx.Lock()
		_, armed := s.evictions[roomID]
		s.mx.Unlock()
		if armed {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("eviction never scheduled")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStaleEvictionTimerDoesNotReclaim(t *testing.T) {
	s := newTestStore(time.Hour)
	defer s.Shutdown()

	actor, _ := s.GetOrCreate("r1", "tok")
	if _, err := actor.Join("c1", "alice", model.NewWire()); err != nil {
		t.Fatal(err)
	}
	actor.Leave("c1")
	waitForScheduledEviction(t, s, "r1")

	// A join cancels the scheduled eviction, but the old timer may
	// already have fired and be waiting on the lock. Replay that
	// callback with the generation the cancelled timer carried.
	again, err := s.GetOrCreate("r1", "tok")
	if err != nil || again != actor {
		t.Fatalf("dormant room not reachable: %v", err)
	}
	s.evict("r1", 1)

	current, err := s.GetOrCreate("r1", "tok")
	if err != nil || current != actor {
		t.Fatalf("stale timer reclaimed the room: %v", err)
	}
	if _, err = current.Join("c2", "alice", model.NewWire()); err != nil {
		t.Fatalf("actor was stopped by the stale timer: %v", err)
	}
}

func TestRejoinCancelsEviction(t *testing.T) {
	s := newTestStore(40 * time.Millisecond)
	defer s.Shutdown()

	actor, _ := s.GetOrCreate("r1", "tok")
	if _, err := actor.Join("c1", "alice", model.NewWire()); err != nil {
		t.Fatal(err)
	}
	actor.Leave("c1")

	// Come back before the eviction deadline.
	time.Sleep(10 * time.Millisecond)
	again, err := s.GetOrCreate("r1", "tok")
	if err != nil || again != actor {
		t.Fatalf("dormant room not reachable: %v", err)
	}
	if _, err = again.Join("c2", "alice", model.NewWire()); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	current, err := s.GetOrCreate("r1", "tok")
	if err != nil {
		t.Fatalf("occupied room evicted: %v", err)
	}
	if current != actor {
		t.Error("occupied room replaced")
	}
}
