// Package memory is the in-process room registry. Rooms live for the
// process lifetime except for a bounded idle eviction: a room that
// stays empty for the configured duration is reclaimed.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/duetroom/duetroom/backend/room"
	"github.com/rs/zerolog"
)

const (
	defaultEvictAfter = 30 * time.Minute
)

var (
	ErrRoomNotFound  = errors.New("room is not found")
	ErrInvalidSecret = errors.New("invalid secret")
)

type Store struct {
	logger     zerolog.Logger
	mx         *sync.Mutex
	rooms      map[string]*room.Actor
	evictions  map[string]*time.Timer
	evictGens  map[string]uint64
	evictSeq   uint64
	deliver    room.Deliverer
	evictAfter time.Duration
	crownTTL   time.Duration
}

type Config struct {
	Deliverer  room.Deliverer
	Logger     *zerolog.Logger
	EvictAfter time.Duration
	CrownTTL   time.Duration
}

func NewStore(cfg Config) *Store {
	evictAfter := cfg.EvictAfter
	if evictAfter == 0 {
		evictAfter = defaultEvictAfter
	}
	return &Store{
		logger:     cfg.Logger.With().Str("component", "registry").Logger(),
		mx:         &sync.Mutex{},
		rooms:      make(map[string]*room.Actor),
		evictions:  make(map[string]*time.Timer),
		evictGens:  make(map[string]uint64),
		deliver:    cfg.Deliverer,
		evictAfter: evictAfter,
		crownTTL:   cfg.CrownTTL,
	}
}

// GetOrCreate resolves a join target. A missing room is created only
// when the caller brings a secret; an existing room requires an exact
// secret match. The secret is a low-value capability token, not a
// credential, so a plain compare is sufficient.
func (s *Store) GetOrCreate(roomID, secret string) (*room.Actor, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if actor, ok := s.rooms[roomID]; ok {
		if actor.Secret() != secret {
			return nil, ErrInvalidSecret
		}
		if t, ok := s.evictions[roomID]; ok {
			t.Stop()
			delete(s.evictions, roomID)
			delete(s.evictGens, roomID)
		}
		return actor, nil
	}

	if secret == "" {
		return nil, ErrRoomNotFound
	}

	actor := room.NewActor(room.Config{
		ID:        roomID,
		Secret:    secret,
		Deliverer: s.deliver,
		Logger:    &s.logger,
		CrownTTL:  s.crownTTL,
		OnEmpty:   s.roomEmptied,
	})
	go actor.Run()
	s.rooms[roomID] = actor
	s.logger.Debug().Str("roomID", roomID).Msg("room created")
	return actor, nil
}

func (s *Store) roomEmptied(roomID string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if t, ok := s.evictions[roomID]; ok {
		t.Stop()
	}
	s.evictSeq++
	gen := s.evictSeq
	s.evictGens[roomID] = gen
	s.evictions[roomID] = time.AfterFunc(s.evictAfter, func() {
		s.evict(roomID, gen)
	})
}

// evict runs from the eviction timer. A timer that was cancelled by a
// join may still fire while losing the race for the lock, so the room
// is only reclaimed when the scheduled eviction is the one that fired.
func (s *Store) evict(roomID string, gen uint64) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.evictGens[roomID] != gen {
		return
	}
	delete(s.evictions, roomID)
	delete(s.evictGens, roomID)
	actor, ok := s.rooms[roomID]
	if !ok || !actor.Empty() {
		return
	}
	actor.Stop()
	delete(s.rooms, roomID)
	s.logger.Debug().Str("roomID", roomID).Msg("empty room evicted")
}

// Shutdown stops all room actors. Used on process shutdown only.
func (s *Store) Shutdown() {
	s.mx.Lock()
	defer s.mx.Unlock()

	for id, t := range s.evictions {
		t.Stop()
		delete(s.evictions, id)
		delete(s.evictGens, id)
	}
	for id, actor := range s.rooms {
		actor.Stop()
		delete(s.rooms, id)
	}
}
