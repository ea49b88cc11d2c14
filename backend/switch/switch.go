package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/duetroom/duetroom/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimout = time.Second
)

// Switch is the delivery fabric between room actors and connection
// wires. It owns no room semantics: actors decide what to send, the
// switch only knows which wires belong to which room.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]map[string]model.Wire
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]map[string]model.Wire),
	}
}

func (sw *Switch) Connect(roomID, connID string, wire model.Wire) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("connID", connID).
			Msg("endpoint connected")
	}()

	room, ok := sw.fwd[roomID]
	if !ok {
		room = make(map[string]model.Wire)
	}
	room[connID] = wire
	sw.fwd[roomID] = room
}

func (sw *Switch) Disconnect(roomID, connID string) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("connID", connID).
			Msg("endpoint disconnected")
	}()

	room, ok := sw.fwd[roomID]
	if ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(sw.fwd, roomID)
		}
	}
}

// Broadcast forwards env to every wire in the room except the one
// identified by except (empty means everyone). Returns whether anyone
// received it; a room with no other members is not an error.
func (sw *Switch) Broadcast(ctx context.Context, roomID string, env model.Envelope, except string) bool {
	sw.mx.RLock()
	room := sw.fwd[roomID]
	wires := make(map[string]model.Wire, len(room))
	for connID, wire := range room {
		wires[connID] = wire
	}
	sw.mx.RUnlock()

	var sent bool
	for connID, wire := range wires {
		if connID == except {
			continue
		}
		ok, canceled := sw.send(ctx, connID, env, wire.TX)
		if canceled {
			break
		}
		if ok {
			sent = true
		}
	}
	if !sent {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("event", env.Event).
			Msg("broadcast did not reach anyone")
	}
	return sent
}

// Send forwards env to a single endpoint.
func (sw *Switch) Send(ctx context.Context, roomID, connID string, env model.Envelope) bool {
	sw.mx.RLock()
	wire, ok := sw.fwd[roomID][connID]
	sw.mx.RUnlock()

	if !ok {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("connID", connID).
			Msg("cannot forward, dst not found")
		return false
	}
	sent, _ := sw.send(ctx, connID, env, wire.TX)
	return sent
}

func (sw *Switch) send(ctx context.Context, connID string, env model.Envelope, tx chan<- model.Envelope) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(defaultFwdTimout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
		sw.logger.Error().Str("dst", connID).Msg("dead endpoint")
	case tx <- env:
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}
