package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/duetroom/duetroom/backend/model"
	"github.com/duetroom/duetroom/backend/room"
	"github.com/duetroom/duetroom/backend/storage/memory"
	"github.com/rs/zerolog"
)

const (
	ackTimeout = 2 * time.Second
)

type (
	Registry interface {
		GetOrCreate(roomID, secret string) (*room.Actor, error)
	}

	Service struct {
		registry Registry
		logger   zerolog.Logger
	}

	Config struct {
		Registry Registry
		Logger   *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger.With().Str("component", "api").Logger(),
	}
}

// CreateSession starts consuming a connection's inbound wire. The
// connection is unbound until its first valid room:join; every later
// event is handed to the bound room actor tagged with the connection
// id. Join-time errors are the only ones acknowledged to the caller;
// in-room errors are handled by silent rejection inside the actor.
func (svc *Service) CreateSession(ctx context.Context, connID string, wire model.Wire) {
	go svc.session(ctx, connID, wire)
	svc.logger.Debug().Str("connID", connID).Msg("session created")
}

func (svc *Service) session(ctx context.Context, connID string, wire model.Wire) {
	var actor *room.Actor
	defer func() {
		if actor != nil {
			actor.Leave(connID)
		}
		svc.logger.Debug().Str("connID", connID).Msg("session ended")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-wire.RX:
			if !ok {
				return
			}
			if env.Event == model.EventJoin {
				// Joins are acknowledged even on a bound session: a UI
				// remount re-emits room:join without reconnecting the
				// socket, and the client blocks on the ack.
				if next := svc.join(ctx, connID, wire, env.Data); next != nil {
					if actor != nil && next != actor {
						actor.Leave(connID)
					}
					actor = next
				}
				continue
			}
			if actor == nil {
				svc.logger.Debug().
					Str("connID", connID).
					Str("event", env.Event).
					Msg("event before join, ignored")
				continue
			}
			actor.Dispatch(connID, env)
		}
	}
}

func (svc *Service) join(ctx context.Context, connID string, wire model.Wire, data json.RawMessage) *room.Actor {
	var req model.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" || req.Name == "" {
		svc.ack(ctx, wire, model.JoinAck{Status: "error", Error: "invalid join request"})
		return nil
	}

	actor, err := svc.registry.GetOrCreate(req.RoomID, req.Secret)
	if err != nil {
		svc.ack(ctx, wire, model.JoinAck{Status: "error", Error: joinError(err)})
		return nil
	}
	role, err := actor.Join(connID, req.Name, wire)
	if err != nil {
		svc.ack(ctx, wire, model.JoinAck{Status: "error", Error: joinError(err)})
		return nil
	}

	svc.logger.Debug().
		Str("connID", connID).
		Str("roomID", req.RoomID).
		Str("role", string(role)).
		Msg("joined room")
	svc.ack(ctx, wire, model.JoinAck{Status: "ok", Role: role})
	return actor
}

func joinError(err error) string {
	switch {
	case errors.Is(err, memory.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, memory.ErrInvalidSecret):
		return "Invalid secret"
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full (max 2)"
	}
	return err.Error()
}

func (svc *Service) ack(ctx context.Context, wire model.Wire, ack model.JoinAck) {
	data, err := json.Marshal(ack)
	if err != nil {
		svc.logger.Error().Err(err).Msg("failed to marshal join ack")
		return
	}
	t := time.NewTimer(ackTimeout)
	defer t.Stop()
	select {
	case wire.TX <- model.Envelope{Event: model.EventJoinAck, Data: data}:
	case <-t.C:
		svc.logger.Error().Msg("join ack not consumed")
	case <-ctx.Done():
	}
}
