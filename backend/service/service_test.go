package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/duetroom/duetroom/backend/model"
	"github.com/duetroom/duetroom/backend/storage/memory"
	sw "github.com/duetroom/duetroom/backend/switch"
	"github.com/rs/zerolog"
)

func newTestService() *Service {
	logger := zerolog.Nop()
	registry := memory.NewStore(memory.Config{
		Deliverer: sw.NewSwitch(&logger),
		Logger:    &logger,
	})
	return NewService(Config{Registry: registry, Logger: &logger})
}

func sessionWire() model.Wire {
	return model.Wire{
		RX: make(chan model.Envelope, 4),
		TX: make(chan model.Envelope, 16),
	}
}

func joinEnv(t *testing.T, req model.JoinRequest) model.Envelope {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return model.Envelope{Event: model.EventJoin, Data: data}
}

func waitAck(t *testing.T, wire model.Wire) model.JoinAck {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-wire.TX:
			if env.Event != model.EventJoinAck {
				// Room state and join notices also land on the wire.
				continue
			}
			var ack model.JoinAck
			if err := json.Unmarshal(env.Data, &ack); err != nil {
				t.Fatal(err)
			}
			return ack
		case <-deadline:
			t.Fatal("no join ack received")
		}
	}
}

func TestJoinAckOK(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wire := sessionWire()
	svc.CreateSession(ctx, "c1", wire)
	wire.RX <- joinEnv(t, model.JoinRequest{RoomID: "r1", Secret: "tok", Name: "alice"})

	ack := waitAck(t, wire)
	if ack.Status != "ok" || ack.Role != model.RoleHost {
		t.Errorf("ack = %+v, want ok/host", ack)
	}
}

func TestJoinAckErrors(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("missing room without secret", func(t *testing.T) {
		wire := sessionWire()
		svc.CreateSession(ctx, "c1", wire)
		wire.RX <- joinEnv(t, model.JoinRequest{RoomID: "r-missing", Name: "alice"})
		ack := waitAck(t, wire)
		if ack.Status != "error" || ack.Error != "Room not found" {
			t.Errorf("ack = %+v", ack)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		w1 := sessionWire()
		svc.CreateSession(ctx, "h1", w1)
		w1.RX <- joinEnv(t, model.JoinRequest{RoomID: "r2", Secret: "tok", Name: "alice"})
		waitAck(t, w1)

		w2 := sessionWire()
		svc.CreateSession(ctx, "g1", w2)
		w2.RX <- joinEnv(t, model.JoinRequest{RoomID: "r2", Secret: "bad", Name: "bob"})
		ack := waitAck(t, w2)
		if ack.Status != "error" || ack.Error != "Invalid secret" {
			t.Errorf("ack = %+v", ack)
		}
	})

	t.Run("room full", func(t *testing.T) {
		names := []string{"alice", "bob", "mallory"}
		var last model.JoinAck
		for _, name := range names {
			w := sessionWire()
			svc.CreateSession(ctx, name, w)
			w.RX <- joinEnv(t, model.JoinRequest{RoomID: "r3", Secret: "tok", Name: name})
			last = waitAck(t, w)
		}
		if last.Status != "error" || last.Error != "Room is full (max 2)" {
			t.Errorf("third ack = %+v", last)
		}
	})
}

func TestRejoinOnBoundSessionIsAcked(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wire := sessionWire()
	svc.CreateSession(ctx, "c1", wire)
	req := model.JoinRequest{RoomID: "r1", Secret: "tok", Name: "alice"}
	wire.RX <- joinEnv(t, req)
	if first := waitAck(t, wire); first.Status != "ok" {
		t.Fatalf("first ack = %+v", first)
	}

	// Same join re-emitted on the still-bound session: a UI remount
	// that kept the socket alive. The client blocks on the ack.
	wire.RX <- joinEnv(t, req)
	second := waitAck(t, wire)
	if second.Status != "ok" || second.Role != model.RoleHost {
		t.Errorf("second ack = %+v, want ok/host", second)
	}
}

func TestEventsBeforeJoinIgnored(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wire := sessionWire()
	svc.CreateSession(ctx, "c1", wire)
	wire.RX <- model.Envelope{Event: model.EventChatSend, Data: json.RawMessage(`{"text":"hi"}`)}
	wire.RX <- joinEnv(t, model.JoinRequest{RoomID: "r1", Secret: "tok", Name: "alice"})

	ack := waitAck(t, wire)
	if ack.Status != "ok" {
		t.Errorf("join after stray event failed: %+v", ack)
	}
}
