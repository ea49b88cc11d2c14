// Package room implements the per-room actor. All mutations of one
// room's state go through a single goroutine consuming a command
// channel, so event handling within a room is strictly sequential
// while independent rooms run fully in parallel.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/duetroom/duetroom/backend/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultCrownTTL = 5 * time.Second
	activityLogCap  = 200
	maxParticipants = 2
)

var (
	ErrRoomFull = errors.New("room is full (max 2)")
)

// Deliverer moves envelopes to connected endpoints. Implemented by the
// switch; faked in tests.
type Deliverer interface {
	Connect(roomID, connID string, wire model.Wire)
	Disconnect(roomID, connID string)
	Broadcast(ctx context.Context, roomID string, env model.Envelope, except string) bool
	Send(ctx context.Context, roomID, connID string, env model.Envelope) bool
}

type Config struct {
	ID        string
	Secret    string
	Deliverer Deliverer
	Logger    *zerolog.Logger
	CrownTTL  time.Duration
	// OnEmpty is called from the actor goroutine after the last
	// participant leaves.
	OnEmpty func(roomID string)
}

type joinRequest struct {
	connID string
	name   string
	wire   model.Wire
	reply  chan joinResult
}

type joinResult struct {
	role model.Role
	err  error
}

type command struct {
	src         string
	env         model.Envelope
	join        *joinRequest
	leave       bool
	expireCrown string // clear crown if it still targets this id
	sync        chan struct{}
}

type Actor struct {
	id       string
	secret   string
	logger   zerolog.Logger
	deliver  Deliverer
	crownTTL time.Duration
	onEmpty  func(string)
	rng      *rand.Rand

	cmds  chan command
	done  chan struct{}
	count atomic.Int32

	// Everything below is owned by the run loop.
	participants []*model.Participant
	sharing      bool
	sharerID     string
	trackTitle   string
	ratings      map[string]int
	crownedID    string
	crownTimer   *time.Timer
	game         *model.GameState
	puzzle       *model.PuzzleState
	activityLog  []model.LogEntry
}

func NewActor(cfg Config) *Actor {
	ttl := cfg.CrownTTL
	if ttl == 0 {
		ttl = defaultCrownTTL
	}
	return &Actor{
		id:       cfg.ID,
		secret:   cfg.Secret,
		logger:   cfg.Logger.With().Str("component", "room").Str("roomID", cfg.ID).Logger(),
		deliver:  cfg.Deliverer,
		crownTTL: ttl,
		onEmpty:  cfg.OnEmpty,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cmds:     make(chan command),
		done:     make(chan struct{}),
		ratings:  make(map[string]int),
	}
}

func (a *Actor) Run() {
	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.cmds:
			a.handle(cmd)
		}
	}
}

func (a *Actor) Stop() {
	close(a.done)
}

func (a *Actor) Secret() string {
	return a.secret
}

// Empty is safe to call from outside the actor goroutine.
func (a *Actor) Empty() bool {
	return a.count.Load() == 0
}

func (a *Actor) post(cmd command) {
	select {
	case a.cmds <- cmd:
	case <-a.done:
	}
}

// Join registers a connection with the room and blocks until the actor
// has processed it. Identity is resolved by display name: a join with a
// name already present adopts that participant's role and replaces its
// connection id instead of consuming a slot.
func (a *Actor) Join(connID, name string, wire model.Wire) (model.Role, error) {
	reply := make(chan joinResult, 1)
	a.post(command{join: &joinRequest{connID: connID, name: name, wire: wire, reply: reply}})
	select {
	case res := <-reply:
		return res.role, res.err
	case <-a.done:
		return "", errors.New("room is shut down")
	}
}

// Leave releases the connection's slot. Safe to call for connection ids
// that were already replaced by a reconnect.
func (a *Actor) Leave(connID string) {
	a.post(command{src: connID, leave: true})
}

// Dispatch hands an in-room event to the actor. Never blocks the caller
// beyond the actor's queue.
func (a *Actor) Dispatch(src string, env model.Envelope) {
	a.post(command{src: src, env: env})
}

// sync waits until all previously posted commands are handled. Used by
// tests to observe a settled state.
func (a *Actor) sync() {
	ch := make(chan struct{})
	a.post(command{sync: ch})
	select {
	case <-ch:
	case <-a.done:
	}
}

func (a *Actor) handle(cmd command) {
	switch {
	case cmd.join != nil:
		a.handleJoin(cmd.join)
	case cmd.leave:
		a.handleLeave(cmd.src)
	case cmd.expireCrown != "":
		a.handleCrownExpiry(cmd.expireCrown)
	case cmd.sync != nil:
		close(cmd.sync)
	default:
		a.handleEvent(cmd.src, cmd.env)
	}
}

func (a *Actor) handleEvent(src string, env model.Envelope) {
	switch env.Event {
	case model.EventChatSend:
		a.handleChat(src, env.Data)
	case model.EventReactionSend:
		a.handleReaction(src, env.Data)
	case model.EventMediaToggle:
		a.handleMediaToggle(src, env.Data)
	case model.EventShareStart:
		a.handleShareStart(src)
	case model.EventShareStop:
		a.handleShareStop(src)
	case model.EventCrown:
		a.handleCrown(src, env.Data)
	case model.EventSetTrack:
		a.handleSetTrack(src, env.Data)
	case model.EventRatingSubmit:
		a.handleRatingSubmit(src, env.Data)
	case model.EventActivityFetch:
		a.handleActivityFetch(src)
	case model.EventSignal:
		a.handleSignal(src, env.Data)
	case model.EventValentine:
		a.handleValentine(src)
	case model.EventGameStart:
		a.handleGameStart(src, env.Data)
	case model.EventGameMove:
		a.handleGameMove(src, env.Data)
	case model.EventGameReset:
		a.handleGameReset(src)
	case model.EventGameClose:
		a.handleGameClose(src)
	case model.EventPuzzleOpen:
		a.handlePuzzleOpen(src)
	case model.EventPuzzleShuffle:
		a.handlePuzzleShuffle(src)
	case model.EventPuzzleMove:
		a.handlePuzzleMove(src, env.Data)
	default:
		a.logger.Debug().Str("event", env.Event).Msg("unknown event, ignored")
	}
}

func (a *Actor) handleJoin(req *joinRequest) {
	if existing := a.byName(req.name); existing != nil {
		// Same human reconnecting (refresh, flaky network, duplicate
		// connection during remount): keep the role, swap the
		// connection id, reset transient media flags.
		existing.ID = req.connID
		existing.MicMuted = false
		existing.CamOff = false

		a.deliver.Connect(a.id, req.connID, req.wire)
		a.finishJoin(existing, false)
		req.reply <- joinResult{role: existing.Role}
		return
	}

	if len(a.participants) >= maxParticipants {
		req.reply <- joinResult{err: ErrRoomFull}
		return
	}

	role := model.RoleGuest
	if a.byRole(model.RoleHost) == nil {
		role = model.RoleHost
	}
	p := &model.Participant{ID: req.connID, Name: req.name, Role: role}
	created := len(a.participants) == 0
	a.participants = append(a.participants, p)
	a.count.Store(int32(len(a.participants)))

	a.deliver.Connect(a.id, req.connID, req.wire)
	a.finishJoin(p, created)
	req.reply <- joinResult{role: role}
}

func (a *Actor) finishJoin(p *model.Participant, created bool) {
	a.broadcastState()
	a.broadcast(model.EventUserJoined, model.UserJoined{ID: p.ID, Name: p.Name}, "")
	if created {
		a.logActivity(model.LogJoin, "Room created by "+p.Name, "✨")
	}
	icon := "👋"
	if p.Role == model.RoleHost {
		icon = "👑"
	}
	a.logActivity(model.LogJoin, p.Name+" joined as "+string(p.Role), icon)
	a.logger.Debug().Str("connID", p.ID).Str("name", p.Name).Msg("participant joined")
}

func (a *Actor) handleLeave(connID string) {
	a.deliver.Disconnect(a.id, connID)

	idx := -1
	for i, p := range a.participants {
		if p.ID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Connection id already replaced by a reconnect; only the wire
		// needed releasing.
		return
	}
	p := a.participants[idx]
	a.participants = append(a.participants[:idx], a.participants[idx+1:]...)
	a.count.Store(int32(len(a.participants)))

	if a.sharing && a.sharerID == connID {
		a.sharing = false
		a.sharerID = ""
	}
	a.broadcastState()
	a.broadcast(model.EventUserLeft, model.UserLeft{ID: connID}, "")
	a.logActivity(model.LogLeave, p.Name+" left", "🚪")
	a.logger.Debug().Str("connID", connID).Str("name", p.Name).Msg("participant left")

	if len(a.participants) == 0 && a.onEmpty != nil {
		a.onEmpty(a.id)
	}
}

func (a *Actor) byName(name string) *model.Participant {
	for _, p := range a.participants {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (a *Actor) byID(connID string) *model.Participant {
	for _, p := range a.participants {
		if p.ID == connID {
			return p
		}
	}
	return nil
}

func (a *Actor) byRole(role model.Role) *model.Participant {
	for _, p := range a.participants {
		if p.Role == role {
			return p
		}
	}
	return nil
}

func (a *Actor) other(connID string) *model.Participant {
	for _, p := range a.participants {
		if p.ID != connID {
			return p
		}
	}
	return nil
}

func (a *Actor) snapshot() model.Room {
	return model.Room{
		ID:            a.id,
		Participants:  a.participants,
		ScreenSharing: a.sharing,
		SharerID:      a.sharerID,
		TrackTitle:    a.trackTitle,
		Ratings:       a.ratings,
		CrownedID:     a.crownedID,
		Game:          a.game,
		Puzzle:        a.puzzle,
	}
}

func (a *Actor) broadcastState() {
	a.broadcast(model.EventRoomState, a.snapshot(), "")
}

func (a *Actor) broadcast(event string, payload any, except string) {
	env, err := envelope(event, payload)
	if err != nil {
		a.logger.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast payload")
		return
	}
	a.deliver.Broadcast(context.Background(), a.id, env, except)
}

func (a *Actor) sendTo(connID, event string, payload any) {
	env, err := envelope(event, payload)
	if err != nil {
		a.logger.Error().Err(err).Str("event", event).Msg("failed to marshal payload")
		return
	}
	a.deliver.Send(context.Background(), a.id, connID, env)
}

func envelope(event string, payload any) (model.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return model.Envelope{}, err
	}
	return model.Envelope{Event: event, Data: data}, nil
}

func (a *Actor) logActivity(entryType, message, icon string) {
	entry := model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Type:      entryType,
		Message:   message,
		Icon:      icon,
	}
	a.activityLog = append([]model.LogEntry{entry}, a.activityLog...)
	if len(a.activityLog) > activityLogCap {
		a.activityLog = a.activityLog[:activityLogCap]
	}
	if host := a.byRole(model.RoleHost); host != nil {
		a.sendTo(host.ID, model.EventActivityLog, []model.LogEntry{entry})
	}
}
