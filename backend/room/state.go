package room

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/duetroom/duetroom/backend/model"
	"github.com/google/uuid"
)

func (a *Actor) handleChat(src string, data json.RawMessage) {
	p := a.byID(src)
	if p == nil {
		return
	}
	var req model.ChatSend
	if err := json.Unmarshal(data, &req); err != nil || req.Text == "" {
		return
	}
	msg := model.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   src,
		SenderName: p.Name,
		Text:       req.Text,
		Timestamp:  time.Now().UnixMilli(),
	}
	// Fire-and-forward: chat is not stored server-side.
	a.broadcast(model.EventChatMessage, msg, "")
}

func (a *Actor) handleReaction(src string, data json.RawMessage) {
	if a.byID(src) == nil {
		return
	}
	var req model.ReactionSend
	if err := json.Unmarshal(data, &req); err != nil || req.Emoji == "" {
		return
	}
	a.broadcast(model.EventReactionShow, model.ReactionShow{SenderID: src, Emoji: req.Emoji}, "")
}

func (a *Actor) handleMediaToggle(src string, data json.RawMessage) {
	p := a.byID(src)
	if p == nil {
		return
	}
	var req model.MediaToggle
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	if p.MicMuted != req.MicMuted {
		if req.MicMuted {
			a.logActivity(model.LogMedia, p.Name+" muted mic", "🔇")
		} else {
			a.logActivity(model.LogMedia, p.Name+" unmuted mic", "🎙️")
		}
	}
	if p.CamOff != req.CamOff {
		if req.CamOff {
			a.logActivity(model.LogMedia, p.Name+" turned off camera", "📷")
		} else {
			a.logActivity(model.LogMedia, p.Name+" turned on camera", "📸")
		}
	}
	p.MicMuted = req.MicMuted
	p.CamOff = req.CamOff
	a.broadcastState()
}

func (a *Actor) handleShareStart(src string) {
	p := a.byID(src)
	if p == nil {
		return
	}
	a.sharing = true
	a.sharerID = src
	a.broadcastState()
	a.broadcast(model.EventShareStarted, model.ShareStarted{SharerID: src}, "")
	a.logActivity(model.LogShare, p.Name+" started screen sharing", "💻")
}

func (a *Actor) handleShareStop(src string) {
	p := a.byID(src)
	if p == nil {
		return
	}
	// Only the current sharer may clear the share flag.
	if a.sharerID != src {
		return
	}
	a.sharing = false
	a.sharerID = ""
	a.broadcastState()
	a.broadcast(model.EventShareStopped, struct{}{}, "")
	a.logActivity(model.LogShare, p.Name+" stopped sharing", "⏹️")
}

func (a *Actor) handleCrown(src string, data json.RawMessage) {
	p := a.byID(src)
	if p == nil || p.Role != model.RoleHost {
		return
	}
	var req model.CrownRequest
	if err := json.Unmarshal(data, &req); err != nil || req.TargetID == "" {
		return
	}
	target := a.byID(req.TargetID)
	if target == nil {
		return
	}
	a.crown(req.TargetID)
	a.logActivity(model.LogCrown, target.Name+" got the crown", "👑")
}

// crown sets the crowned participant and (re)arms the auto-clear timer.
// The expiry command carries the target id, so a stale timer never
// clears a newer crown.
func (a *Actor) crown(targetID string) {
	if a.crownTimer != nil {
		a.crownTimer.Stop()
	}
	a.crownedID = targetID
	a.broadcastState()
	a.crownTimer = time.AfterFunc(a.crownTTL, func() {
		a.post(command{expireCrown: targetID})
	})
}

func (a *Actor) handleCrownExpiry(targetID string) {
	if a.crownedID != targetID {
		return
	}
	a.crownedID = ""
	a.broadcastState()
}

func (a *Actor) handleSetTrack(src string, data json.RawMessage) {
	p := a.byID(src)
	if p == nil || p.Role != model.RoleHost {
		return
	}
	var req model.TrackRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	a.trackTitle = req.Title
	// New track opens a fresh rating round.
	a.ratings = make(map[string]int)
	a.broadcastState()
	a.logActivity(model.LogRating, fmt.Sprintf("Track: %q", req.Title), "🎵")
}

func (a *Actor) handleRatingSubmit(src string, data json.RawMessage) {
	p := a.byID(src)
	if p == nil {
		return
	}
	var req model.RatingSubmit
	if err := json.Unmarshal(data, &req); err != nil || req.Value < 1 || req.Value > 10 {
		return
	}
	a.ratings[src] = req.Value

	if len(a.ratings) < maxParticipants {
		// Announce progress without revealing the value.
		a.broadcast(model.EventRatingProg, model.RatingProgress{RaterID: src}, "")
		a.broadcastState()
		a.logActivity(model.LogRating, fmt.Sprintf("%s rated %d/10", p.Name, req.Value), "📥")
		return
	}

	a.broadcastState()
	a.broadcast(model.EventRatingReveal, model.RatingReveal{Ratings: a.ratings}, "")

	values := make([]int, 0, len(a.ratings))
	for _, v := range a.ratings {
		values = append(values, v)
	}
	diff := values[0] - values[1]
	if diff < 0 {
		diff = -diff
	}
	icon := "⚖️"
	switch {
	case diff == 0:
		icon = "🔥"
	case diff <= 2:
		icon = "✨"
	}
	a.logActivity(model.LogRating,
		fmt.Sprintf("Ratings revealed: %d vs %d (diff: %d)", values[0], values[1], diff), icon)
}

func (a *Actor) handleActivityFetch(src string) {
	p := a.byID(src)
	if p == nil || p.Role != model.RoleHost {
		return
	}
	a.sendTo(src, model.EventActivityLog, a.activityLog)
}

// handleSignal is the relay: the payload is forwarded verbatim to every
// other member, never back to the sender, never inspected. A room with
// a single member silently drops the signal.
func (a *Actor) handleSignal(src string, data json.RawMessage) {
	if a.byID(src) == nil {
		return
	}
	var req model.SignalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	a.broadcast(model.EventSignal, model.SignalNotice{Sender: src, Signal: req.Signal}, src)
}

func (a *Actor) handleValentine(src string) {
	p := a.byID(src)
	if p == nil {
		return
	}
	a.broadcast(model.EventValentineSent, model.ValentineNotice{SenderID: src}, "")
	a.logActivity(model.LogValentine, p.Name+" sent a valentine", "💘")
}
