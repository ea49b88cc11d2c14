// Package negotiator owns the client side of a room's peer connection:
// offer/answer sequencing, trickle-ICE candidate queueing, track
// management and remote stream disambiguation. It consumes signals
// forwarded by the relay and emits signals back through a caller
// supplied sender; it never talks to the server directly.
package negotiator

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type signalType string

const (
	signalOffer     signalType = "offer"
	signalAnswer    signalType = "answer"
	signalCandidate signalType = "candidate"
)

// Signal is the opaque envelope exchanged via the relay. Only the two
// negotiating clients ever interpret it.
type Signal struct {
	Type      signalType                 `json:"type"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

var (
	ErrNoSender = errors.New("signal sender is not configured")
)

type Config struct {
	Logger     *zerolog.Logger
	ICEServers []webrtc.ICEServer
	// Send pushes an outbound signal into the relay.
	Send func(Signal) error
	// OnRemoteTrack receives every remote track together with the
	// logical slot its stream resolved to.
	OnRemoteTrack func(slot StreamSlot, track *webrtc.TrackRemote)
}

type Negotiator struct {
	mu     sync.Mutex
	logger zerolog.Logger
	cfg    Config

	pc      *webrtc.PeerConnection
	peerID  string
	pending []webrtc.ICECandidateInit
	router  streamRouter

	localTracks []webrtc.TrackLocal
	shareTracks []webrtc.TrackLocal
	senders     map[webrtc.TrackLocal]*webrtc.RTPSender
	shareIDs    map[string]struct{}
}

func New(cfg Config) (*Negotiator, error) {
	if cfg.Send == nil {
		return nil, ErrNoSender
	}
	return &Negotiator{
		logger:   cfg.Logger.With().Str("component", "negotiator").Logger(),
		cfg:      cfg,
		senders:  make(map[webrtc.TrackLocal]*webrtc.RTPSender),
		shareIDs: make(map[string]struct{}),
	}, nil
}

// HandlePeerJoined starts negotiation towards a newly present peer.
// The existing member initiates; a late joiner must not call this for
// peers that were already in the room when it joined.
func (n *Negotiator) HandlePeerJoined(peerID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.resetIfNewPeer(peerID)
	if err := n.ensurePeer(peerID); err != nil {
		return err
	}
	return n.sendOffer()
}

// HandleSignal applies one relayed signal. A signal from a peer id
// different from the tracked one tears the connection down and starts
// over: same human, new connection.
func (n *Negotiator) HandleSignal(sender string, sig Signal) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.resetIfNewPeer(sender)
	if err := n.ensurePeer(sender); err != nil {
		return err
	}

	switch sig.Type {
	case signalCandidate:
		if sig.Candidate == nil {
			return nil
		}
		if n.pc.RemoteDescription() == nil {
			// Candidates arriving before the remote description are
			// queued, never dropped.
			n.pending = append(n.pending, *sig.Candidate)
			n.logger.Debug().Msg("queueing candidate")
			return nil
		}
		return n.pc.AddICECandidate(*sig.Candidate)

	case signalOffer:
		if sig.SDP == nil {
			return nil
		}
		if err := n.pc.SetRemoteDescription(*sig.SDP); err != nil {
			return err
		}
		if err := n.flushCandidates(); err != nil {
			return err
		}
		answer, err := n.pc.CreateAnswer(nil)
		if err != nil {
			return err
		}
		if err = n.pc.SetLocalDescription(answer); err != nil {
			return err
		}
		return n.cfg.Send(Signal{Type: signalAnswer, SDP: n.pc.LocalDescription()})

	case signalAnswer:
		if sig.SDP == nil {
			return nil
		}
		if err := n.pc.SetRemoteDescription(*sig.SDP); err != nil {
			return err
		}
		return n.flushCandidates()
	}

	n.logger.Debug().Str("type", string(sig.Type)).Msg("unknown signal type, ignored")
	return nil
}

// AddLocalTracks attaches camera/mic tracks. Tracks are always added
// audio before video to keep m-line ordering identical on both sides.
// When the connection is already stable this kicks off a renegotiation;
// mid-negotiation the new tracks ride along with the exchange already
// in flight.
func (n *Negotiator) AddLocalTracks(tracks ...webrtc.TrackLocal) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.localTracks = append(n.localTracks, tracks...)
	if n.pc == nil {
		return nil
	}
	if err := n.attachOrdered(tracks); err != nil {
		return err
	}
	return n.renegotiate()
}

// StartShare attaches screen-share tracks and renegotiates.
func (n *Negotiator) StartShare(tracks ...webrtc.TrackLocal) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.shareTracks = append(n.shareTracks, tracks...)
	for _, t := range tracks {
		n.shareIDs[t.StreamID()] = struct{}{}
	}
	if n.pc == nil {
		return nil
	}
	if err := n.attachOrdered(tracks); err != nil {
		return err
	}
	return n.renegotiate()
}

// StopShare detaches all screen-share tracks and renegotiates.
func (n *Negotiator) StopShare() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, t := range n.shareTracks {
		if sender, ok := n.senders[t]; ok && n.pc != nil {
			if err := n.pc.RemoveTrack(sender); err != nil {
				n.logger.Error().Err(err).Msg("failed to remove track")
			}
		}
		delete(n.senders, t)
	}
	n.shareTracks = nil
	n.shareIDs = make(map[string]struct{})
	if n.pc == nil {
		return nil
	}
	return n.renegotiate()
}

// ShouldMutePlayback reports whether locally rendering the given stream
// would play the user's own shared screen back at them. Rendering such
// a stream must be zero-volume to avoid an audio feedback loop. Local
// policy only, not a negotiation concern.
func (n *Negotiator) ShouldMutePlayback(streamID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, ok := n.shareIDs[streamID]
	return ok
}

func (n *Negotiator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.teardown()
}

func (n *Negotiator) resetIfNewPeer(peerID string) {
	if n.peerID == "" || n.peerID == peerID {
		n.peerID = peerID
		return
	}
	n.logger.Debug().
		Str("old", n.peerID).
		Str("new", peerID).
		Msg("signal from different peer, rebuilding connection")
	if err := n.teardown(); err != nil {
		n.logger.Error().Err(err).Msg("teardown failed")
	}
	n.peerID = peerID
}

func (n *Negotiator) teardown() error {
	var err error
	if n.pc != nil {
		err = n.pc.Close()
		n.pc = nil
	}
	n.pending = nil
	n.senders = make(map[webrtc.TrackLocal]*webrtc.RTPSender)
	n.router.reset()
	return err
}

func (n *Negotiator) ensurePeer(peerID string) error {
	if n.pc != nil {
		return nil
	}
	n.peerID = peerID

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: n.cfg.ICEServers})
	if err != nil {
		return err
	}
	n.pc = pc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if sendErr := n.cfg.Send(Signal{Type: signalCandidate, Candidate: &init}); sendErr != nil {
			n.logger.Error().Err(sendErr).Msg("failed to send candidate")
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		n.mu.Lock()
		slot := n.router.route(track.StreamID())
		n.mu.Unlock()
		n.logger.Debug().
			Str("streamID", track.StreamID()).
			Str("kind", track.Kind().String()).
			Str("slot", slot.String()).
			Msg("remote track")
		if n.cfg.OnRemoteTrack != nil {
			n.cfg.OnRemoteTrack(slot, track)
		}
	})

	// Re-attach everything we already hold, camera first, then share,
	// audio before video within each group.
	if err = n.attachOrdered(n.localTracks); err != nil {
		return err
	}
	return n.attachOrdered(n.shareTracks)
}

func (n *Negotiator) attachOrdered(tracks []webrtc.TrackLocal) error {
	for _, t := range orderTracks(tracks) {
		if _, ok := n.senders[t]; ok {
			continue
		}
		sender, err := n.pc.AddTrack(t)
		if err != nil {
			return err
		}
		n.senders[t] = sender
	}
	return nil
}

// renegotiate sends a fresh offer only when the connection is stable;
// otherwise the change is folded into the negotiation in flight.
func (n *Negotiator) renegotiate() error {
	if n.pc.SignalingState() != webrtc.SignalingStateStable {
		n.logger.Debug().
			Str("state", n.pc.SignalingState().String()).
			Msg("not stable, track change rides along with pending negotiation")
		return nil
	}
	return n.sendOffer()
}

func (n *Negotiator) sendOffer() error {
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err = n.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return n.cfg.Send(Signal{Type: signalOffer, SDP: n.pc.LocalDescription()})
}

func (n *Negotiator) flushCandidates() error {
	for _, c := range n.pending {
		if err := n.pc.AddICECandidate(c); err != nil {
			return err
		}
	}
	n.pending = nil
	return nil
}

// orderTracks returns tracks with all audio tracks before all video
// tracks, preserving relative order within each kind.
func orderTracks(tracks []webrtc.TrackLocal) []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		if t.Kind() == webrtc.RTPCodecTypeAudio {
			out = append(out, t)
		}
	}
	for _, t := range tracks {
		if t.Kind() != webrtc.RTPCodecTypeAudio {
			out = append(out, t)
		}
	}
	return out
}
