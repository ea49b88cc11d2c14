package model

import "encoding/json"

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Participant is one of the two members of a room. ID is the current
// connection id and changes on reconnect; Name is the reconnection key.
type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	MicMuted bool   `json:"micMuted"`
	CamOff   bool   `json:"camOff"`
}

// Room is the full shared-state snapshot pushed to members on every change.
type Room struct {
	ID            string         `json:"roomId"`
	Participants  []*Participant `json:"users"`
	ScreenSharing bool           `json:"isScreenSharing"`
	SharerID      string         `json:"sharerId,omitempty"`
	TrackTitle    string         `json:"trackTitle"`
	Ratings       map[string]int `json:"ratings"`
	CrownedID     string         `json:"crownedUserId,omitempty"`
	Game          *GameState     `json:"gameState,omitempty"`
	Puzzle        *PuzzleState   `json:"puzzle,omitempty"`
}

type ChatMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// Activity log entry types.
const (
	LogJoin      = "join"
	LogLeave     = "leave"
	LogShare     = "share"
	LogMedia     = "media"
	LogRating    = "rating"
	LogCrown     = "crown"
	LogGame      = "game"
	LogPuzzle    = "puzzle"
	LogValentine = "valentine"
)

type LogEntry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Icon      string `json:"icon,omitempty"`
}

// Client to server events.
const (
	EventJoin          = "room:join"
	EventChatSend      = "chat:send"
	EventReactionSend  = "reaction:send"
	EventMediaToggle   = "media:toggle"
	EventShareStart    = "share:start"
	EventShareStop     = "share:stop"
	EventCrown         = "room:crown"
	EventSetTrack      = "rating:setTrack"
	EventRatingSubmit  = "rating:submit"
	EventActivityFetch = "activity:fetch"
	EventSignal        = "signal"
	EventGameStart     = "game:start"
	EventGameMove      = "game:move"
	EventGameReset     = "game:reset"
	EventGameClose     = "game:close"
	EventPuzzleOpen    = "puzzle:open"
	EventPuzzleMove    = "puzzle:moveRequest"
	EventPuzzleShuffle = "puzzle:shuffleRequest"
	EventValentine     = "room:valentine"
)

// Server to client events.
const (
	EventJoinAck       = "room:join:ack"
	EventRoomState     = "room:state"
	EventUserJoined    = "user:joined"
	EventUserLeft      = "user:left"
	EventChatMessage   = "chat:message"
	EventReactionShow  = "reaction:show"
	EventShareStarted  = "share:started"
	EventShareStopped  = "share:stopped"
	EventRatingProg    = "rating:progress"
	EventRatingReveal  = "rating:reveal"
	EventActivityLog   = "activity:log"
	EventGameStarted   = "game:started"
	EventGameUpdate    = "game:update"
	EventGameClosed    = "game:closed"
	EventGameWon       = "game:won"
	EventPuzzleState   = "puzzle:state"
	EventPuzzleSolved  = "puzzle:solved"
	EventValentineSent = "valentine:accepted"
)

// Envelope is the single message shape travelling over a connection in
// both directions. SRC is re-assigned server-side from the websocket
// session and never trusted from the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	SRC   string          `json:"-"`
}

type Wire struct {
	RX chan Envelope
	TX chan Envelope
}

func NewWire() Wire {
	return Wire{
		RX: make(chan Envelope),
		TX: make(chan Envelope),
	}
}

// Event payloads.

type JoinRequest struct {
	RoomID string `json:"roomId"`
	Secret string `json:"secret,omitempty"`
	Name   string `json:"name"`
}

type JoinAck struct {
	Status string `json:"status"`
	Role   Role   `json:"role,omitempty"`
	Error  string `json:"error,omitempty"`
}

type UserJoined struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserLeft struct {
	ID string `json:"id"`
}

type ChatSend struct {
	Text string `json:"text"`
}

type ReactionSend struct {
	Emoji string `json:"emoji"`
}

type ReactionShow struct {
	SenderID string `json:"senderId"`
	Emoji    string `json:"emoji"`
}

type MediaToggle struct {
	MicMuted bool `json:"micMuted"`
	CamOff   bool `json:"camOff"`
}

type ShareStarted struct {
	SharerID string `json:"sharerId"`
}

type CrownRequest struct {
	TargetID string `json:"targetId"`
}

type TrackRequest struct {
	Title string `json:"title"`
}

type RatingSubmit struct {
	Value int `json:"value"`
}

type RatingProgress struct {
	RaterID string `json:"raterId"`
}

type RatingReveal struct {
	Ratings map[string]int `json:"ratings"`
}

// SignalRequest carries an opaque negotiation payload from a client.
// The relay never looks inside Signal.
type SignalRequest struct {
	RoomID string          `json:"roomId"`
	Signal json.RawMessage `json:"signal"`
}

type SignalNotice struct {
	Sender string          `json:"sender"`
	Signal json.RawMessage `json:"signal"`
}

type GameStart struct {
	Type GameType `json:"type"`
}

type GameMove struct {
	Move json.RawMessage `json:"move"`
}

type GameWon struct {
	WinnerID   string   `json:"winnerId"`
	WinnerName string   `json:"winnerName"`
	Type       GameType `json:"type"`
}

type PuzzleRef struct {
	RoomID string `json:"roomId"`
}

type PuzzleMoveRequest struct {
	RoomID           string `json:"roomId"`
	TileIndex        int    `json:"tileIndex"`
	ExpectedRevision int    `json:"expectedRevision"`
}

type PuzzleStateNotice struct {
	State *PuzzleState `json:"state"`
}

type PuzzleSolvedNotice struct {
	SolvedRevision int `json:"solvedRevision"`
}

type ValentineNotice struct {
	SenderID string `json:"senderId"`
}
