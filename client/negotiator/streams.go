package negotiator

// StreamSlot classifies a remote stream: the first distinct stream id
// observed is the primary (camera) stream, any later distinct id is the
// secondary (screen-share) stream. Tracks added to an already known id
// keep updating that same slot.
type StreamSlot int

const (
	StreamPrimary StreamSlot = iota
	StreamSecondary
)

func (s StreamSlot) String() string {
	if s == StreamPrimary {
		return "primary"
	}
	return "secondary"
}

type streamRouter struct {
	primaryID string
}

func (r *streamRouter) route(streamID string) StreamSlot {
	if r.primaryID == "" || r.primaryID == streamID {
		r.primaryID = streamID
		return StreamPrimary
	}
	return StreamSecondary
}

func (r *streamRouter) reset() {
	r.primaryID = ""
}
