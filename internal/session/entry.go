package session

import (
	"time"

	"github.com/jwulff/vidchat/internal/analysis"
)

// Kind discriminates conversation entries.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindInfo      Kind = "info"
	KindError     Kind = "error"
)

// Entry is one immutable line of the conversation.
type Entry struct {
	ID        string                `json:"id"`
	Kind      Kind                  `json:"kind"`
	Text      string                `json:"text"`
	Media     []analysis.Occurrence `json:"media,omitempty"` // assistant entries only
	CreatedAt time.Time             `json:"createdAt"`
}

// Phase is the request lifecycle state of a session.
type Phase int

const (
	Idle Phase = iota
	AwaitingAnswer
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingAnswer:
		return "awaiting-answer"
	}
	return "unknown"
}

// VideoInfo describes the selected video for display.
type VideoInfo struct {
	Name string
	Path string
	Size int64
}

// Snapshot is a point-in-time copy of session state for rendering.
type Snapshot struct {
	Entries        []Entry
	Video          *VideoInfo
	RemoteVideoURI string
	Pending        bool
	LastError      string
}

// Phase derives the lifecycle state from the pending flag.
func (s Snapshot) Phase() Phase {
	if s.Pending {
		return AwaitingAnswer
	}
	return Idle
}
