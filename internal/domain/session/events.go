package session

import (
	"context"
	"time"
)

// Event is something a chat client reported about its connection. Clients
// emit these in order; a Session turns each one into a state transition.
type Event interface {
	eventName() string
}

type QRCode struct {
	Code string
}

type Ready struct {
	Identity Identity
}

type Message struct {
	ID        string
	From      string
	To        string
	// Chat is the conversation the message belongs to; a group JID for
	// group messages, otherwise the peer.
	Chat      string
	Body      string
	Type      string
	FromMe    bool
	Timestamp time.Time
	HasMedia  bool

	// Download fetches the attachment. Nil when HasMedia is false.
	Download func(ctx context.Context) (*Media, error)
}

type Disconnected struct {
	Reason string
}

type AuthFailed struct {
	Err string
}

func (QRCode) eventName() string       { return "qr" }
func (Ready) eventName() string        { return "ready" }
func (Message) eventName() string      { return "message" }
func (Disconnected) eventName() string { return "disconnected" }
func (AuthFailed) eventName() string   { return "auth_failure" }

// EventName returns a short name for logging.
func EventName(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventName()
}
