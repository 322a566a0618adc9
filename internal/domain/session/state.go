package session

import (
	"encoding/base64"
	"time"
)

// State is the connection state of one user's session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwaitingScan  State = "awaiting_scan"
	StateConnected     State = "connected"
	StateDisconnected  State = "disconnected"
	StateError         State = "error"
)

// Identity is the account a session is logged in as.
type Identity struct {
	JID      string `json:"jid"`
	User     string `json:"user"`
	PushName string `json:"pushName,omitempty"`
}

// Status is a read-only view of a session, safe to hand to callers.
type Status struct {
	UserID    string
	Exists    bool
	Connected bool
	State     State
	Error     string
	Code      string
	Identity  *Identity
}

// Receipt is returned for every message the client accepted.
type Receipt struct {
	MessageID string
	Timestamp time.Time
}

type Contact struct {
	JID          string
	Number       string
	Name         string
	PushName     string
	BusinessName string
	Found        bool
}

// Media is a binary payload with its declared content type. It is used both
// for outgoing media and for attachments of incoming messages.
type Media struct {
	MimeType string
	Filename string
	Data     []byte
}

func (m *Media) Base64() string {
	if m == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(m.Data)
}
