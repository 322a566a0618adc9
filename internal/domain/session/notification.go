package session

import "time"

const (
	NotifyQRReady         = "qr-ready"
	NotifyConnected       = "connected"
	NotifyMessageReceived = "message-received"
	NotifyDisconnected    = "disconnected"
	NotifyAuthFailed      = "auth-failed"
)

// Notification is one webhook event for the backend.
type Notification struct {
	Event  string    `json:"event"`
	UserID string    `json:"userId"`
	Data   any       `json:"data"`
	At     time.Time `json:"timestamp"`
}

type QRReadyData struct {
	Code          string `json:"code"`
	RenderedImage string `json:"renderedImage,omitempty"`
}

type ConnectedData struct {
	Identity Identity `json:"identity"`
}

type AttachmentData struct {
	MimeType string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Data     string `json:"data"`
}

type MessageReceivedData struct {
	MessageID  string          `json:"messageId"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Chat       string          `json:"chat"`
	Body       string          `json:"body"`
	Type       string          `json:"type"`
	Timestamp  int64           `json:"timestamp"`
	HasMedia   bool            `json:"hasMedia"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
}

type DisconnectedData struct {
	Reason string `json:"reason"`
}

type AuthFailedData struct {
	Error string `json:"error"`
}
