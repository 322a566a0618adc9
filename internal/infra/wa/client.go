package wa

import (
	"context"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	walog "go.mau.fi/whatsmeow/util/log"
)

// Client is one live chat connection. Implementations report what happens
// to the connection through ClientConfig.Emit, in order.
type Client interface {
	// Start launches the connection and returns once it is underway, not
	// once it succeeded.
	Start(ctx context.Context) error
	SendMessage(ctx context.Context, to, body string) (session.Receipt, error)
	SendMedia(ctx context.Context, to string, media *session.Media, caption string) (session.Receipt, error)
	GetContact(ctx context.Context, jid string) (*session.Contact, error)
	// Logout unlinks the device on the server side.
	Logout(ctx context.Context) error
	// Destroy closes the connection gracefully.
	Destroy(ctx context.Context) error
	// Kill releases everything the client holds without waiting on the
	// network. Used when Destroy failed.
	Kill() error
}

type ClientConfig struct {
	UserID string
	// Dir is the user's credential directory.
	Dir  string
	Emit func(session.Event)
	Log  walog.Logger
}

type ClientFactory func(ctx context.Context, cfg ClientConfig) (Client, error)

// MediaFetcher resolves a media reference into bytes.
type MediaFetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*session.Media, error)
}

// Notifier receives the webhook notifications of every session.
type Notifier interface {
	Notify(n session.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(session.Notification) {}
