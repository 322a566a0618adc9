// Package watest provides a scripted chat client and a recording notifier
// for exercising the session manager without a network.
package watest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type SentMessage struct {
	To      string
	Body    string
	Media   *session.Media
	Caption string
}

// Client is a fake wa.Client. Tests drive it with Emit.
type Client struct {
	cfg wa.ClientConfig

	mu         sync.Mutex
	started    bool
	loggedOut  bool
	destroyed  bool
	killed     bool
	sent       []SentMessage
	sendErrors map[string]error
	contacts   map[string]*session.Contact

	StartErr   error
	LogoutErr  error
	DestroyErr error
}

func (c *Client) Config() wa.ClientConfig {
	return c.cfg
}

// Emit delivers e the same way a real client would.
func (c *Client) Emit(e session.Event) {
	c.cfg.Emit(e)
}

// FailSendTo makes every send to the address `to` fail with err.
func (c *Client) FailSendTo(to string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErrors == nil {
		c.sendErrors = make(map[string]error)
	}
	c.sendErrors[to] = err
}

func (c *Client) AddContact(contact *session.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contacts == nil {
		c.contacts = make(map[string]*session.Contact)
	}
	c.contacts[contact.JID] = contact
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StartErr != nil {
		return c.StartErr
	}
	c.started = true
	return nil
}

func (c *Client) SendMessage(ctx context.Context, to, body string) (session.Receipt, error) {
	return c.send(SentMessage{To: to, Body: body})
}

func (c *Client) SendMedia(ctx context.Context, to string, media *session.Media, caption string) (session.Receipt, error) {
	return c.send(SentMessage{To: to, Media: media, Caption: caption})
}

func (c *Client) send(m SentMessage) (session.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sendErrors[m.To]; err != nil {
		return session.Receipt{}, err
	}
	c.sent = append(c.sent, m)
	return session.Receipt{
		MessageID: fmt.Sprintf("MSG%d", len(c.sent)),
		Timestamp: time.Now(),
	}, nil
}

func (c *Client) GetContact(ctx context.Context, jid string) (*session.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contact, ok := c.contacts[jid]
	if !ok {
		return nil, errors.New("contact not found")
	}
	return contact, nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return c.LogoutErr
}

func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DestroyErr != nil {
		return c.DestroyErr
	}
	c.destroyed = true
	return nil
}

func (c *Client) Kill() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killed = true
	return nil
}

func (c *Client) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Client) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

func (c *Client) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Client) Killed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.killed
}

// Factory builds fake clients and remembers them per user.
type Factory struct {
	mu      sync.Mutex
	clients map[string][]*Client

	// Err, when set, makes the factory fail.
	Err error
	// Prepare runs on every new client before it is handed out.
	Prepare func(userID string, c *Client)
}

func NewFactory() *Factory {
	return &Factory{clients: make(map[string][]*Client)}
}

func (f *Factory) New(ctx context.Context, cfg wa.ClientConfig) (wa.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	// Real clients create their device store on construction.
	if err := os.WriteFile(wa.StorePath(cfg.Dir), nil, 0o644); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	if f.Prepare != nil {
		f.Prepare(cfg.UserID, c)
	}
	f.clients[cfg.UserID] = append(f.clients[cfg.UserID], c)
	return c, nil
}

// Last returns the most recent client built for userID.
func (f *Factory) Last(userID string) *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.clients[userID]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (f *Factory) Count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients[userID])
}

// Notifier records notifications in arrival order.
type Notifier struct {
	mu    sync.Mutex
	items []session.Notification
}

func (n *Notifier) Notify(x session.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, x)
}

func (n *Notifier) All() []session.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]session.Notification(nil), n.items...)
}

// Events lists the event names notified for userID.
func (n *Notifier) Events(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.items {
		if x.UserID == userID {
			out = append(out, x.Event)
		}
	}
	return out
}

// Fetcher is a fixed MediaFetcher.
type Fetcher struct {
	Media *session.Media
	Err   error
}

func (f Fetcher) Fetch(ctx context.Context, sourceURL string) (*session.Media, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Media, nil
}
