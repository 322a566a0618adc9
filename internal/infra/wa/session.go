package wa

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/phone"
	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/metrics"
	walog "go.mau.fi/whatsmeow/util/log"
)

const (
	eventBuffer     = 64
	downloadTimeout = 30 * time.Second
	logoutTimeout   = 15 * time.Second
	destroyTimeout  = 10 * time.Second
	contactTimeout  = 10 * time.Second
)

// sessionDeps is shared by every Session of a Manager.
type sessionDeps struct {
	newClient ClientFactory
	notifier  Notifier
	fetcher   MediaFetcher
	renderQR  func(code string) (string, error)
	metrics   *metrics.Metrics
	log       walog.Logger
}

// Session owns one user's client connection. All state changes caused by
// the client go through handle, one event at a time, in the order the
// client emitted them.
type Session struct {
	userID string
	dir    string
	deps   *sessionDeps
	log    walog.Logger

	// opMu serializes Initialize and Disconnect.
	opMu sync.Mutex

	mu          sync.RWMutex
	state       session.State
	pendingCode string
	lastError   string
	identity    *session.Identity
	client      Client
	conn        *connection
}

// connection is the event pipe of one client instance. Events of a
// connection that is no longer current are dropped.
type connection struct {
	events chan session.Event
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newConnection() *connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		events: make(chan session.Event, eventBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *connection) emit(e session.Event) {
	select {
	case <-c.done:
	case c.events <- e:
	}
}

func (c *connection) stop() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
}

func newSession(userID, dir string, deps *sessionDeps) *Session {
	return &Session{
		userID: userID,
		dir:    dir,
		deps:   deps,
		log:    deps.log.Sub(userID),
		state:  session.StateUninitialized,
	}
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) State() session.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Status() session.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := session.Status{
		UserID:    s.userID,
		Exists:    true,
		Connected: s.state == session.StateConnected,
		State:     s.state,
		Error:     s.lastError,
		Code:      s.pendingCode,
	}
	if s.identity != nil {
		id := *s.identity
		st.Identity = &id
	}
	return st
}

// Initialize builds a new client for this user and launches it. It returns
// as soon as the connection attempt is underway; progress is reported
// through events.
func (s *Session) Initialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if client, _ := s.detach(); client != nil {
		s.shutdownClient(ctx, client, false)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.fail(err)
		return fmt.Errorf("%w: create session dir: %w", session.ErrInternal, err)
	}

	if err := acquireLock(s.dir, s.log); err != nil {
		s.fail(err)
		return fmt.Errorf("%w: %w", session.ErrInternal, err)
	}

	conn := newConnection()
	client, err := s.deps.newClient(ctx, ClientConfig{
		UserID: s.userID,
		Dir:    s.dir,
		Emit:   conn.emit,
		Log:    s.log,
	})
	if err != nil {
		conn.stop()
		releaseLock(s.dir)
		s.fail(err)
		return fmt.Errorf("%w: create client: %w", session.ErrInternal, err)
	}

	s.mu.Lock()
	s.client = client
	s.conn = conn
	s.identity = nil
	s.setStateLocked(session.StateAwaitingScan)
	s.pendingCode = ""
	s.mu.Unlock()

	go s.loop(conn)

	if err := client.Start(ctx); err != nil {
		if c, _ := s.detach(); c != nil {
			s.shutdownClient(ctx, c, false)
		}
		releaseLock(s.dir)
		s.fail(err)
		return fmt.Errorf("%w: start client: %w", session.ErrInternal, err)
	}

	s.log.Infof("session initialized")
	return nil
}

func (s *Session) loop(conn *connection) {
	for {
		select {
		case <-conn.done:
			return
		case e := <-conn.events:
			s.handle(conn, e)
		}
	}
}

// handle applies one client event: the state transition first, then the
// notification as a side effect of it.
func (s *Session) handle(conn *connection, e session.Event) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		s.log.Debugf("dropping %s from a superseded connection", session.EventName(e))
		return
	}

	switch ev := e.(type) {
	case session.QRCode:
		s.setStateLocked(session.StateAwaitingScan)
		s.pendingCode = ev.Code
	case session.Ready:
		id := ev.Identity
		s.identity = &id
		s.setStateLocked(session.StateConnected)
	case session.Disconnected:
		s.setStateLocked(session.StateDisconnected)
	case session.AuthFailed:
		s.setStateLocked(session.StateError)
		s.lastError = ev.Err
	}
	s.mu.Unlock()

	switch ev := e.(type) {
	case session.QRCode:
		s.log.Infof("qr code issued")
		image, err := s.deps.renderQR(ev.Code)
		if err != nil {
			s.log.Warnf("render qr: %v", err)
		}
		s.notify(session.NotifyQRReady, session.QRReadyData{Code: ev.Code, RenderedImage: image})
	case session.Ready:
		s.log.Infof("connected as %s", ev.Identity.JID)
		s.notify(session.NotifyConnected, session.ConnectedData{Identity: ev.Identity})
	case session.Message:
		s.notify(session.NotifyMessageReceived, s.messageData(conn.ctx, ev))
	case session.Disconnected:
		s.log.Warnf("disconnected: %s", ev.Reason)
		s.notify(session.NotifyDisconnected, session.DisconnectedData{Reason: ev.Reason})
	case session.AuthFailed:
		s.log.Errorf("auth failed: %s", ev.Err)
		s.notify(session.NotifyAuthFailed, session.AuthFailedData{Error: ev.Err})
	}
}

func (s *Session) messageData(ctx context.Context, m session.Message) session.MessageReceivedData {
	data := session.MessageReceivedData{
		MessageID: m.ID,
		From:      m.From,
		To:        m.To,
		Chat:      m.Chat,
		Body:      m.Body,
		Type:      m.Type,
		Timestamp: m.Timestamp.Unix(),
		HasMedia:  m.HasMedia,
	}
	if !m.HasMedia || m.Download == nil {
		return data
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	media, err := m.Download(ctx)
	if err != nil {
		s.log.Warnf("download attachment of %s: %v", m.ID, err)
		return data
	}
	data.Attachment = &session.AttachmentData{
		MimeType: media.MimeType,
		Filename: media.Filename,
		Data:     media.Base64(),
	}
	return data
}

func (s *Session) notify(event string, data any) {
	s.deps.notifier.Notify(session.Notification{
		Event:  event,
		UserID: s.userID,
		Data:   data,
		At:     time.Now(),
	})
}

// setStateLocked keeps the code and error fields consistent with the state:
// a pending code only exists while awaiting a scan, an error only in Error.
func (s *Session) setStateLocked(to session.State) {
	from := s.state
	s.state = to
	if to != session.StateAwaitingScan {
		s.pendingCode = ""
	}
	if to != session.StateError {
		s.lastError = ""
	}
	s.deps.metrics.Transition(string(from), string(to))
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(session.StateError)
	s.lastError = err.Error()
}

// readyClient returns the live client, or ErrNotReady unless connected.
func (s *Session) readyClient() (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != session.StateConnected || s.client == nil {
		return nil, fmt.Errorf("%w: state is %s", session.ErrNotReady, s.state)
	}
	return s.client, nil
}

func (s *Session) SendMessage(ctx context.Context, recipient, body string) (session.Receipt, error) {
	client, err := s.readyClient()
	if err != nil {
		return session.Receipt{}, err
	}

	to, err := phone.ToAddress(recipient)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("%w: %w", session.ErrInvalidInput, err)
	}

	receipt, err := client.SendMessage(ctx, to, body)
	s.deps.metrics.MessageSent("text", err)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("%w: send to %s: %w", session.ErrTransport, to, err)
	}
	return receipt, nil
}

func (s *Session) SendMedia(ctx context.Context, recipient, sourceURL, caption string) (session.Receipt, error) {
	client, err := s.readyClient()
	if err != nil {
		return session.Receipt{}, err
	}

	to, err := phone.ToAddress(recipient)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("%w: %w", session.ErrInvalidInput, err)
	}

	media, err := s.deps.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		s.deps.metrics.MessageSent("media", err)
		return session.Receipt{}, fmt.Errorf("%w: %w", session.ErrTransport, err)
	}

	receipt, err := client.SendMedia(ctx, to, media, caption)
	s.deps.metrics.MessageSent("media", err)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("%w: send media to %s: %w", session.ErrTransport, to, err)
	}
	return receipt, nil
}

// GetContactInfo is advisory: any failure yields nil.
func (s *Session) GetContactInfo(ctx context.Context, phoneNumber string) *session.Contact {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil
	}

	jid, err := phone.ToAddress(phoneNumber)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, contactTimeout)
	defer cancel()

	contact, err := client.GetContact(ctx, jid)
	if err != nil {
		s.log.Debugf("contact %s: %v", jid, err)
		return nil
	}
	return contact
}

// Disconnect tears the session down. It never fails: every step is best
// effort so callers can always retry initialization afterwards. With
// clearCredentials the device is logged out first and the credential
// directory is deleted once the client is gone.
func (s *Session) Disconnect(ctx context.Context, clearCredentials bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	// Teardown must finish even if the caller's request is cancelled.
	ctx = context.WithoutCancel(ctx)

	// State and detach change together so no event of the old connection
	// can be applied after the state says Disconnected.
	s.mu.Lock()
	s.setStateLocked(session.StateDisconnected)
	client, conn := s.detachLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.stop()
	}
	if client != nil {
		s.shutdownClient(ctx, client, clearCredentials)
	}
	releaseLock(s.dir)

	if clearCredentials {
		if err := removeSessionDir(s.dir); err != nil {
			s.log.Errorf("clear credentials: %v", err)
		} else {
			s.log.Infof("credentials cleared")
		}
	}
}

// detach makes the current client unreachable for new calls and stops its
// event pipe.
func (s *Session) detach() (Client, *connection) {
	s.mu.Lock()
	client, conn := s.detachLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.stop()
	}
	return client, conn
}

func (s *Session) detachLocked() (Client, *connection) {
	client, conn := s.client, s.conn
	s.client, s.conn = nil, nil
	s.identity = nil
	return client, conn
}

func (s *Session) shutdownClient(ctx context.Context, client Client, logout bool) {
	if logout {
		lctx, cancel := context.WithTimeout(ctx, logoutTimeout)
		if err := client.Logout(lctx); err != nil {
			s.log.Warnf("logout: %v", err)
		}
		cancel()
	}

	dctx, cancel := context.WithTimeout(ctx, destroyTimeout)
	defer cancel()
	if err := client.Destroy(dctx); err != nil {
		s.log.Warnf("destroy: %v, killing client", err)
		if err := client.Kill(); err != nil {
			s.log.Errorf("kill: %v", err)
		}
	}
}
