package wa_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
	"github.com/fardannozami/wa-multisession/internal/infra/wa/watest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	root     string
	manager  *wa.Manager
	factory  *watest.Factory
	notifier *watest.Notifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessAt(t, t.TempDir(), watest.Fetcher{Media: &session.Media{MimeType: "image/png", Filename: "a.png", Data: []byte("png")}})
}

func newHarnessAt(t *testing.T, root string, fetcher wa.MediaFetcher) *harness {
	t.Helper()
	h := &harness{
		root:     root,
		factory:  watest.NewFactory(),
		notifier: &watest.Notifier{},
	}
	h.manager = wa.NewManager(wa.Options{
		Root:      root,
		NewClient: h.factory.New,
		Notifier:  h.notifier,
		Fetcher:   fetcher,
		RenderQR:  func(code string) (string, error) { return "img:" + code, nil },
	})
	return h
}

func (h *harness) waitState(t *testing.T, userID string, want session.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.manager.SessionStatus(userID).State == want
	}, 2*time.Second, 5*time.Millisecond, "state of %s never became %s", userID, want)
}

func (h *harness) waitEvents(t *testing.T, userID string, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.notifier.Events(userID)) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return h.notifier.Events(userID)
}

// connect creates a session for userID and drives it to Connected.
func (h *harness) connect(t *testing.T, userID string) *watest.Client {
	t.Helper()
	_, err := h.manager.CreateSession(context.Background(), userID)
	require.NoError(t, err)
	c := h.factory.Last(userID)
	c.Emit(session.Ready{Identity: session.Identity{JID: "15550001@s.whatsapp.net", User: "15550001"}})
	h.waitState(t, userID, session.StateConnected)
	return c
}

func TestScanFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.manager.CreateSession(ctx, "7")
	require.NoError(t, err)

	st := h.manager.SessionStatus("7")
	assert.True(t, st.Exists)
	assert.Equal(t, session.StateAwaitingScan, st.State)
	assert.Empty(t, st.Code)

	c := h.factory.Last("7")
	require.NotNil(t, c)
	assert.True(t, c.Started())

	c.Emit(session.QRCode{Code: "ABC123"})
	require.Eventually(t, func() bool { return h.manager.SessionStatus("7").Code == "ABC123" }, 2*time.Second, 5*time.Millisecond)

	c.Emit(session.Ready{Identity: session.Identity{JID: "15550001@s.whatsapp.net", User: "15550001"}})
	h.waitState(t, "7", session.StateConnected)

	st = h.manager.SessionStatus("7")
	assert.True(t, st.Connected)
	assert.Empty(t, st.Code)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "15550001", st.Identity.User)

	events := h.waitEvents(t, "7", 2)
	assert.Equal(t, []string{session.NotifyQRReady, session.NotifyConnected}, events)

	qr := h.notifier.All()[0].Data.(session.QRReadyData)
	assert.Equal(t, "ABC123", qr.Code)
	assert.Equal(t, "img:ABC123", qr.RenderedImage)
}

func TestEventsAreAppliedInOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.CreateSession(context.Background(), "7")
	require.NoError(t, err)
	c := h.factory.Last("7")

	c.Emit(session.QRCode{Code: "one"})
	c.Emit(session.QRCode{Code: "two"})
	c.Emit(session.Ready{Identity: session.Identity{User: "1"}})
	c.Emit(session.Disconnected{Reason: "connection lost"})

	events := h.waitEvents(t, "7", 4)
	assert.Equal(t, []string{
		session.NotifyQRReady,
		session.NotifyQRReady,
		session.NotifyConnected,
		session.NotifyDisconnected,
	}, events)
	assert.Equal(t, session.StateDisconnected, h.manager.SessionStatus("7").State)
}

func TestAuthFailureAndReinitialize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.manager.CreateSession(ctx, "7")
	require.NoError(t, err)
	first := h.factory.Last("7")

	first.Emit(session.AuthFailed{Err: "bad credentials"})
	h.waitState(t, "7", session.StateError)
	assert.Equal(t, "bad credentials", h.manager.SessionStatus("7").Error)
	assert.Equal(t, []string{session.NotifyAuthFailed}, h.waitEvents(t, "7", 1))

	require.NoError(t, s.Initialize(ctx))

	st := h.manager.SessionStatus("7")
	assert.Equal(t, session.StateAwaitingScan, st.State)
	assert.Empty(t, st.Error)
	assert.Equal(t, 2, h.factory.Count("7"))
	assert.True(t, first.Destroyed())
	assert.False(t, first.LoggedOut())
}

func TestSupersededConnectionEventsAreDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.manager.CreateSession(ctx, "7")
	require.NoError(t, err)
	old := h.factory.Last("7")

	require.NoError(t, s.Initialize(ctx))
	current := h.factory.Last("7")
	require.NotSame(t, old, current)

	old.Emit(session.Ready{Identity: session.Identity{User: "ghost"}})
	current.Emit(session.QRCode{Code: "NEW"})

	require.Eventually(t, func() bool { return h.manager.SessionStatus("7").Code == "NEW" }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, session.StateAwaitingScan, h.manager.SessionStatus("7").State)
	assert.Equal(t, []string{session.NotifyQRReady}, h.notifier.Events("7"))
}

func TestSendRequiresConnected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.manager.CreateSession(ctx, "7")
	require.NoError(t, err)

	_, err = s.SendMessage(ctx, "15550001234", "hello")
	assert.ErrorIs(t, err, session.ErrNotReady)

	_, err = s.SendMedia(ctx, "15550001234", "https://example.com/a.png", "")
	assert.ErrorIs(t, err, session.ErrNotReady)

	assert.Empty(t, h.factory.Last("7").Sent())
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t, "7")
	s, ok := h.manager.GetSession("7")
	require.True(t, ok)

	receipt, err := s.SendMessage(context.Background(), "+1 555 000 1234", "hello")
	require.NoError(t, err)
	assert.Equal(t, "MSG1", receipt.MessageID)
	assert.False(t, receipt.Timestamp.IsZero())

	sent := c.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "15550001234@s.whatsapp.net", sent[0].To)
	assert.Equal(t, "hello", sent[0].Body)

	_, err = s.SendMessage(context.Background(), "120363025246125486@g.us", "group hi")
	require.NoError(t, err)
	assert.Equal(t, "120363025246125486@g.us", c.Sent()[1].To)
}

func TestSendMessageErrors(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t, "7")
	s, _ := h.manager.GetSession("7")

	c.FailSendTo("15550009999@s.whatsapp.net", errors.New("websocket closed"))
	_, err := s.SendMessage(context.Background(), "15550009999", "x")
	assert.ErrorIs(t, err, session.ErrTransport)
	assert.ErrorContains(t, err, "websocket closed")

	_, err = s.SendMessage(context.Background(), "not-a-number", "x")
	assert.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestSendMedia(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t, "7")
	s, _ := h.manager.GetSession("7")

	_, err := s.SendMedia(context.Background(), "15550001234", "https://example.com/a.png", "look")
	require.NoError(t, err)

	sent := c.Sent()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Media)
	assert.Equal(t, "image/png", sent[0].Media.MimeType)
	assert.Equal(t, "cG5n", sent[0].Media.Base64())
	assert.Equal(t, "look", sent[0].Caption)
}

func TestSendMediaFetchError(t *testing.T) {
	h := newHarnessAt(t, t.TempDir(), watest.Fetcher{Err: errors.New("404")})
	c := h.connect(t, "7")
	s, _ := h.manager.GetSession("7")

	_, err := s.SendMedia(context.Background(), "15550001234", "https://example.com/missing.png", "")
	assert.ErrorIs(t, err, session.ErrTransport)
	assert.Empty(t, c.Sent())
}

func TestMessageNotification(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t, "7")
	ts := time.Unix(1700000000, 0)

	c.Emit(session.Message{
		ID: "M1", From: "628123@s.whatsapp.net", To: "15550001@s.whatsapp.net", Chat: "628123@s.whatsapp.net",
		Body: "hi", Type: "chat", Timestamp: ts,
	})
	c.Emit(session.Message{
		ID: "M2", From: "628123@s.whatsapp.net", Type: "image", Timestamp: ts, HasMedia: true,
		Download: func(ctx context.Context) (*session.Media, error) {
			return &session.Media{MimeType: "image/jpeg", Data: []byte("hi")}, nil
		},
	})
	c.Emit(session.Message{
		ID: "M3", From: "628123@s.whatsapp.net", Type: "image", Timestamp: ts, HasMedia: true,
		Download: func(ctx context.Context) (*session.Media, error) {
			return nil, errors.New("media expired")
		},
	})

	h.waitEvents(t, "7", 4)
	var msgs []session.MessageReceivedData
	for _, n := range h.notifier.All() {
		if n.Event == session.NotifyMessageReceived {
			msgs = append(msgs, n.Data.(session.MessageReceivedData))
		}
	}
	require.Len(t, msgs, 3)

	assert.Equal(t, "M1", msgs[0].MessageID)
	assert.Equal(t, "628123@s.whatsapp.net", msgs[0].Chat)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.Equal(t, int64(1700000000), msgs[0].Timestamp)
	assert.Nil(t, msgs[0].Attachment)

	require.NotNil(t, msgs[1].Attachment)
	assert.Equal(t, "image/jpeg", msgs[1].Attachment.MimeType)
	assert.Equal(t, "aGk=", msgs[1].Attachment.Data)

	assert.Equal(t, "M3", msgs[2].MessageID)
	assert.True(t, msgs[2].HasMedia)
	assert.Nil(t, msgs[2].Attachment)
}

func TestGetContactInfo(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t, "7")
	s, _ := h.manager.GetSession("7")

	c.AddContact(&session.Contact{JID: "15550001234@s.whatsapp.net", Name: "Ann", Found: true})

	got := s.GetContactInfo(context.Background(), "15550001234")
	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.Name)

	assert.Nil(t, s.GetContactInfo(context.Background(), "15550009999"))
	assert.Nil(t, s.GetContactInfo(context.Background(), "garbage"))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t, "7")
	s, _ := h.manager.GetSession("7")

	s.Disconnect(context.Background(), false)
	s.Disconnect(context.Background(), false)

	st := s.Status()
	assert.Equal(t, session.StateDisconnected, st.State)
	assert.Empty(t, st.Code)
	assert.Empty(t, st.Error)
	assert.True(t, c.Destroyed())
	assert.False(t, c.LoggedOut())

	_, err := s.SendMessage(context.Background(), "15550001234", "x")
	assert.ErrorIs(t, err, session.ErrNotReady)
}

func TestDisconnectWinsOverInFlightEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("u%d", i)
		s, err := h.manager.CreateSession(ctx, userID)
		require.NoError(t, err)
		c := h.factory.Last(userID)

		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
					c.Emit(session.QRCode{Code: fmt.Sprintf("code-%d", n)})
				}
			}
		}()

		s.Disconnect(ctx, false)
		close(stop)
		<-done

		st := s.Status()
		assert.Equal(t, session.StateDisconnected, st.State, userID)
		assert.Empty(t, st.Code, userID)
	}
}

func TestDisconnectSurvivesClientFailures(t *testing.T) {
	h := newHarness(t)
	h.factory.Prepare = func(_ string, c *watest.Client) {
		c.LogoutErr = errors.New("logout timeout")
		c.DestroyErr = errors.New("browser hung")
	}
	c := h.connect(t, "7")
	s, _ := h.manager.GetSession("7")

	s.Disconnect(context.Background(), true)

	assert.True(t, c.LoggedOut())
	assert.True(t, c.Killed())
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.NoDirExists(t, h.root+"/session-7")
}
