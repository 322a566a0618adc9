package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
	"github.com/fardannozami/wa-multisession/internal/infra/wa/watest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root    string
	manager *wa.Manager
	factory *watest.Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{root: t.TempDir(), factory: watest.NewFactory()}
	f.manager = wa.NewManager(wa.Options{
		Root:      f.root,
		NewClient: f.factory.New,
		Notifier:  &watest.Notifier{},
		Fetcher:   watest.Fetcher{Media: &session.Media{MimeType: "image/png", Data: []byte("x")}},
		RenderQR:  func(code string) (string, error) { return code, nil },
	})
	return f
}

func (f *fixture) init(t *testing.T, userID string) *watest.Client {
	t.Helper()
	_, err := NewInitSessionUsecase(f.manager).Execute(context.Background(), InitSessionInput{Session: userID})
	require.NoError(t, err)
	return f.factory.Last(userID)
}

func (f *fixture) connect(t *testing.T, userID string) *watest.Client {
	t.Helper()
	c := f.init(t, userID)
	c.Emit(session.Ready{Identity: session.Identity{JID: "15550001@s.whatsapp.net", User: "15550001"}})
	require.Eventually(t, func() bool {
		return f.manager.SessionStatus(userID).Connected
	}, 2*time.Second, 5*time.Millisecond)
	return c
}

func TestInitAndGetCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	getCode := NewGetCodeUsecase(f.manager)

	_, err := getCode.Execute(ctx, "7")
	assert.ErrorIs(t, err, session.ErrNotFound)

	st, err := NewInitSessionUsecase(f.manager).Execute(ctx, InitSessionInput{Session: "7"})
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, session.StateAwaitingScan, st.State)

	out, err := getCode.Execute(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, CodePending, out.Status)

	c := f.factory.Last("7")
	c.Emit(session.QRCode{Code: "ABC123"})
	require.Eventually(t, func() bool {
		out, err := getCode.Execute(ctx, "7")
		return err == nil && out.Code == "ABC123"
	}, 2*time.Second, 5*time.Millisecond)
	out, _ = getCode.Execute(ctx, "7")
	assert.Equal(t, CodeWaitingScan, out.Status)

	c.Emit(session.Ready{Identity: session.Identity{User: "15550001"}})
	require.Eventually(t, func() bool {
		out, err := getCode.Execute(ctx, "7")
		return err == nil && out.Status == CodeConnected
	}, 2*time.Second, 5*time.Millisecond)

	status := NewStatusUsecase(f.manager).Execute("7")
	assert.True(t, status.Connected)
}

func TestInitExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := NewInitSessionUsecase(f.manager)
	first := f.connect(t, "7")

	_, err := uc.Execute(ctx, InitSessionInput{Session: "7"})
	assert.ErrorIs(t, err, session.ErrAlreadyExists)

	_, err = uc.Execute(ctx, InitSessionInput{Session: "7", ClearSession: true})
	assert.ErrorIs(t, err, session.ErrAlreadyExists)
	assert.False(t, first.Destroyed())

	st, err := uc.Execute(ctx, InitSessionInput{Session: "7", Force: true})
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingScan, st.State)
	assert.True(t, first.Destroyed())
	assert.False(t, first.LoggedOut())
	assert.Equal(t, 2, f.factory.Count("7"))
}

func TestInitForceClear(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t, "7")

	_, err := NewInitSessionUsecase(f.manager).Execute(context.Background(), InitSessionInput{Session: "7", Force: true, ClearSession: true})
	require.NoError(t, err)
	assert.True(t, first.LoggedOut())
	assert.True(t, f.manager.HasSession("7"))
}

func TestInitClearPurgesLeftovers(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.root, "session-7")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	leftover := filepath.Join(dir, "stale.bin")
	require.NoError(t, os.WriteFile(leftover, []byte("x"), 0o644))

	_, err := NewInitSessionUsecase(f.manager).Execute(context.Background(), InitSessionInput{Session: "7", ClearSession: true})
	require.NoError(t, err)
	assert.NoFileExists(t, leftover)
}

func TestSendText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := NewSendTextUsecase(f.manager)

	_, err := uc.Execute(ctx, SendTextInput{Session: "7", To: "15550001234", Message: "hi"})
	assert.ErrorIs(t, err, session.ErrNotFound)

	f.init(t, "7")
	_, err = uc.Execute(ctx, SendTextInput{Session: "7", To: "15550001234", Message: "hi"})
	assert.ErrorIs(t, err, session.ErrNotReady)

	_, err = uc.Execute(ctx, SendTextInput{Session: "7", To: "", Message: "hi"})
	assert.ErrorIs(t, err, session.ErrInvalidInput)

	f.manager.DestroySession(ctx, "7", false)
	c := f.connect(t, "7")

	out, err := uc.Execute(ctx, SendTextInput{Session: "7", To: "15550001234", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "sent", out.Status)
	assert.Equal(t, "MSG1", out.MessageID)
	assert.Equal(t, "15550001234@s.whatsapp.net", c.Sent()[0].To)
}

func TestSendMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.connect(t, "7")
	uc := NewSendMediaUsecase(f.manager)

	_, err := uc.Execute(ctx, SendMediaInput{Session: "7", To: "15550001234", URL: "not a url"})
	assert.ErrorIs(t, err, session.ErrInvalidInput)

	out, err := uc.Execute(ctx, SendMediaInput{Session: "7", To: "15550001234", URL: "https://example.com/a.png", Caption: "c"})
	require.NoError(t, err)
	assert.Equal(t, "MSG1", out.MessageID)
	require.Len(t, c.Sent(), 1)
	assert.Equal(t, "c", c.Sent()[0].Caption)
}

func TestSendBulkCollectsFailures(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "7")
	c.FailSendTo("15550000002@s.whatsapp.net", errors.New("rejected"))

	uc := NewSendBulkUsecase(f.manager, 3*time.Second, 8*time.Second)
	var mu sync.Mutex
	var delays []time.Duration
	uc.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return nil
	}

	out, err := uc.Execute(context.Background(), "7", []BulkItem{
		{To: "15550000001", Message: "a"},
		{To: "15550000002", Message: "b"},
		{To: "15550000003", Message: "c"},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 3)
	assert.Equal(t, 2, out.Sent)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, "sent", out.Results[0].Status)
	assert.Equal(t, "failed", out.Results[1].Status)
	assert.Contains(t, out.Results[1].Error, "rejected")
	assert.Equal(t, "sent", out.Results[2].Status)

	require.Len(t, delays, 2)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 8*time.Second)
	}
}

func TestSendBulkCancelledKeepsAllResults(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "7")

	uc := NewSendBulkUsecase(f.manager, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := uc.Execute(ctx, "7", []BulkItem{
		{To: "15550000001", Message: "a"},
		{To: "15550000002", Message: "b"},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "failed", out.Results[1].Status)
}

func TestSendBulkUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := NewSendBulkUsecase(f.manager, 0, 0).Execute(context.Background(), "7", []BulkItem{{To: "15550000001", Message: "a"}})
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = NewSendBulkUsecase(f.manager, 0, 0).Execute(context.Background(), "7", nil)
	assert.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := NewDisconnectUsecase(f.manager)
	f.connect(t, "7")

	assert.True(t, uc.Execute(ctx, "7", true))
	assert.False(t, NewStatusUsecase(f.manager).Execute("7").Exists)
	assert.NoDirExists(t, filepath.Join(f.root, "session-7"))

	assert.False(t, uc.Execute(ctx, "7", true))
}

func TestContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := NewContactUsecase(f.manager)

	_, err := uc.Execute(ctx, "7", "15550001234")
	assert.ErrorIs(t, err, session.ErrNotFound)

	c := f.connect(t, "7")
	c.AddContact(&session.Contact{JID: "15550001234@s.whatsapp.net", Number: "15550001234", PushName: "Ann", Found: true})

	got, err := uc.Execute(ctx, "7", "+1 555 000 1234")
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, "Ann", got.PushName)

	got, err = uc.Execute(ctx, "7", "15550009999")
	require.NoError(t, err)
	assert.False(t, got.Found)

	_, err = uc.Execute(ctx, "7", "abc")
	assert.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestListSessions(t *testing.T) {
	f := newFixture(t)
	f.init(t, "b")
	f.connect(t, "a")

	list := NewListSessionsUsecase(f.manager).Execute()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].UserID)
	assert.True(t, list[0].Connected)
	assert.Equal(t, "b", list[1].UserID)
	assert.Equal(t, session.StateAwaitingScan, list[1].State)
}
