package wa

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	walog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

const logoutConnectTimeout = 20 * time.Second

type whatsmeowClient struct {
	userID string
	client *whatsmeow.Client
	db     *sql.DB
	emit   func(session.Event)
	log    walog.Logger

	mu        sync.Mutex
	stopQR    context.CancelFunc
	closeOnce sync.Once
}

func (c *whatsmeowClient) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attachHandler(c.client, c, c.log, c.emit)

	// A device without an id has never been paired: the QR channel has to
	// be opened before Connect.
	if c.client.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		ch, err := c.client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("qr channel: %w", err)
		}
		c.mu.Lock()
		c.stopQR = cancel
		c.mu.Unlock()
		go c.watchQR(ch)
	}

	go func() {
		if err := c.client.Connect(); err != nil {
			c.log.Errorf("connect: %v", err)
			c.emit(session.AuthFailed{Err: "connect: " + err.Error()})
		}
	}()

	return nil
}

func (c *whatsmeowClient) watchQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.emit(session.QRCode{Code: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
			c.log.Infof("qr scanned")
		case whatsmeow.QRChannelTimeout.Event:
			c.emit(session.Disconnected{Reason: "qr code expired"})
		case whatsmeow.QRChannelEventError:
			c.emit(session.AuthFailed{Err: fmt.Sprintf("pairing: %v", item.Error)})
		default:
			c.emit(session.AuthFailed{Err: "pairing: " + item.Event})
		}
	}
}

// Identity is read by the event translator when the connection is ready.
func (c *whatsmeowClient) Identity() session.Identity {
	id := c.client.Store.ID
	if id == nil {
		return session.Identity{PushName: c.client.Store.PushName}
	}
	return session.Identity{
		JID:      id.ToNonAD().String(),
		User:     id.User,
		PushName: c.client.Store.PushName,
	}
}

func (c *whatsmeowClient) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return c.client.Download(ctx, msg)
}

func (c *whatsmeowClient) SendMessage(ctx context.Context, to, body string) (session.Receipt, error) {
	jid, err := types.ParseJID(to)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("parse recipient: %w", err)
	}

	resp, err := c.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)})
	if err != nil {
		return session.Receipt{}, err
	}
	return session.Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (c *whatsmeowClient) SendMedia(ctx context.Context, to string, media *session.Media, caption string) (session.Receipt, error) {
	jid, err := types.ParseJID(to)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("parse recipient: %w", err)
	}

	mediaType := mediaTypeFor(media.MimeType)
	up, err := c.client.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return session.Receipt{}, fmt.Errorf("upload: %w", err)
	}

	resp, err := c.client.SendMessage(ctx, jid, buildMediaMessage(mediaType, up, media, caption))
	if err != nil {
		return session.Receipt{}, err
	}
	return session.Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func mediaTypeFor(mimeType string) whatsmeow.MediaType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return whatsmeow.MediaVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

func buildMediaMessage(mediaType whatsmeow.MediaType, up whatsmeow.UploadResponse, media *session.Media, caption string) *waE2E.Message {
	var captionPtr *string
	if caption != "" {
		captionPtr = proto.String(caption)
	}

	switch mediaType {
	case whatsmeow.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       captionPtr,
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case whatsmeow.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       captionPtr,
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case whatsmeow.MediaAudio:
		// audio messages carry no caption
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       captionPtr,
			Title:         proto.String(media.Filename),
			FileName:      proto.String(media.Filename),
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	}
}

func (c *whatsmeowClient) GetContact(ctx context.Context, jid string) (*session.Contact, error) {
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return nil, err
	}

	info, err := c.client.Store.Contacts.GetContact(ctx, parsed)
	if err != nil {
		return nil, err
	}

	name := info.FullName
	if name == "" {
		name = info.FirstName
	}
	return &session.Contact{
		JID:          parsed.String(),
		Number:       parsed.User,
		Name:         name,
		PushName:     info.PushName,
		BusinessName: info.BusinessName,
		Found:        info.Found,
	}, nil
}

func (c *whatsmeowClient) Logout(ctx context.Context) error {
	if c.client.Store.ID == nil {
		return nil
	}
	if err := connectWithTimeout(ctx, c.client, logoutConnectTimeout); err != nil {
		return fmt.Errorf("connect for logout: %w", err)
	}
	return logoutClient(ctx, c.client)
}

func (c *whatsmeowClient) Destroy(ctx context.Context) error {
	c.cancelQR()
	c.client.RemoveEventHandlers()

	done := make(chan struct{})
	go func() {
		disconnectClient(c.client)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("disconnect: %w", ctx.Err())
	case <-done:
	}

	return c.closeDB()
}

func (c *whatsmeowClient) Kill() error {
	c.cancelQR()
	c.client.RemoveEventHandlers()
	return c.closeDB()
}

func (c *whatsmeowClient) cancelQR() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopQR != nil {
		c.stopQR()
		c.stopQR = nil
	}
}

func (c *whatsmeowClient) closeDB() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.db.Close()
	})
	return err
}

func connectWithTimeout(ctx context.Context, client *whatsmeow.Client, timeout time.Duration) error {
	if client.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func logoutClient(ctx context.Context, client *whatsmeow.Client) error {
	type logoutWithCtx interface {
		Logout(context.Context) error
	}
	type logoutErr interface {
		Logout() error
	}

	if l, ok := interface{}(client).(logoutWithCtx); ok {
		return l.Logout(ctx)
	}
	if l, ok := interface{}(client).(logoutErr); ok {
		return l.Logout()
	}
	return fmt.Errorf("logout not supported")
}

func disconnectClient(client *whatsmeow.Client) {
	type disconnecter interface {
		Disconnect()
	}
	if d, ok := interface{}(client).(disconnecter); ok {
		d.Disconnect()
	}
}
