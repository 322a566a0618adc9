package handlers

import (
	"context"
	"fmt"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	walog "go.mau.fi/whatsmeow/util/log"
)

// Source is what the handler needs from the client it is attached to.
type Source interface {
	Identity() session.Identity
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// EventHandler translates whatsmeow events into session events.
type EventHandler struct {
	log  walog.Logger
	src  Source
	emit func(session.Event)
}

func NewEventHandler(log walog.Logger, src Source, emit func(session.Event)) func(evt interface{}) {
	h := &EventHandler{log: log, src: src, emit: emit}
	return h.Handle
}

func (h *EventHandler) Handle(evt interface{}) {
	switch e := evt.(type) {

	case *events.Connected:
		h.log.Infof("client connected")
		h.emit(session.Ready{Identity: h.src.Identity()})

	case *events.PairSuccess:
		h.log.Infof("paired as %s", e.ID.String())

	case *events.Message:
		h.emit(h.message(e))

	case *events.Disconnected:
		h.log.Warnf("client disconnected")
		h.emit(session.Disconnected{Reason: "connection lost"})

	case *events.LoggedOut:
		h.log.Warnf("logged out: %v (on connect: %t)", e.Reason, e.OnConnect)
		// Stored credentials rejected while connecting: the device was
		// unlinked while we were away.
		if e.OnConnect {
			h.emit(session.AuthFailed{Err: "logged out: " + e.Reason.String()})
			return
		}
		h.emit(session.Disconnected{Reason: "logged out: " + e.Reason.String()})

	case *events.StreamReplaced:
		h.emit(session.Disconnected{Reason: "stream replaced by another connection"})

	case *events.ConnectFailure:
		h.emit(session.AuthFailed{Err: fmt.Sprintf("connect failure: %v %s", e.Reason, e.Message)})

	case *events.TemporaryBan:
		h.emit(session.AuthFailed{Err: fmt.Sprintf("temporary ban: %v", e.Code)})

	case *events.ClientOutdated:
		h.emit(session.AuthFailed{Err: "client outdated"})

	case *events.PairError:
		h.emit(session.AuthFailed{Err: fmt.Sprintf("pair error: %v", e.Error)})

	}
}

func (h *EventHandler) message(e *events.Message) session.Message {
	info := e.Info
	c := content(e.Message)

	out := session.Message{
		ID:        info.ID,
		Body:      c.body,
		Type:      c.kind,
		FromMe:    info.IsFromMe,
		Timestamp: info.Timestamp,
		HasMedia:  c.media != nil,
	}

	chat := info.Chat.String()
	own := h.src.Identity().JID
	out.Chat = chat
	if info.IsFromMe {
		out.From, out.To = own, chat
	} else {
		out.From, out.To = info.Sender.ToNonAD().String(), own
	}

	if c.media != nil {
		dl, mimeType, filename := c.media, c.mimeType, c.filename
		out.Download = func(ctx context.Context) (*session.Media, error) {
			data, err := h.src.Download(ctx, dl)
			if err != nil {
				return nil, err
			}
			return &session.Media{MimeType: mimeType, Filename: filename, Data: data}, nil
		}
	}

	return out
}

type messageContent struct {
	kind     string
	body     string
	media    whatsmeow.DownloadableMessage
	mimeType string
	filename string
}

func content(msg *waE2E.Message) messageContent {
	if msg == nil {
		return messageContent{kind: "unknown"}
	}

	switch {
	case msg.GetConversation() != "":
		return messageContent{kind: "chat", body: msg.GetConversation()}
	case msg.GetExtendedTextMessage() != nil:
		return messageContent{kind: "chat", body: msg.GetExtendedTextMessage().GetText()}
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return messageContent{kind: "image", body: m.GetCaption(), media: m, mimeType: m.GetMimetype()}
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return messageContent{kind: "video", body: m.GetCaption(), media: m, mimeType: m.GetMimetype()}
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		kind := "audio"
		if m.GetPTT() {
			kind = "ptt"
		}
		return messageContent{kind: kind, media: m, mimeType: m.GetMimetype()}
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		return messageContent{kind: "document", body: m.GetCaption(), media: m, mimeType: m.GetMimetype(), filename: m.GetFileName()}
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return messageContent{kind: "sticker", media: m, mimeType: m.GetMimetype()}
	case msg.GetLocationMessage() != nil:
		m := msg.GetLocationMessage()
		return messageContent{kind: "location", body: fmt.Sprintf("%f,%f", m.GetDegreesLatitude(), m.GetDegreesLongitude())}
	case msg.GetContactMessage() != nil:
		return messageContent{kind: "vcard", body: msg.GetContactMessage().GetVcard()}
	default:
		return messageContent{kind: "unknown"}
	}
}
