package wa

import (
	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa/handlers"
	"go.mau.fi/whatsmeow"
	walog "go.mau.fi/whatsmeow/util/log"
)

func attachHandler(client *whatsmeow.Client, src handlers.Source, log walog.Logger, emit func(session.Event)) {
	client.AddEventHandler(handlers.NewEventHandler(log, src, emit))
}
