package wa

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fardannozami/wa-multisession/internal/infra/db"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	walog "go.mau.fi/whatsmeow/util/log"
)

// NewWhatsmeowFactory returns the production ClientFactory: one sqlite
// device store per user inside the user's credential directory.
func NewWhatsmeowFactory(logger walog.Logger) ClientFactory {
	return func(ctx context.Context, cfg ClientConfig) (Client, error) {
		container, sqlDB, err := OpenSQLStore(ctx, StorePath(cfg.Dir), logger.Sub("Store"))
		if err != nil {
			return nil, err
		}

		device, err := getDeviceFromContainer(ctx, container)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("load device: %w", err)
		}

		log := cfg.Log
		if log == nil {
			log = logger.Sub(cfg.UserID)
		}

		return &whatsmeowClient{
			userID: cfg.UserID,
			client: whatsmeow.NewClient(device, logger.Sub("Client/"+cfg.UserID)),
			db:     sqlDB,
			emit:   cfg.Emit,
			log:    log,
		}, nil
	}
}

func OpenSQLStore(ctx context.Context, path string, logger walog.Logger) (*sqlstore.Container, *sql.DB, error) {
	sqlDB, err := db.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	container := sqlstore.NewWithDB(sqlDB, "sqlite", logger)
	if err := container.Upgrade(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("upgrade db schema: %w", err)
	}

	return container, sqlDB, nil
}

func getDeviceFromContainer(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, err
	}
	if device == nil {
		device = container.NewDevice()
	}
	return device, nil
}
