package usecase

import (
	"context"

	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type DisconnectUsecase struct {
	wa *wa.Manager
}

func NewDisconnectUsecase(waManager *wa.Manager) *DisconnectUsecase {
	return &DisconnectUsecase{wa: waManager}
}

// Execute destroys the user's session and, with clearSession, its stored
// credentials. It reports whether a session was tracked and never fails.
func (u *DisconnectUsecase) Execute(ctx context.Context, userID string, clearSession bool) bool {
	return u.wa.DestroySession(ctx, userID, clearSession)
}
