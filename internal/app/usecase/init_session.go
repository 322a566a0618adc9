package usecase

import (
	"context"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type InitSessionInput struct {
	Session string
	// Force replaces a tracked session instead of failing.
	Force bool
	// ClearSession deletes stored credentials first so a fresh scan is
	// required.
	ClearSession bool
}

type InitSessionUsecase struct {
	wa *wa.Manager
}

func NewInitSessionUsecase(waManager *wa.Manager) *InitSessionUsecase {
	return &InitSessionUsecase{wa: waManager}
}

func (u *InitSessionUsecase) Execute(ctx context.Context, in InitSessionInput) (*session.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if in.Force || in.ClearSession {
		if u.wa.HasSession(in.Session) && !in.Force {
			return nil, session.ErrAlreadyExists
		}
		u.wa.DestroySession(ctx, in.Session, in.ClearSession)
	}

	if _, err := u.wa.CreateSession(ctx, in.Session); err != nil {
		return nil, err
	}

	st := u.wa.SessionStatus(in.Session)
	return &st, nil
}
