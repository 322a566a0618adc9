package usecase

import (
	"context"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

const (
	CodeWaitingScan = "waiting_scan"
	CodeConnected   = "connected"
	CodePending     = "pending"
)

type GetCodeOutput struct {
	Status string // "waiting_scan" | "connected" | "pending"
	Code   string
}

type GetCodeUsecase struct {
	wa *wa.Manager
}

func NewGetCodeUsecase(waManager *wa.Manager) *GetCodeUsecase {
	return &GetCodeUsecase{wa: waManager}
}

func (u *GetCodeUsecase) Execute(ctx context.Context, userID string) (*GetCodeOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := lookup(u.wa, userID)
	if err != nil {
		return nil, err
	}

	st := s.Status()
	switch {
	case st.State == session.StateConnected:
		return &GetCodeOutput{Status: CodeConnected}, nil
	case st.Code != "":
		return &GetCodeOutput{Status: CodeWaitingScan, Code: st.Code}, nil
	default:
		return &GetCodeOutput{Status: CodePending}, nil
	}
}
