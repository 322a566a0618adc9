package usecase

import (
	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type StatusUsecase struct {
	wa *wa.Manager
}

func NewStatusUsecase(waManager *wa.Manager) *StatusUsecase {
	return &StatusUsecase{wa: waManager}
}

// Execute never fails; unknown users report Exists=false.
func (u *StatusUsecase) Execute(userID string) session.Status {
	return u.wa.SessionStatus(userID)
}
