package usecase

import (
	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type ListSessionsUsecase struct {
	wa *wa.Manager
}

func NewListSessionsUsecase(waManager *wa.Manager) *ListSessionsUsecase {
	return &ListSessionsUsecase{wa: waManager}
}

func (u *ListSessionsUsecase) Execute() []session.Status {
	sessions := u.wa.AllSessions()
	out := make([]session.Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	return out
}
