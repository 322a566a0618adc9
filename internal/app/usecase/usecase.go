package usecase

import (
	"fmt"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

func lookup(m *wa.Manager, userID string) (*wa.Session, error) {
	s, ok := m.GetSession(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, userID)
	}
	return s, nil
}
