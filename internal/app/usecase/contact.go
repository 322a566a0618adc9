package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fardannozami/wa-multisession/internal/domain/phone"
	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type ContactUsecase struct {
	wa *wa.Manager
}

func NewContactUsecase(waManager *wa.Manager) *ContactUsecase {
	return &ContactUsecase{wa: waManager}
}

// Execute looks the number up in the session's contact store. An unknown
// contact is not an error: the result has Found=false.
func (u *ContactUsecase) Execute(ctx context.Context, userID, number string) (*session.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := number
	if !strings.Contains(number, "@") {
		normalized, err := phone.Normalize(number)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", session.ErrInvalidInput, err)
		}
		p = normalized
	}

	s, err := lookup(u.wa, userID)
	if err != nil {
		return nil, err
	}

	if c := s.GetContactInfo(ctx, p); c != nil {
		return c, nil
	}
	return &session.Contact{Number: p, Found: false}, nil
}
