package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type SendMediaInput struct {
	Session string
	To      string
	URL     string
	Caption string
}

type SendMediaUsecase struct {
	wa *wa.Manager
}

func NewSendMediaUsecase(waManager *wa.Manager) *SendMediaUsecase {
	return &SendMediaUsecase{wa: waManager}
}

func (u *SendMediaUsecase) Execute(ctx context.Context, in SendMediaInput) (*SendTextOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.To) == "" {
		return nil, fmt.Errorf("%w: to is required", session.ErrInvalidInput)
	}
	if _, err := url.ParseRequestURI(in.URL); err != nil {
		return nil, fmt.Errorf("%w: url: %w", session.ErrInvalidInput, err)
	}

	s, err := lookup(u.wa, in.Session)
	if err != nil {
		return nil, err
	}

	receipt, err := s.SendMedia(ctx, in.To, in.URL, in.Caption)
	if err != nil {
		return nil, err
	}

	return &SendTextOutput{
		Status:    "sent",
		MessageID: receipt.MessageID,
		Timestamp: receipt.Timestamp,
	}, nil
}
