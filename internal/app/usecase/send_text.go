package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type SendTextInput struct {
	Session string
	To      string
	Message string
}

type SendTextOutput struct {
	Status    string
	MessageID string
	Timestamp time.Time
}

type SendTextUsecase struct {
	wa *wa.Manager
}

func NewSendTextUsecase(waManager *wa.Manager) *SendTextUsecase {
	return &SendTextUsecase{wa: waManager}
}

func (u *SendTextUsecase) Execute(ctx context.Context, in SendTextInput) (*SendTextOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.To) == "" {
		return nil, fmt.Errorf("%w: to is required", session.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", session.ErrInvalidInput)
	}

	s, err := lookup(u.wa, in.Session)
	if err != nil {
		return nil, err
	}

	receipt, err := s.SendMessage(ctx, in.To, in.Message)
	if err != nil {
		return nil, err
	}

	return &SendTextOutput{
		Status:    "sent",
		MessageID: receipt.MessageID,
		Timestamp: receipt.Timestamp,
	}, nil
}
