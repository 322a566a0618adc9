package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
)

type BulkItem struct {
	To      string
	Message string
}

type BulkResult struct {
	To        string
	Status    string // "sent" | "failed"
	MessageID string
	Error     string
}

type SendBulkOutput struct {
	Results []BulkResult
	Sent    int
	Failed  int
}

// SendBulkUsecase sends items one after another with a random pause in
// [minDelay, maxDelay] between them to stay under abuse detection.
type SendBulkUsecase struct {
	wa       *wa.Manager
	minDelay time.Duration
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewSendBulkUsecase(waManager *wa.Manager, minDelay, maxDelay time.Duration) *SendBulkUsecase {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SendBulkUsecase{
		wa:       waManager,
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleep:    sleepContext,
	}
}

// Execute returns one result per item, in order. A failed item never stops
// the rest; only an unknown session fails the whole call.
func (u *SendBulkUsecase) Execute(ctx context.Context, userID string, items []BulkItem) (*SendBulkOutput, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: messages are required", session.ErrInvalidInput)
	}

	s, err := lookup(u.wa, userID)
	if err != nil {
		return nil, err
	}

	out := &SendBulkOutput{Results: make([]BulkResult, 0, len(items))}
	for i, item := range items {
		if i > 0 {
			if err := u.sleep(ctx, u.delay()); err != nil {
				out.add(BulkResult{To: item.To, Status: "failed", Error: err.Error()})
				continue
			}
		}

		receipt, err := s.SendMessage(ctx, item.To, item.Message)
		if err != nil {
			out.add(BulkResult{To: item.To, Status: "failed", Error: err.Error()})
			continue
		}
		out.add(BulkResult{To: item.To, Status: "sent", MessageID: receipt.MessageID})
	}

	return out, nil
}

func (u *SendBulkUsecase) delay() time.Duration {
	span := u.maxDelay - u.minDelay
	if span <= 0 {
		return u.minDelay
	}
	return u.minDelay + rand.N(span+1)
}

func (o *SendBulkOutput) add(r BulkResult) {
	o.Results = append(o.Results, r)
	if r.Status == "sent" {
		o.Sent++
	} else {
		o.Failed++
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
