package wa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/panjf2000/ants/v2"
)

// RestoreSessions recreates a session for every user that has credentials
// on disk and is not tracked yet. One user failing never stops the others.
// A missing root is created and means nothing to restore.
func (m *Manager) RestoreSessions(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return 0, fmt.Errorf("create sessions root: %w", err)
	}

	ids, err := listSessionsFromDisk(m.root)
	if err != nil {
		return 0, fmt.Errorf("scan sessions root: %w", err)
	}
	if len(ids) == 0 {
		m.log.Infof("no sessions to restore")
		return 0, nil
	}

	var restored atomic.Int32
	err = m.forEach(ids, func(id string) {
		if m.HasSession(id) {
			return
		}
		_, err := m.CreateSession(ctx, id)
		m.deps.metrics.SessionRestored(err)
		switch {
		case err == nil:
			restored.Add(1)
		case errors.Is(err, session.ErrAlreadyExists):
			m.log.Debugf("restore %s: already tracked", id)
		default:
			m.log.Errorf("restore %s: %v", id, err)
		}
	})
	if err != nil {
		return int(restored.Load()), err
	}

	m.log.Infof("restored %d of %d sessions", restored.Load(), len(ids))
	return int(restored.Load()), nil
}

// Drain disconnects every tracked session without clearing credentials so
// the next start can restore them.
func (m *Manager) Drain(ctx context.Context) {
	sessions := m.AllSessions()
	if len(sessions) == 0 {
		return
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.userID)
	}

	if err := m.forEach(ids, func(id string) {
		m.DestroySession(ctx, id, false)
	}); err != nil {
		m.log.Errorf("drain: %v", err)
	}
	m.log.Infof("drained %d sessions", len(ids))
}

// forEach runs fn for every id on a pool of m.workers goroutines and waits
// for all of them.
func (m *Manager) forEach(ids []string, fn func(id string)) error {
	pool, err := ants.NewPool(m.workers)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(id)
		}); err != nil {
			wg.Done()
			m.log.Errorf("schedule %s: %v", id, err)
		}
	}
	wg.Wait()

	return nil
}
