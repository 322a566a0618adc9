package wa

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/media"
	"github.com/fardannozami/wa-multisession/internal/infra/metrics"
	"github.com/fardannozami/wa-multisession/internal/infra/qr"
	cmap "github.com/orcaman/concurrent-map/v2"
	walog "go.mau.fi/whatsmeow/util/log"
)

const defaultWorkers = 4

type Options struct {
	// Root is the directory holding one credential directory per user.
	Root      string
	NewClient ClientFactory
	Notifier  Notifier
	Fetcher   MediaFetcher
	RenderQR  func(code string) (string, error)
	Metrics   *metrics.Metrics
	Log       walog.Logger
	// Workers bounds how many sessions are restored or drained at once.
	Workers int
}

// Manager is the session registry: at most one Session per user, created,
// looked up and destroyed through it.
type Manager struct {
	root    string
	deps    *sessionDeps
	log     walog.Logger
	workers int

	sessions cmap.ConcurrentMap[string, *Session]
	// locks serializes create/destroy per user.
	locks cmap.ConcurrentMap[string, *sync.Mutex]
}

func NewManager(opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = walog.Noop
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = media.NewFetcher(media.DefaultTimeout, media.DefaultMaxBytes)
	}
	if opts.RenderQR == nil {
		opts.RenderQR = qr.DataURL
	}
	if opts.NewClient == nil {
		opts.NewClient = NewWhatsmeowFactory(opts.Log)
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	return &Manager{
		root: opts.Root,
		deps: &sessionDeps{
			newClient: opts.NewClient,
			notifier:  opts.Notifier,
			fetcher:   opts.Fetcher,
			renderQR:  opts.RenderQR,
			metrics:   opts.Metrics,
			log:       opts.Log.Sub("Session"),
		},
		log:      opts.Log.Sub("Manager"),
		workers:  opts.Workers,
		sessions: cmap.New[*Session](),
		locks:    cmap.New[*sync.Mutex](),
	}
}

func (m *Manager) Root() string {
	return m.root
}

// lockUser returns the user's mutex, locked. The mutex is only valid while
// it is still the one registered for key: unlockUser may retire it, and a
// waiter that acquired a retired mutex starts over.
func (m *Manager) lockUser(key string) *sync.Mutex {
	for {
		m.locks.SetIfAbsent(key, &sync.Mutex{})
		mu, ok := m.locks.Get(key)
		if !ok {
			continue
		}
		mu.Lock()
		if cur, ok := m.locks.Get(key); ok && cur == mu {
			return mu
		}
		mu.Unlock()
	}
}

// unlockUser releases mu and drops it from the lock table once the user has
// no session, so the table only holds tracked users and in-flight calls.
func (m *Manager) unlockUser(key string, mu *sync.Mutex) {
	if !m.sessions.Has(key) {
		m.locks.RemoveCb(key, func(_ string, v *sync.Mutex, exists bool) bool {
			return exists && v == mu
		})
	}
	mu.Unlock()
}

// CreateSession registers a new Session for userID and initializes it.
// It fails with ErrAlreadyExists when the user already has one.
func (m *Manager) CreateSession(ctx context.Context, userID string) (*Session, error) {
	key, err := normalizeSession(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrInvalidInput, err)
	}

	mu := m.lockUser(key)
	defer m.unlockUser(key, mu)

	s := newSession(key, sessionDir(m.root, key), m.deps)
	if !m.sessions.SetIfAbsent(key, s) {
		return nil, fmt.Errorf("%w: %s", session.ErrAlreadyExists, key)
	}
	m.deps.metrics.Transition("", string(session.StateUninitialized))

	if err := s.Initialize(ctx); err != nil {
		s.Disconnect(ctx, false)
		m.untrack(key, s)
		m.log.Errorf("initialize %s: %v", key, err)
		return nil, fmt.Errorf("initialize %s: %w", key, err)
	}

	m.log.Infof("session %s created", key)
	return s, nil
}

// DestroySession disconnects and forgets the user's session. With
// clearCredentials it also deletes the credential directory, even when no
// session is tracked (a crash can leave files without a Session). It never
// fails; the result reports whether a session was tracked.
func (m *Manager) DestroySession(ctx context.Context, userID string, clearCredentials bool) bool {
	key, err := normalizeSession(userID)
	if err != nil {
		m.log.Warnf("destroy %q: %v", userID, err)
		return false
	}

	mu := m.lockUser(key)
	defer m.unlockUser(key, mu)

	if s, ok := m.sessions.Get(key); ok {
		s.Disconnect(ctx, clearCredentials)
		m.untrack(key, s)
		m.log.Infof("session %s destroyed (clear=%t)", key, clearCredentials)
		return true
	}

	if clearCredentials {
		dir := sessionDir(m.root, key)
		if !hasArtifacts(dir) {
			return false
		}
		if err := removeSessionDir(dir); err != nil {
			m.log.Errorf("purge leftover credentials of %s: %v", key, err)
		} else {
			m.log.Infof("purged leftover credentials of %s", key)
		}
	}
	return false
}

func (m *Manager) untrack(key string, s *Session) {
	removed := m.sessions.RemoveCb(key, func(_ string, v *Session, exists bool) bool {
		return exists && v == s
	})
	if removed {
		m.deps.metrics.Transition(string(s.State()), "")
	}
}

func (m *Manager) GetSession(userID string) (*Session, bool) {
	return m.sessions.Get(strings.TrimSpace(userID))
}

func (m *Manager) HasSession(userID string) bool {
	return m.sessions.Has(strings.TrimSpace(userID))
}

// AllSessions returns every tracked session ordered by user id.
func (m *Manager) AllSessions() []*Session {
	items := m.sessions.Items()
	out := make([]*Session, 0, len(items))
	for _, s := range items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].userID < out[j].userID })
	return out
}

// SessionStatus never mutates anything; untracked users get Exists=false.
func (m *Manager) SessionStatus(userID string) session.Status {
	s, ok := m.GetSession(userID)
	if !ok {
		return session.Status{UserID: strings.TrimSpace(userID), State: session.StateUninitialized}
	}
	return s.Status()
}
