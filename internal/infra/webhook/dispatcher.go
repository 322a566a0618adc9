package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/cenkalti/backoff/v4"
	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/fardannozami/wa-multisession/internal/infra/metrics"
	"github.com/valyala/bytebufferpool"
	walog "go.mau.fi/whatsmeow/util/log"
)

const (
	SecretHeader = "X-Webhook-Secret"
	EventHeader  = "X-Webhook-Event"

	defaultTimeout   = 10 * time.Second
	defaultQueueSize = 256
	defaultIdle      = time.Minute
	maxRetries       = 2
)

type Config struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	QueueSize uint64
	// IdleTimeout is how long a user's lane lives without traffic.
	IdleTimeout time.Duration
}

// Dispatcher delivers notifications to the backend. Every user gets a lane
// with its own worker so notifications for one user go out in the order they
// were queued, while a slow backend only ever delays that user's lane.
// Delivery is best effort: failures are logged and the notification dropped.
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	log     walog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	lanes  map[string]*queue.RingBuffer
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg Config, logger walog.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdle
	}
	if logger == nil {
		logger = walog.Noop
	}
	return &Dispatcher{
		cfg:     cfg,
		client:  &http.Client{},
		log:     logger,
		metrics: m,
		lanes:   make(map[string]*queue.RingBuffer),
	}
}

func (d *Dispatcher) Enabled() bool {
	return d.cfg.URL != ""
}

// Notify queues n and returns immediately.
func (d *Dispatcher) Notify(n session.Notification) {
	if !d.Enabled() {
		d.log.Debugf("webhook disabled, skipping %s for %s", n.Event, n.UserID)
		return
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.Warnf("webhook dispatcher closed, dropping %s for %s", n.Event, n.UserID)
		d.metrics.WebhookDropped(n.Event)
		return
	}

	lane, ok := d.lanes[n.UserID]
	if !ok {
		lane = queue.NewRingBuffer(d.cfg.QueueSize)
		d.lanes[n.UserID] = lane
		d.wg.Add(1)
		go d.run(n.UserID, lane)
	}

	queued, err := lane.Offer(n)
	if err != nil || !queued {
		d.log.Warnf("webhook lane for %s is full, dropping %s", n.UserID, n.Event)
		d.metrics.WebhookDropped(n.Event)
	}
}

func (d *Dispatcher) run(userID string, lane *queue.RingBuffer) {
	defer d.wg.Done()

	for {
		item, err := lane.Poll(d.cfg.IdleTimeout)
		if err != nil {
			if !errors.Is(err, queue.ErrTimeout) {
				return
			}
			// Retire the lane only while holding mu so Notify cannot slip
			// an item into a lane nobody reads anymore.
			d.mu.Lock()
			if lane.Len() == 0 {
				if d.lanes[userID] == lane {
					delete(d.lanes, userID)
				}
				d.mu.Unlock()
				lane.Dispose()
				return
			}
			d.mu.Unlock()
			continue
		}

		n, ok := item.(session.Notification)
		if !ok {
			continue
		}
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n session.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := json.NewEncoder(buf).Encode(n); err != nil {
		d.log.Errorf("webhook %s for %s: encode: %v", n.Event, n.UserID, err)
		d.metrics.WebhookDelivered(n.Event, err)
		return
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	err := backoff.Retry(func() error {
		return d.post(ctx, n.Event, buf.B)
	}, policy)

	d.metrics.WebhookDelivered(n.Event, err)
	if err != nil {
		d.log.Warnf("webhook %s for %s failed: %v", n.Event, n.UserID, err)
		return
	}
	d.log.Debugf("webhook %s for %s delivered", n.Event, n.UserID)
}

func (d *Dispatcher) post(ctx context.Context, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, event)
	if d.cfg.Secret != "" {
		req.Header.Set(SecretHeader, d.cfg.Secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("backend responded %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("backend rejected with %d", resp.StatusCode))
	}
}

// Close stops accepting notifications, gives queued ones until ctx is done
// to go out, then stops every lane.
func (d *Dispatcher) Close(ctx context.Context) {
	d.mu.Lock()
	d.closed = true
	lanes := make([]*queue.RingBuffer, 0, len(d.lanes))
	for _, lane := range d.lanes {
		lanes = append(lanes, lane)
	}
	d.mu.Unlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		pending := false
		for _, lane := range lanes {
			if lane.Len() > 0 {
				pending = true
				break
			}
		}
		if !pending {
			break
		}
		select {
		case <-ctx.Done():
			break wait
		case <-ticker.C:
		}
	}

	for _, lane := range lanes {
		lane.Dispose()
	}
	d.wg.Wait()
}
