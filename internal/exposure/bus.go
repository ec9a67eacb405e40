package exposure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
)

// ErrDeliveryFailed marks a notify POST that did not reach the subscriber
// with a 2xx. The events of the batch stay undelivered and are retried on
// the next publish.
var ErrDeliveryFailed = errors.New("event delivery failed")

const defaultNotifyTimeout = 10 * time.Second

// BusConfig assembles a Bus.
type BusConfig struct {
	// Client posts event batches to subscriber endpoints. Optional; a
	// default client bounded by NotifyTimeout is built when nil.
	Client *http.Client

	// NotifyTimeout bounds one delivery POST. Defaults to 10s.
	NotifyTimeout time.Duration
}

func (c *BusConfig) Validate() error {
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = defaultNotifyTimeout
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.NotifyTimeout}
	}
	return nil
}

// Bus owns the subscriber set and pushes matching events to each
// subscriber's notify endpoint. Registration and reads share an RWMutex;
// publish rounds are serialised by their own mutex so the at-most-once
// guarantee holds even when the publish endpoint is hit concurrently. The
// subscriber lock is never held across outbound HTTP.
type Bus struct {
	log    *slog.Logger
	client *http.Client

	mu   sync.RWMutex
	subs []*subscription

	publishMu sync.Mutex
}

// NewBus builds a Bus from the config.
func NewBus(log *slog.Logger, cfg BusConfig) (*Bus, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bus{log: log, client: cfg.Client}, nil
}

// AddSubscriber registers a subscriber after validating it.
func (b *Bus) AddSubscriber(sub Subscriber) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, newSubscription(sub))
	b.log.Info("subscriber registered",
		"endpoint", sub.NotifyEndpoint,
		"kind", sub.Kind,
		"users", len(sub.UserIDs))
	return nil
}

// Subscribers returns the wire form of every subscriber, in registration
// order.
func (b *Bus) Subscribers() []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		out = append(out, s.sub)
	}
	return out
}

// Publish scans the store once and delivers every event a subscriber has
// not seen yet, batched per subscriber as a JSON array. Events are marked
// delivered only after a 2xx; a failed POST leaves the whole batch eligible
// for the next round. Empty batches are skipped without an HTTP call. The
// returned count is the number of event deliveries that succeeded.
func (b *Bus) Publish(ctx context.Context, store eventlog.Store) (int, error) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	events, err := store.ScanEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	fps := make([]coreevent.Fingerprint, len(events))
	for i, event := range events {
		fp, err := event.Fingerprint()
		if err != nil {
			return 0, fmt.Errorf("fingerprint event: %w", err)
		}
		fps[i] = fp
	}

	b.mu.RLock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		var batch []coreevent.Event
		var batchFps []coreevent.Fingerprint
		for i, event := range events {
			if sub.wants(event, fps[i]) {
				batch = append(batch, event)
				batchFps = append(batchFps, fps[i])
			}
		}
		if len(batch) == 0 {
			continue
		}
		if err := b.notify(ctx, sub.sub.NotifyEndpoint, batch); err != nil {
			b.log.Warn("subscriber notify failed, batch stays eligible",
				"endpoint", sub.sub.NotifyEndpoint,
				"events", len(batch),
				"error", err)
			continue
		}
		for _, fp := range batchFps {
			sub.delivered[fp] = struct{}{}
		}
		delivered += len(batch)
		b.log.Debug("subscriber notified",
			"endpoint", sub.sub.NotifyEndpoint,
			"events", len(batch))
	}
	return delivered, nil
}

// notify POSTs the batch as a JSON array to the endpoint.
func (b *Bus) notify(ctx context.Context, endpoint string, batch []coreevent.Event) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: endpoint returned %s", ErrDeliveryFailed, resp.Status)
	}
	return nil
}
