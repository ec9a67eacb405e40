// Package exposure implements the network exposure function of the emulator:
// external endpoints subscribe to event kinds for a set of users and receive
// matching events over HTTP, each event at most once per subscriber.
package exposure

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
)

// ErrInvalidSubscriber is returned when a subscriber registration is
// rejected.
var ErrInvalidSubscriber = errors.New("invalid subscriber")

// Subscriber is the wire form of a subscription: where to deliver, which
// event kind, and which users to follow.
type Subscriber struct {
	NotifyEndpoint string         `json:"notify_endpoint"`
	Kind           coreevent.Kind `json:"kind"`
	UserIDs        []uint32       `json:"user_ids"`
}

// Validate rejects unparseable endpoints and unknown event kinds.
func (s Subscriber) Validate() error {
	u, err := url.Parse(s.NotifyEndpoint)
	if err != nil {
		return fmt.Errorf("%w: notify endpoint: %w", ErrInvalidSubscriber, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: notify endpoint %q: scheme must be http or https", ErrInvalidSubscriber, s.NotifyEndpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: notify endpoint %q: missing host", ErrInvalidSubscriber, s.NotifyEndpoint)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidSubscriber, s.Kind)
	}
	return nil
}

// subscription is the bus-owned state behind a Subscriber: the wire form
// plus the delivery bookkeeping. delivered only ever grows.
type subscription struct {
	sub       Subscriber
	users     map[uint32]struct{}
	delivered map[coreevent.Fingerprint]struct{}
}

func newSubscription(sub Subscriber) *subscription {
	users := make(map[uint32]struct{}, len(sub.UserIDs))
	for _, id := range sub.UserIDs {
		users[id] = struct{}{}
	}
	return &subscription{
		sub:       sub,
		users:     users,
		delivered: make(map[coreevent.Fingerprint]struct{}),
	}
}

// wants reports whether the event matches this subscription and has not
// been delivered yet.
func (s *subscription) wants(e coreevent.Event, fp coreevent.Fingerprint) bool {
	if e.Kind != s.sub.Kind {
		return false
	}
	if _, ok := s.users[e.UserID]; !ok {
		return false
	}
	_, done := s.delivered[fp]
	return !done
}
