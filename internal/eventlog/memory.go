package eventlog

import (
	"context"
	"sync"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/edge"
)

// Memory is the in-process Store used when no connection string is given,
// and the default store in tests. Appends keep arrival order.
type Memory struct {
	mu      sync.Mutex
	events  []coreevent.Event
	entries []edge.LogEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AppendEvents(_ context.Context, events []coreevent.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *Memory) ScanEvents(_ context.Context) ([]coreevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coreevent.Event, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *Memory) AppendUsage(_ context.Context, entries []edge.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *Memory) ScanUsage(_ context.Context) ([]edge.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]edge.LogEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *Memory) Close() {}
