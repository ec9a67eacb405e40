// Package eventlog persists the events the mobile network core emits and the
// network-usage entries the edge records. Both the emulator and the
// placement controller share one store; append-many and scan-all are the
// only operations the system relies on.
package eventlog

import (
	"context"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/edge"
)

// Store is the narrow contract both processes program against. Scans return
// an unordered collection; callers re-filter and re-sort in memory. There is
// no durability guarantee beyond what the backing implementation provides.
type Store interface {
	AppendEvents(ctx context.Context, events []coreevent.Event) error
	ScanEvents(ctx context.Context) ([]coreevent.Event, error)
	AppendUsage(ctx context.Context, entries []edge.LogEntry) error
	ScanUsage(ctx context.Context) ([]edge.LogEntry, error)
	Close()
}
