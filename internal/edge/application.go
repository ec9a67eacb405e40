// Package edge models the compute side of the emulator: edge data centers,
// the applications they host, and the per-application access logs the
// placement controller diffs.
package edge

import (
	"errors"
	"math"
	"time"
)

var (
	ErrApplicationExists   = errors.New("application already exists")
	ErrApplicationNotFound = errors.New("application not found")
	ErrDataCenterNotFound  = errors.New("edge data center not found")
	ErrUsageOverflow       = errors.New("total uses overflows uint32")
)

// Application is an identified workload. Accesses maps an ip to the ordered
// list of access timestamps (epoch-milliseconds) recorded for it.
type Application struct {
	ID       uint32             `json:"id"`
	Accesses map[string][]int64 `json:"accesses"`
}

// NewApplication returns an empty application with the given id.
func NewApplication(id uint32) *Application {
	return &Application{ID: id, Accesses: make(map[string][]int64)}
}

// RecordUse appends an access timestamp for ip.
func (a *Application) RecordUse(ip string, at time.Time) {
	if a.Accesses == nil {
		a.Accesses = make(map[string][]int64)
	}
	a.Accesses[ip] = append(a.Accesses[ip], at.UnixMilli())
}

// TotalUses sums the access list lengths across all ips.
func (a *Application) TotalUses() (uint32, error) {
	var total uint64
	for _, stamps := range a.Accesses {
		total += uint64(len(stamps))
		if total > math.MaxUint32 {
			return 0, ErrUsageOverflow
		}
	}
	return uint32(total), nil
}

// UsesFor returns a copy of the access list recorded for ip.
func (a *Application) UsesFor(ip string) []int64 {
	stamps, ok := a.Accesses[ip]
	if !ok {
		return nil
	}
	out := make([]int64, len(stamps))
	copy(out, stamps)
	return out
}

// Diff returns an application with the same id whose per-ip lists hold the
// timestamps present in a but absent in old. Every ip of a appears in the
// result, with an empty list when nothing is new; exact timestamp equality.
func (a *Application) Diff(old *Application) *Application {
	out := NewApplication(a.ID)
	for ip, stamps := range a.Accesses {
		var seen map[int64]struct{}
		if old != nil {
			if oldStamps, ok := old.Accesses[ip]; ok {
				seen = make(map[int64]struct{}, len(oldStamps))
				for _, t := range oldStamps {
					seen[t] = struct{}{}
				}
			}
		}
		fresh := make([]int64, 0)
		for _, t := range stamps {
			if _, dup := seen[t]; !dup {
				fresh = append(fresh, t)
			}
		}
		out.Accesses[ip] = fresh
	}
	return out
}

// Clone deep-copies the application.
func (a *Application) Clone() Application {
	accesses := make(map[string][]int64, len(a.Accesses))
	for ip, stamps := range a.Accesses {
		cp := make([]int64, len(stamps))
		copy(cp, stamps)
		accesses[ip] = cp
	}
	return Application{ID: a.ID, Accesses: accesses}
}
