package edge

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// DataCenter is a compute host in the plane. It exclusively owns the
// applications it hosts; the slice keeps insertion order so lookups are
// deterministic.
type DataCenter struct {
	id   uint32
	name string
	pos  orb.Point
	apps []*Application
}

// DataCenterInfo is the wire form of a data center.
type DataCenterInfo struct {
	ID   uint32  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Point converts the info position to an orb.Point.
func (i DataCenterInfo) Point() orb.Point {
	return orb.Point{i.X, i.Y}
}

// NewDataCenter returns an empty data center.
func NewDataCenter(id uint32, name string, pos orb.Point) *DataCenter {
	return &DataCenter{id: id, name: name, pos: pos}
}

func (d *DataCenter) ID() uint32          { return d.id }
func (d *DataCenter) Name() string        { return d.name }
func (d *DataCenter) Position() orb.Point { return d.pos }

// Info returns the wire form of the data center.
func (d *DataCenter) Info() DataCenterInfo {
	return DataCenterInfo{ID: d.id, Name: d.name, X: d.pos.X(), Y: d.pos.Y()}
}

func (d *DataCenter) application(appID uint32) (*Application, bool) {
	for _, app := range d.apps {
		if app.ID == appID {
			return app, true
		}
	}
	return nil, false
}

// HasApplication reports whether appID is hosted here.
func (d *DataCenter) HasApplication(appID uint32) bool {
	_, ok := d.application(appID)
	return ok
}

// AddApplication hosts a fresh application under appID.
func (d *DataCenter) AddApplication(appID uint32) error {
	if d.HasApplication(appID) {
		return fmt.Errorf("edc %d: application %d: %w", d.id, appID, ErrApplicationExists)
	}
	d.apps = append(d.apps, NewApplication(appID))
	return nil
}

// RemoveApplication drops appID and its access log.
func (d *DataCenter) RemoveApplication(appID uint32) error {
	for i, app := range d.apps {
		if app.ID == appID {
			d.apps = append(d.apps[:i], d.apps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("edc %d: application %d: %w", d.id, appID, ErrApplicationNotFound)
}

// RecordUse appends an access for ip to the hosted application appID.
func (d *DataCenter) RecordUse(appID uint32, ip string, at time.Time) error {
	app, ok := d.application(appID)
	if !ok {
		return fmt.Errorf("edc %d: application %d: %w", d.id, appID, ErrApplicationNotFound)
	}
	app.RecordUse(ip, at)
	return nil
}

// TotalUses returns the access count of the hosted application appID.
func (d *DataCenter) TotalUses(appID uint32) (uint32, error) {
	app, ok := d.application(appID)
	if !ok {
		return 0, fmt.Errorf("edc %d: application %d: %w", d.id, appID, ErrApplicationNotFound)
	}
	return app.TotalUses()
}

// Usage returns a copy of the per-ip access log of appID.
func (d *DataCenter) Usage(appID uint32) (map[string][]int64, error) {
	app, ok := d.application(appID)
	if !ok {
		return nil, fmt.Errorf("edc %d: application %d: %w", d.id, appID, ErrApplicationNotFound)
	}
	return app.Clone().Accesses, nil
}

// Applications returns deep copies of the hosted applications in order.
func (d *DataCenter) Applications() []Application {
	out := make([]Application, 0, len(d.apps))
	for _, app := range d.apps {
		out = append(out, app.Clone())
	}
	return out
}
