package edge

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// delayPerDistance converts plane distance to network delay.
const delayPerDistance = 1.5 // seconds per unit distance

// LogEntry records one application use observed by the edge network.
type LogEntry struct {
	UserID        uint32  `json:"user_id"`
	IPAddress     string  `json:"ip_address"`
	TimeUsedSecs  float64 `json:"time_used_s"`
	ApplicationID uint32  `json:"application_id"`
	TimestampSecs int64   `json:"timestamp_s"`
}

// Network owns the edge data centers, in a fixed deterministic order.
type Network struct {
	dcs []*DataCenter
}

// NewNetwork assembles a network over the given data centers.
func NewNetwork(dcs ...*DataCenter) *Network {
	return &Network{dcs: dcs}
}

// DataCenter returns the data center with the given id.
func (n *Network) DataCenter(id uint32) (*DataCenter, error) {
	for _, dc := range n.dcs {
		if dc.ID() == id {
			return dc, nil
		}
	}
	return nil, fmt.Errorf("edc %d: %w", id, ErrDataCenterNotFound)
}

// DataCenters returns the wire form of every data center, in order.
func (n *Network) DataCenters() []DataCenterInfo {
	out := make([]DataCenterInfo, 0, len(n.dcs))
	for _, dc := range n.dcs {
		out = append(out, dc.Info())
	}
	return out
}

// Applications returns deep copies of every hosted application, iterating
// data centers in order.
func (n *Network) Applications() []Application {
	var out []Application
	for _, dc := range n.dcs {
		out = append(out, dc.Applications()...)
	}
	return out
}

// ApplicationIDs returns the hosted application ids in deterministic order.
func (n *Network) ApplicationIDs() []uint32 {
	var out []uint32
	for _, dc := range n.dcs {
		for _, app := range dc.Applications() {
			out = append(out, app.ID)
		}
	}
	return out
}

// host returns the first data center hosting appID, in order.
func (n *Network) host(appID uint32) (*DataCenter, error) {
	for _, dc := range n.dcs {
		if dc.HasApplication(appID) {
			return dc, nil
		}
	}
	return nil, fmt.Errorf("application %d: %w", appID, ErrApplicationNotFound)
}

// HostOf returns the id of the data center hosting appID.
func (n *Network) HostOf(appID uint32) (uint32, error) {
	dc, err := n.host(appID)
	if err != nil {
		return 0, err
	}
	return dc.ID(), nil
}

// UseApplication records an access to appID from a session (userID, ip)
// whose radio cell sits at radioPos. The reported time used is the modelled
// network delay, distance from the cell to the hosting data center times
// 1.5s, plus the locally measured processing time.
func (n *Network) UseApplication(userID uint32, ip string, appID uint32, radioPos orb.Point, now time.Time) (LogEntry, error) {
	started := time.Now()
	dc, err := n.host(appID)
	if err != nil {
		return LogEntry{}, err
	}
	if err := dc.RecordUse(appID, ip, now); err != nil {
		return LogEntry{}, err
	}
	delay := planar.Distance(radioPos, dc.Position())*delayPerDistance + time.Since(started).Seconds()
	return LogEntry{
		UserID:        userID,
		IPAddress:     ip,
		TimeUsedSecs:  delay,
		ApplicationID: appID,
		TimestampSecs: now.Unix(),
	}, nil
}

// TotalUses returns the access count of appID at the data center edcID.
func (n *Network) TotalUses(edcID, appID uint32) (uint32, error) {
	dc, err := n.DataCenter(edcID)
	if err != nil {
		return 0, err
	}
	return dc.TotalUses(appID)
}
