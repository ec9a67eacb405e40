// Package coreevent defines the typed events the mobile network core emits
// into the shared event log: PDN connection lifecycle and location reports.
package coreevent

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Kind discriminates the event union on the wire.
type Kind string

const (
	KindPdnConnection     Kind = "PdnConnection"
	KindLocationReporting Kind = "LocationReporting"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPdnConnection, KindLocationReporting:
		return true
	default:
		return false
	}
}

// PdnStatus is the lifecycle state carried by a PdnConnection event.
type PdnStatus string

const (
	PdnStatusCreated  PdnStatus = "Created"
	PdnStatusReleased PdnStatus = "Released"
)

// LdrType classifies a location report.
type LdrType string

const (
	LdrEnteringArea LdrType = "EnteringArea"
	LdrLeavingArea  LdrType = "LeavingArea"
	LdrMotion       LdrType = "Motion"
)

// Fixed exposure-interface values; the emulator models a single PLMN with
// one exposure function and cell-id positioning only.
const (
	apnDefault         = "Default"
	pdnTypeIPv4        = "Ipv4"
	interfaceIndExpFn  = "ExposureFunction"
	plmnID             = "1"
	twanID             = "1"
	positionMethodCell = "CellId"
	qosAccuracyMet     = "RequestedAccuracyFulfilled"
)

// PdnConnectionInfo is the payload of a PdnConnection event.
type PdnConnectionInfo struct {
	Status       PdnStatus `json:"status"`
	Apn          string    `json:"apn"`
	PdnType      string    `json:"pdn_type"`
	InterfaceInd string    `json:"interface_ind"`
	IPv4Addr     string    `json:"ipv4_addr"`
}

// GeographicArea is a point location in the simulation plane.
type GeographicArea struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point converts the area to an orb.Point.
func (g GeographicArea) Point() orb.Point {
	return orb.Point{g.X, g.Y}
}

// AccuracyFulfilment mirrors the achieved positioning QoS of a report.
type AccuracyFulfilment struct {
	HAccuracy float64 `json:"h_accuracy"`
	VAccuracy float64 `json:"v_accuracy"`
}

// LocationInfo is the payload of a LocationReporting event. CellID is the
// authoritative cell identity; ENodeBID and the area ids carry its string
// form for consumers that expect 3GPP-style fields.
type LocationInfo struct {
	AgeOfLocationInfo int64              `json:"age_of_location_info"`
	CellID            uint32             `json:"cell_id"`
	ENodeBID          string             `json:"e_node_b_id"`
	RoutingAreaID     string             `json:"routing_area_id"`
	TrackingAreaID    string             `json:"tracking_area_id"`
	PlmnID            string             `json:"plmn_id"`
	TwanID            string             `json:"twan_id"`
	GeographicArea    GeographicArea     `json:"geographic_area"`
	PositionMethod    []string           `json:"position_method"`
	QosFulfillInd     string             `json:"qos_fulfill_ind"`
	UeVelocity        float64            `json:"ue_velocity"`
	LdrType           LdrType            `json:"ldr_type"`
	AchievedQos       AccuracyFulfilment `json:"achieved_qos"`
}

// Event is a tagged union: exactly one payload pointer is set, matching Kind.
// Timestamps are stored at millisecond resolution so an event round-trips
// the wire unchanged.
type Event struct {
	Kind              Kind
	UserID            uint32
	Timestamp         time.Time
	PdnConnection     *PdnConnectionInfo
	LocationReporting *LocationInfo
}

// NewPdnConnection builds a PdnConnection event for a user/ip pair.
func NewPdnConnection(userID uint32, status PdnStatus, ip netip.Addr, now time.Time) Event {
	return Event{
		Kind:      KindPdnConnection,
		UserID:    userID,
		Timestamp: now.UTC().Truncate(time.Millisecond),
		PdnConnection: &PdnConnectionInfo{
			Status:       status,
			Apn:          apnDefault,
			PdnType:      pdnTypeIPv4,
			InterfaceInd: interfaceIndExpFn,
			IPv4Addr:     ip.String(),
		},
	}
}

// NewLocationReporting builds a LocationReporting event for a user observed
// at pos inside cellID.
func NewLocationReporting(userID, cellID uint32, pos orb.Point, ldr LdrType, velocity float64, now time.Time) Event {
	now = now.UTC().Truncate(time.Millisecond)
	eNodeB := strconv.FormatUint(uint64(cellID), 10)
	return Event{
		Kind:      KindLocationReporting,
		UserID:    userID,
		Timestamp: now,
		LocationReporting: &LocationInfo{
			AgeOfLocationInfo: now.Unix(),
			CellID:            cellID,
			ENodeBID:          eNodeB,
			RoutingAreaID:     eNodeB,
			TrackingAreaID:    eNodeB,
			PlmnID:            plmnID,
			TwanID:            twanID,
			GeographicArea:    GeographicArea{X: pos.X(), Y: pos.Y()},
			PositionMethod:    []string{positionMethodCell},
			QosFulfillInd:     qosAccuracyMet,
			UeVelocity:        velocity,
			LdrType:           ldr,
			AchievedQos:       AccuracyFulfilment{HAccuracy: 1.0, VAccuracy: 1.0},
		},
	}
}

// envelope is the wire form: canonical {kind, user_id, timestamp, payload}
// with the timestamp mapped to epoch-milliseconds.
type envelope struct {
	Kind        Kind            `json:"kind"`
	UserID      uint32          `json:"user_id"`
	TimestampMs int64           `json:"timestamp_ms"`
	Payload     json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Kind {
	case KindPdnConnection:
		if e.PdnConnection == nil {
			return nil, fmt.Errorf("event %s has no pdn connection payload", e.Kind)
		}
		payload = e.PdnConnection
	case KindLocationReporting:
		if e.LocationReporting == nil {
			return nil, fmt.Errorf("event %s has no location payload", e.Kind)
		}
		payload = e.LocationReporting
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	return json.Marshal(envelope{
		Kind:        e.Kind,
		UserID:      e.UserID,
		TimestampMs: e.Timestamp.UnixMilli(),
		Payload:     raw,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	out := Event{
		Kind:      env.Kind,
		UserID:    env.UserID,
		Timestamp: time.UnixMilli(env.TimestampMs).UTC(),
	}
	switch env.Kind {
	case KindPdnConnection:
		var info PdnConnectionInfo
		if err := json.Unmarshal(env.Payload, &info); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
		out.PdnConnection = &info
	case KindLocationReporting:
		var info LocationInfo
		if err := json.Unmarshal(env.Payload, &info); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
		out.LocationReporting = &info
	default:
		return fmt.Errorf("unknown event kind %q", env.Kind)
	}
	*e = out
	return nil
}
