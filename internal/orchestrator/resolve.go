package orchestrator

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
)

// userForIP resolves which user held ip at lastAccess: the Created
// PdnConnection event for ip with the greatest timestamp strictly before
// lastAccess. Addresses are pooled, so later connections of other users do
// not shadow the one that was live when the access happened.
func userForIP(events []coreevent.Event, ip string, lastAccess time.Time) (uint32, bool) {
	var (
		found  bool
		userID uint32
		bestTS time.Time
	)
	for _, ev := range events {
		if ev.Kind != coreevent.KindPdnConnection || ev.PdnConnection == nil {
			continue
		}
		if ev.PdnConnection.Status != coreevent.PdnStatusCreated || ev.PdnConnection.IPv4Addr != ip {
			continue
		}
		if !ev.Timestamp.Before(lastAccess) {
			continue
		}
		if !found || ev.Timestamp.After(bestTS) {
			found, userID, bestTS = true, ev.UserID, ev.Timestamp
		}
	}
	return userID, found
}

// latestPosition returns the most recently reported position of userID.
func latestPosition(events []coreevent.Event, userID uint32) (orb.Point, bool) {
	var (
		found  bool
		pos    orb.Point
		bestTS time.Time
	)
	for _, ev := range events {
		if ev.Kind != coreevent.KindLocationReporting || ev.LocationReporting == nil || ev.UserID != userID {
			continue
		}
		if !found || ev.Timestamp.After(bestTS) {
			found, pos, bestTS = true, ev.LocationReporting.GeographicArea.Point(), ev.Timestamp
		}
	}
	return pos, found
}
