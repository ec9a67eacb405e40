package coreevent_test

import (
	"encoding/json"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
)

func TestEvent_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123).UTC()

	tests := []struct {
		name  string
		event coreevent.Event
	}{
		{
			name:  "pdn connection created",
			event: coreevent.NewPdnConnection(7, coreevent.PdnStatusCreated, netip.MustParseAddr("10.0.0.1"), now),
		},
		{
			name:  "pdn connection released",
			event: coreevent.NewPdnConnection(9, coreevent.PdnStatusReleased, netip.MustParseAddr("10.0.0.2"), now),
		},
		{
			name:  "location entering area",
			event: coreevent.NewLocationReporting(7, 3, orb.Point{1.5, -2.25}, coreevent.LdrEnteringArea, 1.5, now),
		},
		{
			name:  "location motion",
			event: coreevent.NewLocationReporting(12, 0, orb.Point{-499.5, 499.5}, coreevent.LdrMotion, 0, now),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tt.event)
			require.NoError(t, err)

			var got coreevent.Event
			require.NoError(t, json.Unmarshal(data, &got))

			if diff := cmp.Diff(tt.event, got); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvent_WireShape(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123).UTC()
	event := coreevent.NewPdnConnection(7, coreevent.PdnStatusCreated, netip.MustParseAddr("10.0.0.1"), now)

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Equal(t, "PdnConnection", wire["kind"])
	require.Equal(t, float64(7), wire["user_id"])
	require.Equal(t, float64(1700000000123), wire["timestamp_ms"])

	payload, ok := wire["payload"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Created", payload["status"])
	require.Equal(t, "10.0.0.1", payload["ipv4_addr"])
	require.Equal(t, "Default", payload["apn"])
	require.Equal(t, "Ipv4", payload["pdn_type"])
	require.Equal(t, "ExposureFunction", payload["interface_ind"])
}

func TestEvent_MarshalRejectsMalformed(t *testing.T) {
	t.Parallel()

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		_, err := json.Marshal(coreevent.Event{Kind: "Bogus", UserID: 1})
		require.Error(t, err)
	})

	t.Run("missing payload", func(t *testing.T) {
		t.Parallel()
		_, err := json.Marshal(coreevent.Event{Kind: coreevent.KindPdnConnection, UserID: 1})
		require.Error(t, err)
	})

	t.Run("unmarshal unknown kind", func(t *testing.T) {
		t.Parallel()
		var got coreevent.Event
		err := json.Unmarshal([]byte(`{"kind":"Bogus","user_id":1,"timestamp_ms":0,"payload":{}}`), &got)
		require.Error(t, err)
	})
}

func TestEvent_LocationPayloadCarriesCell(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123).UTC()
	event := coreevent.NewLocationReporting(7, 42, orb.Point{3, 4}, coreevent.LdrLeavingArea, 1.5, now)

	loc := event.LocationReporting
	require.NotNil(t, loc)
	require.Equal(t, uint32(42), loc.CellID)
	require.Equal(t, "42", loc.ENodeBID)
	require.Equal(t, coreevent.LdrLeavingArea, loc.LdrType)
	require.Equal(t, orb.Point{3, 4}, loc.GeographicArea.Point())
	require.Equal(t, []string{"CellId"}, loc.PositionMethod)
	require.Equal(t, "RequestedAccuracyFulfilled", loc.QosFulfillInd)
}
