package mobilenet_test

import (
	"encoding/json"
	"math/rand"
	"net/netip"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

func TestRan_Contains(t *testing.T) {
	t.Parallel()

	ran := mobilenet.NewRan(0, orb.Point{0, 0}, 10)

	tests := []struct {
		name string
		pos  orb.Point
		want bool
	}{
		{name: "inside", pos: orb.Point{1, 1}, want: true},
		{name: "centre", pos: orb.Point{0, 0}, want: true},
		{name: "on the boundary", pos: orb.Point{10, 0}, want: true},
		{name: "outside", pos: orb.Point{10.0001, 0}, want: false},
		{name: "far outside", pos: orb.Point{100, 100}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			user := mobilenet.NewUser(1, tt.pos, 0, 500, 0)
			require.Equal(t, tt.want, ran.Contains(user))
		})
	}
}

func TestRan_AttachKeepsOrder(t *testing.T) {
	t.Parallel()

	ran := mobilenet.NewRan(3, orb.Point{0, 0}, 10)
	for i := range 3 {
		user := mobilenet.NewUser(uint32(i), orb.Point{0, 0}, 0, 500, 0)
		ran.Attach(mobilenet.NewPDUSession(user, netip.MustParseAddr("10.0.0.1"), 99))
	}

	sessions := ran.Sessions()
	require.Len(t, sessions, 3)
	for i, sess := range sessions {
		require.Equal(t, uint32(i), sess.User().ID())
		// Attach rebinds the weak cell reference.
		require.Equal(t, uint32(3), sess.RanID())
	}
}

func TestRan_AdvanceReturnsLeavers(t *testing.T) {
	t.Parallel()

	ran := mobilenet.NewRan(0, orb.Point{0, 0}, 10)
	stay := mobilenet.NewUser(1, orb.Point{1, 1}, 0, 500, 0)
	leaveA := mobilenet.NewUser(2, orb.Point{2, 2}, 0, 500, 0)
	leaveB := mobilenet.NewUser(3, orb.Point{3, 3}, 0, 500, 0)

	for _, user := range []*mobilenet.User{stay, leaveA, leaveB} {
		ran.Attach(mobilenet.NewPDUSession(user, netip.MustParseAddr("10.0.0.1"), 0))
	}

	leaveA.SetPosition(orb.Point{50, 50})
	leaveB.SetPosition(orb.Point{-50, -50})

	left := ran.Advance(rand.New(rand.NewSource(1)))
	require.Len(t, left, 2)
	require.Equal(t, uint32(2), left[0].User().ID())
	require.Equal(t, uint32(3), left[1].User().ID())

	sessions := ran.Sessions()
	require.Len(t, sessions, 1)
	require.Equal(t, uint32(1), sessions[0].User().ID())
}

func TestRanInfo_RoundTrip(t *testing.T) {
	t.Parallel()

	info := mobilenet.NewRan(4, orb.Point{-12.5, 80}, 100).Info()

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var got mobilenet.RanInfo
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, info, got)
	require.Equal(t, orb.Point{-12.5, 80}, got.Point())
}

func TestPDUSession_Release(t *testing.T) {
	t.Parallel()

	user := mobilenet.NewUser(7, orb.Point{1, 1}, 0, 500, 0)
	ip := netip.MustParseAddr("10.0.0.1")
	sess := mobilenet.NewPDUSession(user, ip, 0)

	gotUser, gotIP := sess.Release()
	require.Same(t, user, gotUser)
	require.Equal(t, ip, gotIP)
}

func TestPDUSessionInfo_RoundTrip(t *testing.T) {
	t.Parallel()

	user := mobilenet.NewUser(7, orb.Point{1, 1}, 0, 500, 0)
	info := mobilenet.NewPDUSession(user, netip.MustParseAddr("10.0.0.1"), 2).Info()

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var got mobilenet.PDUSessionInfo
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, info, got)
	require.Equal(t, "10.0.0.1", got.IP)
	require.Equal(t, uint32(2), got.Ran)
}
