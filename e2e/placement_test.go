// Package e2e runs the emulator and the orchestrator in one process,
// wired through a shared in-memory event store, and checks that a
// workload converges onto the edge data center nearest its users.
package e2e

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/emulator"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
	"github.com/Frixxie/mobile-network-emulator/internal/exposure"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
	"github.com/Frixxie/mobile-network-emulator/internal/orchestrator"
)

const (
	appID       = uint32(3)
	nearEdgeID  = uint32(1)
	farEdgeID   = uint32(0)
	tickPeriod  = 5 * time.Second
	pollTimeout = 10 * time.Second
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickEmulator drives one simulation step through the public API, the same
// way an external driver would.
func tickEmulator(t *testing.T, baseURL string) {
	t.Helper()
	resp, err := http.Post(baseURL+"/mobile_network/update_user_positions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func hostsApplication(ctx context.Context, client *orchestrator.Client, edcID uint32) bool {
	apps, err := client.Applications(ctx, edcID)
	if err != nil {
		return false
	}
	for _, app := range apps {
		if app.ID == appID {
			return true
		}
	}
	return false
}

func TestE2E_PlacementConvergesToNearestEdge(t *testing.T) {
	log := testLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Four parked users inside one cell at (100,100). The application
	// starts on the data center at the origin; the one next to the cell
	// should win it.
	far := edge.NewDataCenter(farEdgeID, "edc-far", orb.Point{0, 0})
	near := edge.NewDataCenter(nearEdgeID, "edc-near", orb.Point{100, 100})
	require.NoError(t, far.AddApplication(appID))
	network := edge.NewNetwork(far, near)

	users := []*mobilenet.User{
		mobilenet.NewUser(1, orb.Point{95, 95}, 0, 500, 0),
		mobilenet.NewUser(2, orb.Point{105, 95}, 0, 500, 0),
		mobilenet.NewUser(3, orb.Point{95, 105}, 0, 500, 0),
		mobilenet.NewUser(4, orb.Point{105, 105}, 0, 500, 0),
	}
	rans := []*mobilenet.Ran{mobilenet.NewRan(0, orb.Point{100, 100}, 50)}
	pool := mobilenet.NewIPPool([]netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("10.0.0.3"),
		netip.MustParseAddr("10.0.0.4"),
	})

	emuClock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	core, err := mobilenet.NewCore(&mobilenet.CoreConfig{
		Logger: log,
		Clock:  emuClock,
		Rans:   rans,
		Users:  users,
		Pool:   pool,
		Seed:   7,
	})
	require.NoError(t, err)

	store := eventlog.NewMemory()
	bus, err := exposure.NewBus(log, exposure.BusConfig{})
	require.NoError(t, err)

	server, err := emulator.New(log, emulator.Config{
		Core:    core,
		Network: network,
		Bus:     bus,
		Store:   store,
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serverErrCh := server.Start(ctx, ln)
	baseURL := "http://" + ln.Addr().String()

	client, err := orchestrator.NewClient(baseURL)
	require.NoError(t, err)

	orcClock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	runner, err := orchestrator.NewRunner(log, &orchestrator.RunnerConfig{
		Clock:    orcClock,
		Client:   client,
		Store:    store,
		Interval: tickPeriod,
		Strategy: orchestrator.WeightedCentroid,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	// Two simulation steps: the first attaches the users and samples usage
	// at the session-creation instant, the second samples strictly later,
	// which is what session resolution needs.
	tickEmulator(t, baseURL)
	emuClock.Advance(time.Second)
	tickEmulator(t, baseURL)

	// Keep firing placement iterations until the application lands next to
	// its users.
	require.Eventually(t, func() bool {
		orcClock.Advance(tickPeriod)
		return hostsApplication(ctx, client, nearEdgeID)
	}, pollTimeout, 20*time.Millisecond, "application never moved to the near edge")
	require.False(t, hostsApplication(ctx, client, farEdgeID))

	// More traffic lands on the relocated application; the placement must
	// hold still because the users have not moved.
	for i := 0; i < 3; i++ {
		emuClock.Advance(time.Second)
		tickEmulator(t, baseURL)
		orcClock.Advance(tickPeriod)
	}
	require.Eventually(t, func() bool {
		total, err := client.TotalUses(ctx, nearEdgeID, appID)
		return err == nil && total > 0
	}, pollTimeout, 20*time.Millisecond, "relocated application saw no traffic")
	require.True(t, hostsApplication(ctx, client, nearEdgeID))
	require.False(t, hostsApplication(ctx, client, farEdgeID))

	// The session inventory survives the moves.
	sessions, err := client.ConnectedUsers(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, len(users))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "runner did not stop after cancel")
	}
	select {
	case err, ok := <-serverErrCh:
		if ok {
			require.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		require.FailNow(t, "server did not stop after cancel")
	}
}
