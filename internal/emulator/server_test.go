package emulator_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/emulator"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
	"github.com/Frixxie/mobile-network-emulator/internal/exposure"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

func newServerConfig(t *testing.T, poolIPs ...string) emulator.Config {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if len(poolIPs) == 0 {
		poolIPs = []string{"10.0.0.1", "10.0.0.2"}
	}
	addrs := make([]netip.Addr, 0, len(poolIPs))
	for _, ip := range poolIPs {
		addrs = append(addrs, netip.MustParseAddr(ip))
	}

	core, err := mobilenet.NewCore(&mobilenet.CoreConfig{
		Logger: log,
		Rans:   []*mobilenet.Ran{mobilenet.NewRan(0, orb.Point{0, 0}, 100)},
		Users: []*mobilenet.User{
			mobilenet.NewUser(1, orb.Point{10, 0}, 0, 500, 0),
			mobilenet.NewUser(2, orb.Point{-10, 0}, 0, 500, 0),
		},
		Pool: mobilenet.NewIPPool(addrs),
		Seed: 1,
	})
	require.NoError(t, err)

	bus, err := exposure.NewBus(log, exposure.BusConfig{})
	require.NoError(t, err)

	return emulator.Config{
		Core:            core,
		Network:         edge.NewNetwork(edge.NewDataCenter(0, "edc-0", orb.Point{0, 0})),
		Bus:             bus,
		Store:           eventlog.NewMemory(),
		ShutdownTimeout: 250 * time.Millisecond,
	}
}

func TestServer_New_NilLogger(t *testing.T) {
	t.Parallel()

	_, err := emulator.New(nil, newServerConfig(t))
	require.ErrorContains(t, err, "logger is required")
}

func TestServer_New_InvalidConfig(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := emulator.New(log, emulator.Config{})
	require.Error(t, err)
}

func TestServer_ContextCancelStopsServer(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := emulator.New(log, newServerConfig(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// Ensure the Serve goroutine has actually started and is accepting.
	c, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	_ = c.Close()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
}

func TestServer_InvariantViolationStopsServer(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	// One address for two coverable users: the first tick must kill the
	// server.
	s, err := emulator.New(log, newServerConfig(t, "10.0.0.1"))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := s.Start(ctx, ln)

	resp, err := http.Post("http://"+ln.Addr().String()+"/mobile_network/update_user_positions", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, mobilenet.ErrInvariant)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after the invariant violation")
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := emulator.New(log, newServerConfig(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_ = s.Start(ctx, ln)

	req, err := http.NewRequest(http.MethodOptions, "http://"+ln.Addr().String()+"/network/edge_data_centers", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	getResp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	require.Equal(t, "*", getResp.Header.Get("Access-Control-Allow-Origin"))
}
