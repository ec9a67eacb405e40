//go:build integration

package eventlog_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to cleanup postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func TestPostgres_AppendScan(t *testing.T) {
	ctx := context.Background()
	connStr := startPostgres(t, ctx)

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := eventlog.NewPostgres(ctx, log, connStr)
	require.NoError(t, err)
	defer store.Close()

	now := time.UnixMilli(1700000000000).UTC()
	events := []coreevent.Event{
		coreevent.NewLocationReporting(7, 0, orb.Point{1, 1}, coreevent.LdrEnteringArea, 1.5, now),
		coreevent.NewPdnConnection(7, coreevent.PdnStatusCreated, netip.MustParseAddr("10.0.0.1"), now.Add(time.Millisecond)),
		coreevent.NewLocationReporting(7, 0, orb.Point{1, 1}, coreevent.LdrMotion, 1.5, now.Add(2*time.Millisecond)),
	}
	require.NoError(t, store.AppendEvents(ctx, events))

	got, err := store.ScanEvents(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	// Replaying the same batch must not duplicate events.
	require.NoError(t, store.AppendEvents(ctx, events))
	got, err = store.ScanEvents(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(events))
}

func TestPostgres_Usage(t *testing.T) {
	ctx := context.Background()
	connStr := startPostgres(t, ctx)

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := eventlog.NewPostgres(ctx, log, connStr)
	require.NoError(t, err)
	defer store.Close()

	want := []edge.LogEntry{
		{UserID: 7, IPAddress: "10.0.0.1", TimeUsedSecs: 7.5, ApplicationID: 3, TimestampSecs: 1700000000},
		{UserID: 9, IPAddress: "10.0.0.2", TimeUsedSecs: 1.25, ApplicationID: 4, TimestampSecs: 1700000001},
	}
	require.NoError(t, store.AppendUsage(ctx, want))

	got, err := store.ScanUsage(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
