package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/Frixxie/mobile-network-emulator/config"
	"github.com/Frixxie/mobile-network-emulator/internal/emulator"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
	"github.com/Frixxie/mobile-network-emulator/internal/exposure"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultHost        = "0.0.0.0"
	defaultPort        = 8080
	defaultMetricsAddr = ":2112"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	showVersionFlag := flag.Bool("version", false, "show version and exit")
	verboseFlag := flag.Bool("verbose", false, "verbose mode - show debug logs")
	hostFlag := flag.String("host", defaultHost, "address to bind the control-plane API on")
	portFlag := flag.Uint16("port", defaultPort, "port to bind the control-plane API on")
	scenarioFlag := flag.String("scenario", "", "path to a scenario yaml file (default: built-in topology)")
	eventStoreFlag := flag.String("event-store", "", "postgres DSN for the shared event store (env: EVENT_STORE_DSN; default: in-memory)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	log := newLogger(*verboseFlag)

	scenario := config.Default()
	if *scenarioFlag != "" {
		loaded, err := config.Load(*scenarioFlag)
		if err != nil {
			log.Error("failed to load scenario", "path", *scenarioFlag, "error", err)
			return err
		}
		scenario = loaded
	}
	topology, err := scenario.Build()
	if err != nil {
		log.Error("failed to build topology", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Set up prometheus metrics server if enabled.
	if *metricsAddrFlag != "" {
		emulator.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("Failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("Failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	store, err := newEventStore(ctx, log, config.EventStoreDSN(*eventStoreFlag))
	if err != nil {
		log.Error("failed to open event store", "error", err)
		return err
	}
	defer store.Close()

	core, err := mobilenet.NewCore(&mobilenet.CoreConfig{
		Logger: log,
		Clock:  clockwork.NewRealClock(),
		Rans:   topology.Rans,
		Users:  topology.Users,
		Pool:   topology.Pool,
		Seed:   topology.Seed,
	})
	if err != nil {
		log.Error("failed to create mobile network core", "error", err)
		return err
	}

	bus, err := exposure.NewBus(log, exposure.BusConfig{})
	if err != nil {
		log.Error("failed to create exposure bus", "error", err)
		return err
	}

	server, err := emulator.New(log, emulator.Config{
		Core:    core,
		Network: topology.Network,
		Bus:     bus,
		Store:   store,
	})
	if err != nil {
		log.Error("failed to create server", "error", err)
		return err
	}

	addr := net.JoinHostPort(*hostFlag, strconv.Itoa(int(*portFlag)))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("failed to listen", "address", addr, "error", err)
		return err
	}

	log.Info("emulator listening",
		"address", listener.Addr().String(),
		"users", len(topology.Users),
		"rans", len(topology.Rans),
		"edcs", len(topology.Network.DataCenters()),
	)
	if err := server.Serve(ctx, listener); err != nil {
		log.Error("server: error", "error", err)
		return err
	}
	return nil
}

func newEventStore(ctx context.Context, log *slog.Logger, dsn string) (eventlog.Store, error) {
	if dsn == "" {
		log.Info("using in-memory event store")
		return eventlog.NewMemory(), nil
	}
	log.Info("using postgres event store")
	return eventlog.NewPostgres(ctx, log, dsn)
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
