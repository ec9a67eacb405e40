package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/Frixxie/mobile-network-emulator/config"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
	"github.com/Frixxie/mobile-network-emulator/internal/orchestrator"
)

var (
	// set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultEmulatorURL = "http://localhost:8080"
	defaultInterval    = 5 * time.Second
	defaultMetricsAddr = ":2113"
	inspectTimeout     = 30 * time.Second
)

type Runner interface {
	Init([]string) error
	Run() error
	Name() string
	Fs() *flag.FlagSet
	Description() string
}

func NewStartCommand() *StartCommand {
	s := &StartCommand{
		fs:          flag.NewFlagSet("start", flag.ExitOnError),
		description: "run the placement control loop against an emulator",
	}
	s.fs.StringVar(&s.emulatorURL, "emulator-url", defaultEmulatorURL, "base url of the emulator control-plane API")
	s.fs.StringVar(&s.eventStore, "event-store", "", "postgres DSN of the shared event store (env: EVENT_STORE_DSN)")
	s.fs.DurationVar(&s.interval, "interval", defaultInterval, "placement iteration interval")
	s.fs.StringVar(&s.strategy, "strategy", orchestrator.StrategyWeighted, "placement strategy: weighted or average")
	s.fs.StringVar(&s.metricsAddr, "metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	s.fs.BoolVar(&s.verbose, "verbose", false, "verbose mode - show debug logs")
	s.fs.BoolVar(&s.showVersion, "version", false, "show version information and exit")
	return s
}

type StartCommand struct {
	fs          *flag.FlagSet
	description string
	emulatorURL string
	eventStore  string
	interval    time.Duration
	strategy    string
	metricsAddr string
	verbose     bool
	showVersion bool
}

func (s *StartCommand) Fs() *flag.FlagSet { return s.fs }

func (s *StartCommand) Name() string { return s.fs.Name() }

func (s *StartCommand) Description() string { return s.description }

func (s *StartCommand) Init(args []string) error { return s.fs.Parse(args) }

func (s *StartCommand) Run() error {
	if s.showVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	log := newLogger(s.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up prometheus metrics server if enabled.
	if s.metricsAddr != "" {
		orchestrator.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", s.metricsAddr)
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

	strategy, err := orchestrator.StrategyByName(s.strategy)
	if err != nil {
		log.Error("failed to resolve placement strategy", "error", err)
		return err
	}

	client, err := orchestrator.NewClient(s.emulatorURL)
	if err != nil {
		log.Error("failed to create emulator client", "error", err)
		return err
	}

	// The event store is written by the emulator process, so the loop
	// only makes sense against a database both processes can reach.
	dsn := config.EventStoreDSN(s.eventStore)
	if dsn == "" {
		log.Error("event store DSN is required (--event-store or EVENT_STORE_DSN)")
		return errors.New("event store DSN is required")
	}
	store, err := eventlog.NewPostgres(ctx, log, dsn)
	if err != nil {
		log.Error("failed to open event store", "error", err)
		return err
	}
	defer store.Close()

	runner, err := orchestrator.NewRunner(log, &orchestrator.RunnerConfig{
		Clock:    clockwork.NewRealClock(),
		Client:   client,
		Store:    store,
		Interval: s.interval,
		Strategy: strategy,
	})
	if err != nil {
		log.Error("failed to create runner", "error", err)
		return err
	}

	errCh := runner.Start(ctx)
	select {
	case err := <-errCh:
		log.Error("runner: error", "error", err)
		return err
	case <-ctx.Done():
		log.Info("context done, stopping")
	}
	return nil
}

func NewInspectCommand() *InspectCommand {
	i := &InspectCommand{
		fs:          flag.NewFlagSet("inspect", flag.ExitOnError),
		description: "dump the current placement and usage totals, then exit",
	}
	i.fs.StringVar(&i.emulatorURL, "emulator-url", defaultEmulatorURL, "base url of the emulator control-plane API")
	return i
}

type InspectCommand struct {
	fs          *flag.FlagSet
	description string
	emulatorURL string
}

func (i *InspectCommand) Fs() *flag.FlagSet { return i.fs }

func (i *InspectCommand) Name() string { return i.fs.Name() }

func (i *InspectCommand) Description() string { return i.description }

func (i *InspectCommand) Init(args []string) error { return i.fs.Parse(args) }

func (i *InspectCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
	defer cancel()

	client, err := orchestrator.NewClient(i.emulatorURL)
	if err != nil {
		return err
	}
	return orchestrator.Inspect(ctx, os.Stdout, client)
}

func root(args []string) error {
	cmds := []Runner{
		NewStartCommand(),
		NewInspectCommand(),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\nUsage:\n\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 0, 3, ' ', 0)
		for _, cmd := range cmds {
			fmt.Fprintf(w, "\t%s\t%s\t\n", cmd.Name(), cmd.Description())
		}
		w.Flush()
	}

	if len(args) < 1 {
		return errors.New("error: you must pass a sub-command")
	}

	subcommand := args[0]

	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:]); err != nil {
				return err
			}
			return cmd.Run()
		}
	}

	return fmt.Errorf("unknown subcommand: %s", subcommand)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := root(os.Args[1:]); err != nil {
		fmt.Println(err)
		flag.Usage()
		os.Exit(1)
	}
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
