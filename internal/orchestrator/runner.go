package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
)

// Boot-time retry against an emulator that is still coming up.
const (
	bootRetryInterval = time.Second
	bootMaxRetries    = 30
)

type RunnerConfig struct {
	Clock    clockwork.Clock
	Client   *Client
	Store    eventlog.Store
	Interval time.Duration
	Strategy Strategy
}

func (cfg *RunnerConfig) Validate() error {
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.Client == nil {
		return errors.New("client is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Interval <= 0 {
		return errors.New("interval must be greater than 0")
	}
	if cfg.Strategy == nil {
		return errors.New("strategy is required")
	}
	return nil
}

// hostedApp remembers where an application ran and what its access log
// looked like when last observed.
type hostedApp struct {
	edcID uint32
	app   edge.Application
}

// Runner re-evaluates application placement every interval. The baseline
// snapshot is always the previous pre-move observation, so accesses
// recorded at a new host are diffed against an empty log and a migration
// is not repeated until fresh traffic justifies it.
type Runner struct {
	log *slog.Logger
	cfg *RunnerConfig

	dcs      []edge.DataCenterInfo
	baseline map[uint32]hostedApp
}

func NewRunner(log *slog.Logger, cfg *RunnerConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{log: log, cfg: cfg}, nil
}

func (r *Runner) Start(ctx context.Context) <-chan error {
	errCh := make(chan error)
	go func() {
		err := r.Run(ctx)
		if err != nil {
			select {
			case errCh <- err:
			default:
				r.log.Error("runner: error channel is full, skipping error", "error", err)
			}
		}
		close(errCh)
	}()
	return errCh
}

// Run waits for the emulator, takes the initial placement snapshot, then
// re-evaluates placement every interval until the context is done.
func (r *Runner) Run(ctx context.Context) error {
	dcs, err := r.cfg.Client.WaitForDataCenters(ctx, r.log, bootRetryInterval, bootMaxRetries)
	if err != nil {
		r.log.Error("runner: emulator never became reachable", "error", err)
		return err
	}
	if len(dcs) == 0 {
		return errors.New("emulator reports no edge data centers")
	}
	r.dcs = dcs

	baseline, err := r.snapshot(ctx)
	if err != nil {
		r.log.Error("runner: initial snapshot failed", "error", err)
		return err
	}
	r.baseline = baseline

	r.log.Info("runner: starting",
		"interval", r.cfg.Interval,
		"edcs", len(r.dcs),
		"applications", len(r.baseline))

	ticker := r.cfg.Clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("runner: context done, stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.tick(ctx)
		}
	}
}

// tick runs one placement iteration. Failures are logged and counted; the
// loop never aborts on them.
func (r *Runner) tick(ctx context.Context) {
	startedAt := r.cfg.Clock.Now()
	defer func() {
		IterationDuration.Observe(time.Since(startedAt).Seconds())
	}()

	snapshot, err := r.snapshot(ctx)
	if err != nil {
		r.log.Error("runner: failed to snapshot applications", "error", err)
		IterationsTotal.WithLabelValues("snapshot_err").Inc()
		return
	}

	events, err := r.cfg.Store.ScanEvents(ctx)
	if err != nil {
		r.log.Error("runner: failed to scan events", "error", err)
		IterationsTotal.WithLabelValues("events_err").Inc()
		return
	}

	moved := 0
	for _, appID := range slices.Sorted(maps.Keys(r.baseline)) {
		prev := r.baseline[appID]
		current, ok := snapshot[appID]
		if !ok {
			// Removed behind our back; the snapshot commit below drops it.
			r.log.Warn("runner: application vanished from emulator", "app", appID)
			continue
		}
		if r.placeApplication(ctx, appID, prev, current, events) {
			moved++
		}
	}

	// The pre-move snapshot becomes the next baseline.
	r.baseline = snapshot
	if moved > 0 {
		ApplicationsMovedTotal.Add(float64(moved))
	}
	IterationsTotal.WithLabelValues("ok").Inc()
	r.log.Info("runner: iteration complete", "applications", len(snapshot), "moved", moved)
}

// snapshot fetches every data center's applications, keyed by application
// id with the hosting data center attached.
func (r *Runner) snapshot(ctx context.Context) (map[uint32]hostedApp, error) {
	out := make(map[uint32]hostedApp)
	for _, dc := range r.dcs {
		apps, err := r.cfg.Client.Applications(ctx, dc.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch applications of edc %d: %w", dc.ID, err)
		}
		for _, app := range apps {
			out[app.ID] = hostedApp{edcID: dc.ID, app: app}
		}
	}
	return out, nil
}

// placeApplication diffs one application's access log against its previous
// observation, resolves the users behind the fresh accesses, and migrates
// the application to the data center nearest the suggested position.
// Reports whether a migration was committed.
func (r *Runner) placeApplication(ctx context.Context, appID uint32, prev, current hostedApp, events []coreevent.Event) bool {
	diff := current.app.Diff(&prev.app)

	var samples []Sample
	for _, ip := range slices.Sorted(maps.Keys(diff.Accesses)) {
		fresh := diff.Accesses[ip]
		if len(fresh) == 0 {
			continue
		}
		last := time.UnixMilli(slices.Max(fresh)).UTC()
		userID, ok := userForIP(events, ip, last)
		if !ok {
			r.log.Warn("runner: no user resolved for ip", "app", appID, "ip", ip)
			continue
		}
		pos, ok := latestPosition(events, userID)
		if !ok {
			r.log.Warn("runner: no position reported for user", "app", appID, "user", userID)
			continue
		}
		r.log.Debug("runner: resolved usage",
			"app", appID,
			"ip", ip,
			"user", userID,
			"x", pos.X(),
			"y", pos.Y(),
			"accesses", len(fresh))
		samples = append(samples, Sample{Point: pos, Weight: len(fresh)})
	}
	if len(samples) == 0 {
		return false
	}

	suggested, ok := r.cfg.Strategy(samples)
	if !ok {
		return false
	}
	target, ok := nearestDataCenter(suggested, r.dcs)
	if !ok || target == current.edcID {
		return false
	}

	r.log.Info("runner: moving application",
		"app", appID,
		"from", current.edcID,
		"to", target,
		"suggestedX", suggested.X(),
		"suggestedY", suggested.Y())

	if err := r.cfg.Client.RemoveApplication(ctx, current.edcID, appID); err != nil {
		r.log.Error("runner: failed to remove application", "app", appID, "edc", current.edcID, "error", err)
		MoveErrorsTotal.Inc()
		return false
	}
	if err := r.cfg.Client.AddApplication(ctx, target, appID); err != nil {
		// Hosted nowhere now; the next snapshot drops it from the baseline.
		r.log.Error("runner: failed to add application", "app", appID, "edc", target, "error", err)
		MoveErrorsTotal.Inc()
		return false
	}
	return true
}
