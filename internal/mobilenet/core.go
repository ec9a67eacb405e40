package mobilenet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
)

// CoreConfig assembles a Core. Users start as orphans; the first tick
// attaches whoever stands inside a cell.
type CoreConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Rans   []*Ran
	Users  []*User
	Pool   *IPPool

	// Seed fixes the walk and sampling randomness. Zero picks a
	// time-based seed.
	Seed int64
}

func (c *CoreConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Pool == nil {
		return errors.New("ip pool is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return nil
}

// Core owns the radio cells, the orphan users and the ip pool, and drives
// the simulation forward one tick at a time. It is not safe for concurrent
// use; the emulator serialises access behind its mobility lock.
type Core struct {
	log     *slog.Logger
	clock   clockwork.Clock
	rng     *rand.Rand
	rans    []*Ran
	orphans []*User
	pool    *IPPool
}

// NewCore builds a Core from the config.
func NewCore(cfg *CoreConfig) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core config: %w", err)
	}
	return &Core{
		log:     cfg.Logger,
		clock:   cfg.Clock,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		rans:    cfg.Rans,
		orphans: cfg.Users,
		pool:    cfg.Pool,
	}, nil
}

// Tick runs one simulation step: attach orphans, advance sessions, report
// motion, sample usage. Each phase's events are appended to the store as a
// single batch, in phase order. An error wrapping ErrInvariant means the
// simulation state can no longer be trusted and the process must stop.
func (c *Core) Tick(ctx context.Context, network *edge.Network, store eventlog.Store) error {
	now := c.clock.Now()

	events, err := c.attachOrphans(now)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		if err := store.AppendEvents(ctx, events); err != nil {
			return fmt.Errorf("append attach events: %w", err)
		}
	}

	if events := c.advanceSessions(now); len(events) > 0 {
		if err := store.AppendEvents(ctx, events); err != nil {
			return fmt.Errorf("append detach events: %w", err)
		}
	}

	if events := c.motionReports(now); len(events) > 0 {
		if err := store.AppendEvents(ctx, events); err != nil {
			return fmt.Errorf("append motion events: %w", err)
		}
	}

	if entries := c.sampleUsage(network, now); len(entries) > 0 {
		if err := store.AppendUsage(ctx, entries); err != nil {
			return fmt.Errorf("append usage entries: %w", err)
		}
	}
	return nil
}

// attachOrphans connects every orphan standing inside a cell: first covering
// cell wins, an ip is drawn from the pool, and EnteringArea plus Created
// events are emitted. An empty pool is an invariant violation.
func (c *Core) attachOrphans(now time.Time) ([]coreevent.Event, error) {
	var events []coreevent.Event
	remaining := c.orphans[:0]
	for _, user := range c.orphans {
		ran := c.findRan(user)
		if ran == nil {
			remaining = append(remaining, user)
			continue
		}
		ip, err := c.pool.Allocate()
		if err != nil {
			return nil, fmt.Errorf("%w: attach user %d: %w", ErrInvariant, user.ID(), err)
		}
		ran.Attach(NewPDUSession(user, ip, ran.ID()))
		c.log.Debug("user attached", "user", user.ID(), "ran", ran.ID(), "ip", ip)
		events = append(events,
			coreevent.NewLocationReporting(user.ID(), ran.ID(), user.Position(), coreevent.LdrEnteringArea, user.Velocity(), now),
			coreevent.NewPdnConnection(user.ID(), coreevent.PdnStatusCreated, ip, now),
		)
	}
	c.orphans = remaining
	return events, nil
}

// advanceSessions steps every user. Sessions whose user left coverage are
// handed over to the first cell that now covers them, silently; with no
// cover left, the session is released, the ip pooled, the user re-orphaned,
// and LeavingArea plus Released events are emitted carrying the source cell.
func (c *Core) advanceSessions(now time.Time) []coreevent.Event {
	for _, user := range c.orphans {
		user.Step(c.rng)
	}

	var events []coreevent.Event
	var released []*User
	for _, ran := range c.rans {
		for _, sess := range ran.Advance(c.rng) {
			if target := c.findRan(sess.User()); target != nil {
				c.log.Info("handover",
					"user", sess.User().ID(),
					"ip", sess.IP(),
					"from", ran.ID(),
					"to", target.ID())
				target.Attach(sess)
				continue
			}
			user, ip := sess.Release()
			c.pool.Free(ip)
			released = append(released, user)
			events = append(events,
				coreevent.NewLocationReporting(user.ID(), ran.ID(), user.Position(), coreevent.LdrLeavingArea, user.Velocity(), now),
				coreevent.NewPdnConnection(user.ID(), coreevent.PdnStatusReleased, ip, now),
			)
		}
	}
	c.orphans = append(c.orphans, released...)
	return events
}

// motionReports emits a Motion report for every attached session.
func (c *Core) motionReports(now time.Time) []coreevent.Event {
	var events []coreevent.Event
	for _, ran := range c.rans {
		for _, sess := range ran.Sessions() {
			user := sess.User()
			events = append(events,
				coreevent.NewLocationReporting(user.ID(), ran.ID(), user.Position(), coreevent.LdrMotion, user.Velocity(), now))
		}
	}
	return events
}

// sampleUsage picks half the attached sessions without replacement, has each
// use one uniformly chosen application, and returns the usage entries.
func (c *Core) sampleUsage(network *edge.Network, now time.Time) []edge.LogEntry {
	sessions := c.connectedSessions()
	sampleCount := len(sessions) / 2
	if sampleCount == 0 {
		return nil
	}
	apps := network.Applications()
	if len(apps) == 0 {
		c.log.Info("no applications hosted, skipping usage sampling")
		return nil
	}

	entries := make([]edge.LogEntry, 0, sampleCount)
	var sumX, sumY float64
	for _, idx := range c.rng.Perm(len(sessions))[:sampleCount] {
		sess := sessions[idx]
		app := apps[c.rng.Intn(len(apps))]
		ran := c.ranByID(sess.RanID())
		if ran == nil {
			// cells own their sessions; a stale ran id cannot happen mid-tick
			continue
		}
		entry, err := network.UseApplication(sess.User().ID(), sess.IP().String(), app.ID, ran.Position(), now)
		if err != nil {
			c.log.Warn("application use failed", "app", app.ID, "user", sess.User().ID(), "error", err)
			continue
		}
		entries = append(entries, entry)
		sumX += sess.User().Position().X()
		sumY += sess.User().Position().Y()
	}
	if len(entries) > 0 {
		c.log.Debug("sampled application usage",
			"sessions", len(entries),
			"avg_x", sumX/float64(len(entries)),
			"avg_y", sumY/float64(len(entries)))
	}
	return entries
}

// findRan returns the first cell covering the user, in cell order.
func (c *Core) findRan(u *User) *Ran {
	for _, ran := range c.rans {
		if ran.Contains(u) {
			return ran
		}
	}
	return nil
}

func (c *Core) ranByID(id uint32) *Ran {
	for _, ran := range c.rans {
		if ran.ID() == id {
			return ran
		}
	}
	return nil
}

func (c *Core) connectedSessions() []*PDUSession {
	var out []*PDUSession
	for _, ran := range c.rans {
		out = append(out, ran.Sessions()...)
	}
	return out
}

// Rans returns the wire form of every cell, in order.
func (c *Core) Rans() []RanInfo {
	out := make([]RanInfo, 0, len(c.rans))
	for _, ran := range c.rans {
		out = append(out, ran.Info())
	}
	return out
}

// ConnectedUsers returns the wire form of every live session: cells in
// order, sessions in insertion order.
func (c *Core) ConnectedUsers() []PDUSessionInfo {
	var out []PDUSessionInfo
	for _, sess := range c.connectedSessions() {
		out = append(out, sess.Info())
	}
	return out
}

// Users returns every user, attached first (cell order), then orphans.
func (c *Core) Users() []UserInfo {
	var out []UserInfo
	for _, sess := range c.connectedSessions() {
		out = append(out, sess.User().Info())
	}
	for _, user := range c.orphans {
		out = append(out, user.Info())
	}
	return out
}
