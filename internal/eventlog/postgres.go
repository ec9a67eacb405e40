package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Frixxie/mobile-network-emulator/internal/coreevent"
	"github.com/Frixxie/mobile-network-emulator/internal/edge"
)

// Postgres stores events and usage entries in two tables. Events are keyed
// by fingerprint so replaying a batch is idempotent.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewPostgres connects a pool for the given connection string and ensures
// the schema exists.
func NewPostgres(ctx context.Context, log *slog.Logger, connStr string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{log: log, pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("event store ready", "backend", "postgres")
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mn_events (
			seq BIGSERIAL,
			fingerprint BYTEA PRIMARY KEY,
			kind TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			ts_ms BIGINT NOT NULL,
			body JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create mn_events table: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS mn_events_ts_idx ON mn_events (ts_ms)
	`)
	if err != nil {
		return fmt.Errorf("create mn_events index: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mn_network_log (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			ip_address TEXT NOT NULL,
			time_used_s DOUBLE PRECISION NOT NULL,
			application_id BIGINT NOT NULL,
			timestamp_s BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create mn_network_log table: %w", err)
	}
	return nil
}

func (p *Postgres) AppendEvents(ctx context.Context, events []coreevent.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		fp, err := event.Fingerprint()
		if err != nil {
			return fmt.Errorf("fingerprint event: %w", err)
		}
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		batch.Queue(`
			INSERT INTO mn_events (fingerprint, kind, user_id, ts_ms, body)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (fingerprint) DO NOTHING
		`, fp[:], string(event.Kind), int64(event.UserID), event.Timestamp.UnixMilli(), body)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ScanEvents(ctx context.Context) ([]coreevent.Event, error) {
	rows, err := p.pool.Query(ctx, `SELECT body FROM mn_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	defer rows.Close()

	var events []coreevent.Event
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var event coreevent.Event
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, fmt.Errorf("decode event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func (p *Postgres) AppendUsage(ctx context.Context, entries []edge.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(`
			INSERT INTO mn_network_log (user_id, ip_address, time_used_s, application_id, timestamp_s)
			VALUES ($1, $2, $3, $4, $5)
		`, int64(entry.UserID), entry.IPAddress, entry.TimeUsedSecs, int64(entry.ApplicationID), entry.TimestampSecs)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append usage: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ScanUsage(ctx context.Context) ([]edge.LogEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT user_id, ip_address, time_used_s, application_id, timestamp_s
		FROM mn_network_log ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("scan usage: %w", err)
	}
	defer rows.Close()

	var entries []edge.LogEntry
	for rows.Next() {
		var (
			userID, appID int64
			entry         edge.LogEntry
		)
		if err := rows.Scan(&userID, &entry.IPAddress, &entry.TimeUsedSecs, &appID, &entry.TimestampSecs); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		entry.UserID = uint32(userID)
		entry.ApplicationID = uint32(appID)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan usage: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
