package seclog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists security events to PostgreSQL for long-term SIEM queries
type PGStore struct {
	pool     *pgxpool.Pool
	inserted int64
}

// NewPGStore creates a PostgreSQL-backed security event store
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// migrate creates the events table if it doesn't exist
func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS security_events (
			id             UUID PRIMARY KEY,
			ts             TIMESTAMPTZ NOT NULL,
			severity       TEXT NOT NULL,
			event_type     TEXT,
			message        TEXT NOT NULL,
			source_network TEXT,
			source_address TEXT,
			device         TEXT,
			protocol       TEXT,
			port           INTEGER,
			session_id     TEXT,
			data           JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_security_events_ts ON security_events (ts);
		CREATE INDEX IF NOT EXISTS idx_security_events_severity ON security_events (severity);
	`)
	return err
}

// Log inserts a security event
func (s *PGStore) Log(event *Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	var data []byte
	if event.Data != nil {
		var err error
		data, err = json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_events
			(id, ts, severity, event_type, message, source_network, source_address, device, protocol, port, session_id, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Timestamp, string(event.Severity), string(event.Type), event.Message,
		event.SourceNetwork, event.SourceAddress, event.Device, event.Protocol, event.Port,
		event.SessionID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	atomic.AddInt64(&s.inserted, 1)
	return nil
}

// EventCount returns the number of events inserted by this process
func (s *PGStore) EventCount() int64 {
	return atomic.LoadInt64(&s.inserted)
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
