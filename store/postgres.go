package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mesherrs "github.com/silentmesh/mesh/errors"
)

// PostgresConfig holds connection parameters for a PostgresEngine.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// PostgresEngine is a durable Engine backed by PostgreSQL, for nodes that
// need the outbox to survive a process restart.
type PostgresEngine struct {
	pool  *pgxpool.Pool
	quota *QuotaManager
}

// NewPostgresEngine connects to the database described by cfg and
// verifies connectivity before returning.
func NewPostgresEngine(ctx context.Context, cfg PostgresConfig) (*PostgresEngine, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresEngine{pool: pool}, nil
}

// SetQuotaManager wires the quota manager consulted by Store.
func (e *PostgresEngine) SetQuotaManager(q *QuotaManager) { e.quota = q }

func (e *PostgresEngine) Store(ctx context.Context, m *Message) error {
	if e.quota != nil {
		if err := e.quota.EnsureRoom(ctx, m.SizeBytes); err != nil {
			if m.IsOwnMessage {
				return mesherrs.ErrMustRetain
			}
			return err
		}
	}

	query := `
		INSERT INTO outbox_messages
			(id, recipient, priority, payload, size_bytes, status, geo_zone,
			 is_own_message, attempts, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := e.pool.Exec(ctx, query,
		m.ID, m.Recipient, uint8(m.Priority), m.Payload, m.SizeBytes, uint8(m.Status),
		m.GeoZone, m.IsOwnMessage, m.Attempts, m.CreatedAt, m.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

func (e *PostgresEngine) Get(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT id, recipient, priority, payload, size_bytes, status, geo_zone,
		       is_own_message, attempts, created_at, expires_at, delivered_at
		FROM outbox_messages WHERE id = $1
	`
	m := &Message{}
	var priority, status uint8
	var deliveredAt *time.Time
	err := e.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Recipient, &priority, &m.Payload, &m.SizeBytes, &status, &m.GeoZone,
		&m.IsOwnMessage, &m.Attempts, &m.CreatedAt, &m.ExpiresAt, &deliveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	m.Priority, m.Status = Priority(priority), Status(status)
	if deliveredAt != nil {
		m.DeliveredAt = *deliveredAt
	}
	return m, nil
}

func (e *PostgresEngine) Delete(ctx context.Context, id string) error {
	result, err := e.pool.Exec(ctx, `DELETE FROM outbox_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message not found: %s", id)
	}
	return nil
}

func (e *PostgresEngine) UpdateStatus(ctx context.Context, id string, status Status) error {
	var err error
	if status == StatusDelivered {
		_, err = e.pool.Exec(ctx,
			`UPDATE outbox_messages SET status = $1, delivered_at = $2 WHERE id = $3`,
			uint8(status), time.Now(), id)
	} else {
		_, err = e.pool.Exec(ctx, `UPDATE outbox_messages SET status = $1 WHERE id = $2`, uint8(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (e *PostgresEngine) RecordAttempt(ctx context.Context, id string) error {
	_, err := e.pool.Exec(ctx, `UPDATE outbox_messages SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

func (e *PostgresEngine) PendingFor(ctx context.Context, recipient string) ([]*Message, error) {
	query := `
		SELECT id, recipient, priority, payload, size_bytes, status, geo_zone,
		       is_own_message, attempts, created_at, expires_at
		FROM outbox_messages
		WHERE recipient = $1 AND status = $2
		ORDER BY created_at ASC
	`
	rows, err := e.pool.Query(ctx, query, recipient, uint8(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var priority, status uint8
		if err := rows.Scan(&m.ID, &m.Recipient, &priority, &m.Payload, &m.SizeBytes, &status,
			&m.GeoZone, &m.IsOwnMessage, &m.Attempts, &m.CreatedAt, &m.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Priority, m.Status = Priority(priority), Status(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (e *PostgresEngine) UsedBytes(ctx context.Context) (int64, error) {
	var total int64
	err := e.pool.QueryRow(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM outbox_messages`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum used bytes: %w", err)
	}
	return total, nil
}

func (e *PostgresEngine) Evictable(ctx context.Context, now time.Time) ([]*Message, error) {
	query := `
		SELECT id, recipient, priority, payload, size_bytes, status, geo_zone,
		       is_own_message, attempts, created_at, expires_at
		FROM outbox_messages
		WHERE NOT is_own_message
		   OR status IN ($1, $2)
		   OR (expires_at IS NOT NULL AND expires_at <= $3)
		ORDER BY
			(expires_at IS NOT NULL AND expires_at <= $3) DESC,
			CASE WHEN expires_at <= $3 THEN expires_at END ASC NULLS LAST,
			priority ASC,
			created_at ASC
	`
	rows, err := e.pool.Query(ctx, query, uint8(StatusDelivered), uint8(StatusExpired), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list evictable messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var priority, status uint8
		if err := rows.Scan(&m.ID, &m.Recipient, &priority, &m.Payload, &m.SizeBytes, &status,
			&m.GeoZone, &m.IsOwnMessage, &m.Attempts, &m.CreatedAt, &m.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Priority, m.Status = Priority(priority), Status(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (e *PostgresEngine) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	result, err := e.pool.Exec(ctx,
		`UPDATE outbox_messages SET status = $1
		 WHERE status IN ($2, $3) AND expires_at IS NOT NULL AND expires_at <= $4`,
		uint8(StatusExpired), uint8(StatusPending), uint8(StatusSent), now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire due messages: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (e *PostgresEngine) Close() error {
	e.pool.Close()
	return nil
}
