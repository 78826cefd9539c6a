package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/ivlev/frameforge/internal/config"
)

// Postgres stores records in a single JSONB table.
type Postgres struct {
	db  *sql.DB
	log zerolog.Logger
}

// ConnectPostgres opens the database, creates the schema and runs the
// migrations.
func ConnectPostgres(ctx context.Context, cfg config.PostgresConfig, log zerolog.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s,public",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DB,
		cfg.SSLMode,
		cfg.Schema,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := pq.QuoteIdentifier(cfg.Schema)
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	p := &Postgres{db: db, log: log}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Str("database", cfg.DB).Str("schema", cfg.Schema).Msg("postgres connection established")
	return p, nil
}

// NewPostgres wraps an already migrated database.
func NewPostgres(db *sql.DB, log zerolog.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

func (p *Postgres) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(collection, created_at)`,
	}

	for i, m := range migrations {
		if _, err := p.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	p.log.Debug().Int("count", len(migrations)).Msg("migrations applied")
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Create(ctx context.Context, rec Record) (Record, error) {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode record: %w", err)
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO records (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`
	if _, err := p.db.ExecContext(ctx, query, rec.Collection, rec.ID, data, now); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return Record{}, fmt.Errorf("record %s/%s already exists", rec.Collection, rec.ID)
		}
		return Record{}, fmt.Errorf("failed to create record: %w", err)
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	return rec, nil
}

func (p *Postgres) Update(ctx context.Context, rec Record) (Record, error) {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode record: %w", err)
	}
	query := `
		UPDATE records
		SET data = $1, updated_at = $2
		WHERE collection = $3 AND id = $4
		RETURNING created_at, updated_at
	`
	err = p.db.QueryRowContext(ctx, query, data, time.Now().UTC(), rec.Collection, rec.ID).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, rec.Collection, rec.ID)
		}
		return Record{}, fmt.Errorf("failed to update record: %w", err)
	}
	return rec, nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func (p *Postgres) GetOne(ctx context.Context, collection, id string) (Record, error) {
	query := `
		SELECT collection, id, data, created_at, updated_at
		FROM records
		WHERE collection = $1 AND id = $2
	`
	rec, err := scanRecord(p.db.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return Record{}, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (p *Postgres) GetFullList(ctx context.Context, collection string) ([]Record, error) {
	query := `
		SELECT collection, id, data, created_at, updated_at
		FROM records
		WHERE collection = $1
		ORDER BY created_at, id
	`
	rows, err := p.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var data []byte
	if err := s.Scan(&rec.Collection, &rec.ID, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}
