package overlay

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the overlays table.
const Schema = `
CREATE TABLE IF NOT EXISTS overlays (
	id               TEXT PRIMARY KEY,
	anchor_lat       DOUBLE PRECISION NOT NULL,
	anchor_lng       DOUBLE PRECISION NOT NULL,
	width_meters     DOUBLE PRECISION NOT NULL,
	rotation_degrees DOUBLE PRECISION NOT NULL DEFAULT 0,
	aspect_width     DOUBLE PRECISION NOT NULL,
	aspect_height    DOUBLE PRECISION NOT NULL,
	bucket           TEXT NOT NULL DEFAULT '',
	object_key       TEXT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores overlays in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the overlays table when it is missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create overlays table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*Overlay, error) {
	o := &Overlay{ID: id}
	d := &o.Descriptor
	err := p.pool.QueryRow(ctx, `
		SELECT anchor_lat, anchor_lng, width_meters, rotation_degrees,
		       aspect_width, aspect_height, bucket, object_key
		FROM overlays WHERE id = $1
	`, id).Scan(&d.Anchor.Lat, &d.Anchor.Lng, &d.WidthMeters, &d.RotationDegrees,
		&d.AspectWidth, &d.AspectHeight, &o.Source.Bucket, &o.Source.Key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query overlay %s: %w", id, err)
	}
	return o, nil
}

// Put inserts o or replaces the overlay with the same ID.
func (p *Postgres) Put(ctx context.Context, o Overlay) error {
	if err := o.Validate(); err != nil {
		return err
	}
	d := o.Descriptor
	_, err := p.pool.Exec(ctx, `
		INSERT INTO overlays (id, anchor_lat, anchor_lng, width_meters, rotation_degrees,
		                      aspect_width, aspect_height, bucket, object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			anchor_lat = EXCLUDED.anchor_lat,
			anchor_lng = EXCLUDED.anchor_lng,
			width_meters = EXCLUDED.width_meters,
			rotation_degrees = EXCLUDED.rotation_degrees,
			aspect_width = EXCLUDED.aspect_width,
			aspect_height = EXCLUDED.aspect_height,
			bucket = EXCLUDED.bucket,
			object_key = EXCLUDED.object_key,
			updated_at = now()
	`, o.ID, d.Anchor.Lat, d.Anchor.Lng, d.WidthMeters, d.RotationDegrees,
		d.AspectWidth, d.AspectHeight, o.Source.Bucket, o.Source.Key)
	if err != nil {
		return fmt.Errorf("upsert overlay %s: %w", o.ID, err)
	}
	return nil
}

