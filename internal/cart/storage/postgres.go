package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by Postgres.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	loadSnapshotSQL = `SELECT data FROM cart_snapshots WHERE name = $1`

	saveSnapshotSQL = `
INSERT INTO cart_snapshots (name, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	deleteSnapshotSQL = `DELETE FROM cart_snapshots WHERE name = $1`
)

// Postgres implements Storage on the cart_snapshots table, one JSONB row per name.
type Postgres struct {
	db DBTX
}

var _ Storage = (*Postgres)(nil)

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Load(ctx context.Context, name string) (cart.Snapshot, error) {
	var data []byte
	err := p.db.QueryRow(ctx, loadSnapshotSQL, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.Snapshot{}, carterrors.ErrRecordNotFound
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("load cart snapshot failed: %w", err)
	}
	return decode(data)
}

func (p *Postgres) Save(ctx context.Context, name string, snapshot cart.Snapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return err
	}
	if _, err := p.db.Exec(ctx, saveSnapshotSQL, name, data); err != nil {
		return fmt.Errorf("save cart snapshot failed: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, name string) error {
	if _, err := p.db.Exec(ctx, deleteSnapshotSQL, name); err != nil {
		return fmt.Errorf("delete cart snapshot failed: %w", err)
	}
	return nil
}
