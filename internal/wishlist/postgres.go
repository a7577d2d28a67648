package wishlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the wishlist_items table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS wishlist_items (
    id         TEXT PRIMARY KEY,
    child_id   TEXT NOT NULL,
    name       TEXT NOT NULL,
    quantity   INT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_wishlist_items_child ON wishlist_items(child_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store using the given connection or pool.
// Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("wishlist: migrate: %w", err)
	}
	return nil
}

// Add appends items to the child's list. All items are validated before
// the first insert so a bad batch writes nothing.
func (s *PostgresStore) Add(ctx context.Context, childID string, items []Item) ([]Item, error) {
	now := time.Now().UTC()
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		it.ID = uuid.NewString()
		it.ChildID = childID
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		it.CreatedAt = now
		out = append(out, it)
	}

	for _, it := range out {
		_, err := s.db.Exec(ctx, `
			INSERT INTO wishlist_items (id, child_id, name, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			it.ID, it.ChildID, it.Name, it.Quantity, it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("wishlist: add %q: %w", it.Name, err)
		}
	}
	return out, nil
}

// List returns the child's items, oldest first.
func (s *PostgresStore) List(ctx context.Context, childID string) ([]Item, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, child_id, name, quantity, created_at FROM wishlist_items WHERE child_id = $1 ORDER BY created_at, id",
		childID)
	if err != nil {
		return nil, fmt.Errorf("wishlist: list: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ChildID, &it.Name, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("wishlist: scan: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wishlist: list rows: %w", err)
	}
	return out, nil
}
