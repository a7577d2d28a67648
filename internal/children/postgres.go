package children

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the child_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS child_profiles (
    id                TEXT PRIMARY KEY,
    parent_id         TEXT NOT NULL,
    name              TEXT NOT NULL,
    age               INT NOT NULL DEFAULT 0,
    gender            TEXT NOT NULL DEFAULT '',
    phonetic_spelling TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_child_profiles_parent ON child_profiles(parent_id);
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
		return fmt.Errorf("children: migrate: %w", err)
	}
	return nil
}

const profileColumns = "id, parent_id, name, age, gender, phonetic_spelling, created_at, updated_at"

// Create inserts a new profile, assigning an ID when the caller left it empty.
func (s *PostgresStore) Create(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO child_profiles (id, parent_id, name, age, gender, phonetic_spelling, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ParentID, p.Name, p.Age, p.Gender, p.PhoneticSpelling, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("children: create %q: %w", p.ID, err)
	}
	return nil
}

// Get returns the profile with the given ID if it belongs to parentID.
func (s *PostgresStore) Get(ctx context.Context, parentID, id string) (*Profile, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM child_profiles WHERE id = $1 AND parent_id = $2",
		id, parentID)

	var p Profile
	err := row.Scan(&p.ID, &p.ParentID, &p.Name, &p.Age, &p.Gender, &p.PhoneticSpelling, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("children: get %q: %w", id, err)
	}
	return &p, nil
}

// List returns all profiles owned by parentID, oldest first.
func (s *PostgresStore) List(ctx context.Context, parentID string) ([]Profile, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+profileColumns+" FROM child_profiles WHERE parent_id = $1 ORDER BY created_at",
		parentID)
	if err != nil {
		return nil, fmt.Errorf("children: list: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.ParentID, &p.Name, &p.Age, &p.Gender, &p.PhoneticSpelling, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("children: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("children: list rows: %w", err)
	}
	return out, nil
}

// Update rewrites the mutable fields of an existing profile owned by p.ParentID.
func (s *PostgresStore) Update(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, `
		UPDATE child_profiles
		SET name = $1, age = $2, gender = $3, phonetic_spelling = $4, updated_at = $5
		WHERE id = $6 AND parent_id = $7`,
		p.Name, p.Age, p.Gender, p.PhoneticSpelling, p.UpdatedAt, p.ID, p.ParentID)
	if err != nil {
		return fmt.Errorf("children: update %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the profile if it belongs to parentID.
func (s *PostgresStore) Delete(ctx context.Context, parentID, id string) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM child_profiles WHERE id = $1 AND parent_id = $2", id, parentID)
	if err != nil {
		return fmt.Errorf("children: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
