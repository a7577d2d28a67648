package wishlist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Test helpers: mock DB types
// ---------------------------------------------------------------------------

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

func (r *mockRows) Values() ([]any, error) { return nil, nil }

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc  func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func itemRow(id, childID, name string, quantity int) []any {
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	return []any{id, childID, name, quantity, now}
}

// ---------------------------------------------------------------------------
// Validate tests
// ---------------------------------------------------------------------------

func TestItemValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		it      Item
		wantErr bool
	}{
		{name: "valid", it: Item{Name: "bicycle", Quantity: 1}},
		{name: "zero quantity valid", it: Item{Name: "bicycle"}},
		{name: "missing name", it: Item{Quantity: 1}, wantErr: true},
		{name: "blank name", it: Item{Name: "  ", Quantity: 1}, wantErr: true},
		{name: "negative quantity", it: Item{Name: "bicycle", Quantity: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.it.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want it to wrap ErrInvalid", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------------------

func TestStoreAdd(t *testing.T) {
	t.Parallel()

	var inserts int
	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			inserts++
			if args[1] != "c1" {
				t.Errorf("insert child_id = %v, want c1", args[1])
			}
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	store := NewPostgresStore(db)

	out, err := store.Add(context.Background(), "c1", []Item{
		{Name: "bicycle", Quantity: 2},
		{Name: "puppy"},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if inserts != 2 || len(out) != 2 {
		t.Fatalf("inserts = %d, returned = %d, want 2 each", inserts, len(out))
	}
	if out[0].ID == "" || out[1].ID == "" {
		t.Error("items returned without assigned IDs")
	}
	if out[1].Quantity != 1 {
		t.Errorf("default quantity = %d, want 1", out[1].Quantity)
	}
}

func TestStoreAddRejectsBadBatch(t *testing.T) {
	t.Parallel()

	var inserts int
	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			inserts++
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	store := NewPostgresStore(db)

	_, err := store.Add(context.Background(), "c1", []Item{
		{Name: "bicycle"},
		{Name: ""},
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Add() error = %v, want ErrInvalid", err)
	}
	if inserts != 0 {
		t.Errorf("inserts = %d, a bad batch must write nothing", inserts)
	}
}

func TestStoreList(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if args[0] != "c1" {
				t.Errorf("query child_id = %v, want c1", args[0])
			}
			return &mockRows{data: [][]any{
				itemRow("w1", "c1", "bicycle", 1),
				itemRow("w2", "c1", "puppy", 1),
			}}, nil
		},
	}
	store := NewPostgresStore(db)

	out, err := store.List(context.Background(), "c1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(out) != 2 || out[0].Name != "bicycle" || out[1].Name != "puppy" {
		t.Errorf("List() = %+v", out)
	}
}

func TestStoreListEmpty(t *testing.T) {
	t.Parallel()

	store := NewPostgresStore(&mockDB{})
	out, err := store.List(context.Background(), "c1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("List() = %+v, want empty", out)
	}
}
