package children

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Test helpers: mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

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
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
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

func profileRow(id, parentID, name string, age int) []any {
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	return []any{id, parentID, name, age, "girl", "", now, now}
}

// ---------------------------------------------------------------------------
// Validate tests
// ---------------------------------------------------------------------------

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		p       Profile
		wantErr bool
	}{
		{name: "valid", p: Profile{Name: "Emma", Age: 6}},
		{name: "zero age valid", p: Profile{Name: "Sam"}},
		{name: "missing name", p: Profile{Age: 6}, wantErr: true},
		{name: "blank name", p: Profile{Name: "   ", Age: 6}, wantErr: true},
		{name: "negative age", p: Profile{Name: "Emma", Age: -1}, wantErr: true},
		{name: "adult age", p: Profile{Name: "Emma", Age: 19}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want it to wrap ErrInvalid", err)
			}
		})
	}
}

func TestProfileSpokenName(t *testing.T) {
	t.Parallel()

	p := Profile{Name: "Ciara", PhoneticSpelling: "Kee-rah"}
	if got := p.SpokenName(); got != "Kee-rah" {
		t.Errorf("SpokenName() = %q, want the phonetic spelling", got)
	}
	p.PhoneticSpelling = ""
	if got := p.SpokenName(); got != "Ciara" {
		t.Errorf("SpokenName() = %q, want the written name", got)
	}
}

// ---------------------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------------------

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if strings.HasPrefix(strings.TrimSpace(sql), "INSERT") {
				gotArgs = args
			}
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	s := NewPostgresStore(db)

	p := Profile{ParentID: "p1", Name: "Emma", Age: 6}
	if err := s.Create(context.Background(), &p); err != nil {
		t.Fatal(err)
	}
	if p.ID == "" {
		t.Error("Create did not assign an ID")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("Create did not stamp timestamps")
	}
	if len(gotArgs) != 8 {
		t.Fatalf("insert args = %d, want 8", len(gotArgs))
	}
	if gotArgs[1] != "p1" {
		t.Errorf("parent arg = %v, want p1", gotArgs[1])
	}
}

func TestCreateRejectsInvalidProfile(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			t.Error("invalid profile reached the database")
			return pgconn.CommandTag{}, nil
		},
	}
	s := NewPostgresStore(db)

	if err := s.Create(context.Background(), &Profile{ParentID: "p1", Age: 6}); err == nil {
		t.Fatal("Create accepted a profile without a name")
	}
}

func TestGetScopesByParent(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			if len(args) != 2 || args[0] != "c1" || args[1] != "p1" {
				t.Errorf("query args = %v, want [c1 p1]", args)
			}
			row := profileRow("c1", "p1", "Emma", 6)
			return &mockRow{scanFunc: func(dest ...any) error {
				return (&mockRows{data: [][]any{row}, idx: 1}).Scan(dest...)
			}}
		},
	}
	s := NewPostgresStore(db)

	p, err := s.Get(context.Background(), "p1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Emma" || p.Age != 6 {
		t.Errorf("got %+v", p)
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	s := NewPostgresStore(&mockDB{})
	if _, err := s.Get(context.Background(), "p1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListReturnsAllForParent(t *testing.T) {
	t.Parallel()

	rows := &mockRows{data: [][]any{
		profileRow("c1", "p1", "Emma", 6),
		profileRow("c2", "p1", "Liam", 9),
	}}
	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return rows, nil
		},
	}
	s := NewPostgresStore(db)

	list, err := s.List(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Name != "Emma" || list[1].Name != "Liam" {
		t.Errorf("got %+v", list)
	}
	if !rows.closed {
		t.Error("rows were not closed")
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	s := NewPostgresStore(db)

	p := Profile{ID: "c9", ParentID: "p1", Name: "Emma", Age: 6}
	if err := s.Update(context.Background(), &p); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	s := NewPostgresStore(db)

	if err := s.Delete(context.Background(), "p1", "c9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
