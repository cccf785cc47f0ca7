package paperstore

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
// Test helpers — mock DB types
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
		case *[]byte:
			*d = v.([]byte)
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

func (db *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.queryRowFunc(ctx, sql, args...)
}

func (db *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.queryFunc(ctx, sql, args...)
}

func (db *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.execFunc(ctx, sql, args...)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPostgresUpsertNormalizesTopic(t *testing.T) {
	var gotTopics []string
	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if !strings.Contains(sql, "ON CONFLICT (topic, paper_id)") {
				t.Errorf("upsert query missing conflict clause:\n%s", sql)
			}
			gotTopics = append(gotTopics, args[0].(string))
			return pgconn.CommandTag{}, nil
		},
	}
	store := NewPostgresStore(db)

	err := store.Upsert(context.Background(), "Graph Theory", []PaperRecord{
		testRecord("2301.00001", "First"),
		testRecord("2301.00002", "Second"),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(gotTopics) != 2 {
		t.Fatalf("got %d exec calls, want one per record", len(gotTopics))
	}
	for _, topic := range gotTopics {
		if topic != "graph_theory" {
			t.Errorf("stored topic = %q, want graph_theory", topic)
		}
	}
}

func TestPostgresFindNotFound(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "ORDER BY topic") {
				t.Errorf("find query missing topic ordering:\n%s", sql)
			}
			return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	store := NewPostgresStore(db)

	_, err := store.Find(context.Background(), "9999.99999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Find: err = %v, want ErrNotFound", err)
	}
}

func TestPostgresPapers(t *testing.T) {
	rows := &mockRows{data: [][]any{
		{"2301.00001", "First", []byte(`["A. Author"]`), "Sum", "https://arxiv.org/pdf/2301.00001", "2024-01-15"},
		{"2301.00002", "Second", []byte(`["B. Author"]`), "Sum", "https://arxiv.org/pdf/2301.00002", "2024-01-16"},
	}}
	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if args[0] != "quantum" {
				t.Errorf("query topic = %v, want quantum", args[0])
			}
			return rows, nil
		},
	}
	store := NewPostgresStore(db)

	got, err := store.Papers(context.Background(), "Quantum")
	if err != nil {
		t.Fatalf("Papers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].PaperID != "2301.00001" || got[0].Authors[0] != "A. Author" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
}

func TestPostgresPapersEmptyPartition(t *testing.T) {
	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &mockRows{}, nil
		},
	}
	store := NewPostgresStore(db)

	_, err := store.Papers(context.Background(), "nothing here")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Papers on empty partition: err = %v, want ErrNotFound", err)
	}
}
