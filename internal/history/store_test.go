package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &Record{
		RunID:         "run-1",
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		SourcePath:    "rules.yaml",
		Success:       true,
		WarningCount:  2,
		FunctionCount: 3,
		HasFirecrypt:  true,
		DurationMs:    12.5,
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := s.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].RunID != "run-1" || got[0].SourcePath != "rules.yaml" || !got[0].Success {
		t.Errorf("record = %+v, want to match inserted record", got[0])
	}
	if got[0].WarningCount != 2 || got[0].FunctionCount != 3 || !got[0].HasFirecrypt {
		t.Errorf("record = %+v, want counts to round-trip", got[0])
	}
}

func TestQueryFiltersBySourcePathAndSuccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	must := func(r *Record) {
		t.Helper()
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	must(&Record{RunID: "a", Timestamp: time.Now(), SourcePath: "a.yaml", Success: true})
	must(&Record{RunID: "b", Timestamp: time.Now(), SourcePath: "b.yaml", Success: false, Error: "boom"})

	failed := false
	got, err := s.Query(ctx, QueryOptions{Success: &failed})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].RunID != "b" {
		t.Fatalf("got %+v, want only the failed run", got)
	}
	if got[0].Error != "boom" {
		t.Errorf("Error = %q, want %q", got[0].Error, "boom")
	}

	got, err = s.Query(ctx, QueryOptions{SourcePath: "a.yaml"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].RunID != "a" {
		t.Fatalf("got %+v, want only a.yaml's run", got)
	}
}

func TestQueryRejectsUnknownOrderByColumn(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Query(context.Background(), QueryOptions{OrderBy: "source_path; DROP TABLE compile_runs"})
	if err == nil {
		t.Fatal("expected an error for a disallowed ORDER BY column")
	}
}

func TestQueryRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Insert(ctx, &Record{RunID: "r", Timestamp: time.Now(), SourcePath: "x.yaml", Success: true}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	got, err := s.Query(ctx, QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestNullableStringRoundTripsEmptyErrorAsNull(t *testing.T) {
	if nullableString("") != nil {
		t.Error("expected an empty error string to become nil")
	}
	if nullableString("boom") != "boom" {
		t.Error("expected a non-empty error string to pass through unchanged")
	}
}
