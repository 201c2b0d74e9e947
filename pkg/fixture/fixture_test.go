package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/family"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const sample = `{"uuid":"a","batch_id":"b1","type":"request","content":{"method":"GET","uri":"/x","response_status":200,"duration":12},"created_at":"2024-01-15T10:00:00Z","tags":["Auth:1","vip"]}

{"uuid":"b","batch_id":"b1","type":"query","content":{"sql":"SELECT 1","time":0.5},"should_display_on_index":false}
{"type":"log","content":{"level":"info","message":"hi"}}
`

func TestSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := Seed(ctx, s, Decode(ctx, strings.NewReader(sample)))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if stats.Entries != 3 || stats.Tags != 2 {
		t.Errorf("stats = %+v, want 3 entries and 2 tags", stats)
	}

	e, err := s.Find(ctx, "a")
	if err != nil || e == nil {
		t.Fatalf("Find a: %v, %v", e, err)
	}
	if e.Sequence != 1 || e.BatchID == nil || *e.BatchID != "b1" || !e.ShouldDisplayOnIndex {
		t.Errorf("entry a = %+v", e)
	}
	if got := e.CreatedAt.Format("2006-01-02 15:04:05"); got != "2024-01-15 10:00:00" {
		t.Errorf("created_at = %s", got)
	}

	b, err := s.Find(ctx, "b")
	if err != nil || b == nil {
		t.Fatalf("Find b: %v, %v", b, err)
	}
	if b.ShouldDisplayOnIndex {
		t.Error("entry b should be hidden from the index")
	}

	tags, err := s.Tags(ctx, "a")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("tags = %v", tags)
	}

	logs, err := s.Scan(ctx, store.ScanOpts{Where: []store.Predicate{store.Eq(store.FieldType, "log")}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(logs) != 1 || logs[0].UUID == "" {
		t.Errorf("generated uuid missing: %+v", logs)
	}
}

func TestSeedBatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var b strings.Builder
	n := BatchSize + 7
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `{"uuid":"e%04d","type":"cache","content":{"type":"hit","key":"k%d"}}`+"\n", i, i)
	}
	stats, err := Seed(ctx, s, Decode(ctx, strings.NewReader(b.String())))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if stats.Entries != n {
		t.Errorf("Entries = %d, want %d", stats.Entries, n)
	}
	last, err := s.Find(ctx, fmt.Sprintf("e%04d", n-1))
	if err != nil || last == nil {
		t.Fatalf("Find last: %v, %v", last, err)
	}
	if last.Sequence != int64(n) {
		t.Errorf("last sequence = %d, want %d", last.Sequence, n)
	}
}

func TestSeedRejectsBadRecords(t *testing.T) {
	tests := map[string]string{
		"unknown type":   `{"type":"bogus","content":{}}`,
		"array content":  `{"type":"log","content":[1]}`,
		"malformed line": `{"type":`,
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			input := `{"uuid":"ok","type":"log","content":{"level":"info"}}` + "\n" + line + "\n"
			stats, err := Seed(ctx, s, Decode(ctx, strings.NewReader(input)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Errorf("error should name the line: %v", err)
			}
			if stats.Entries != 0 {
				t.Errorf("partial batch written: %+v", stats)
			}
		})
	}
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.ndjson")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ch, err := Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var types []entry.Type
	for res := range ch {
		if res.Err != nil {
			t.Fatalf("record: %v", res.Err)
		}
		types = append(types, res.Value.Type)
	}
	if len(types) != 3 || types[1] != entry.TypeQuery {
		t.Errorf("types = %v", types)
	}
}

func TestReadFileNotFound(t *testing.T) {
	if _, err := Read(context.Background(), "/nonexistent/entries.ndjson"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestSeedWithFamilies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	input := `{"uuid":"q1","type":"query","content":{"sql":"select * from users where id = 1"}}
{"uuid":"q2","type":"query","content":{"sql":"select * from users where id = 2"}}
{"uuid":"q3","type":"query","family_hash":"given","content":{"sql":"select * from users where id = 3"}}
{"uuid":"r1","type":"request","content":{"uri":"/"}}
`
	if _, err := Seed(ctx, s, Decode(ctx, strings.NewReader(input)), WithFamilies(family.NewGrouper())); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	find := func(uuid string) *entry.Entry {
		t.Helper()
		e, err := s.Find(ctx, uuid)
		if err != nil || e == nil {
			t.Fatalf("Find %s: %v, %v", uuid, e, err)
		}
		return e
	}
	q1, q2, q3, r1 := find("q1"), find("q2"), find("q3"), find("r1")
	if q1.FamilyHash == nil || q2.FamilyHash == nil || *q1.FamilyHash != *q2.FamilyHash {
		t.Errorf("similar queries not grouped: %v %v", q1.FamilyHash, q2.FamilyHash)
	}
	if q3.FamilyHash == nil || *q3.FamilyHash != "given" {
		t.Errorf("explicit family_hash overwritten: %v", q3.FamilyHash)
	}
	if r1.FamilyHash != nil {
		t.Errorf("request got a family: %v", *r1.FamilyHash)
	}
}
