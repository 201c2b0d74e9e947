package querier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/strrl/telescope-dashboard/pkg/catalog"
	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.DriverDuckDB, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setupQuerier(t *testing.T, entries ...entry.Entry) (*Querier, *store.SQLStore) {
	t.Helper()
	s := newTestStore(t)
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		}
	}
	if len(entries) > 0 {
		if err := s.InsertEntries(context.Background(), entries); err != nil {
			t.Fatalf("InsertEntries: %v", err)
		}
	}
	q := NewQuerier(s, Config{
		PerPage:    50,
		MaxPerPage: 200,
		RouteGroups: []catalog.RouteGroup{
			{Name: "api", Pattern: "/api/v*"},
			{Name: "web", Pattern: "/*"},
		},
	})
	return q, s
}

func mk(uuid string, typ entry.Type, content map[string]any) entry.Entry {
	raw, _ := json.Marshal(content)
	return entry.Entry{UUID: uuid, Type: typ, Content: raw, ShouldDisplayOnIndex: true}
}

func req(uuid, method, uri string, status int, duration float64) entry.Entry {
	return mk(uuid, entry.TypeRequest, map[string]any{
		"method":          method,
		"uri":             uri,
		"response_status": status,
		"duration":        duration,
		"user":            map[string]any{"email": uuid + "@example.com"},
	})
}

func requests(n int) []entry.Entry {
	out := make([]entry.Entry, n)
	for i := range out {
		out[i] = req(fmt.Sprintf("r%02d", i), "GET", "/x", 200, float64(i))
	}
	return out
}

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

func uuidsOf(p *Page) []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.UUID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchCursorPaging(t *testing.T) {
	q, _ := setupQuerier(t, requests(5)...)
	ctx := context.Background()

	var (
		seen   []string
		cursor *int64
		pages  int
	)
	for {
		page, err := q.Search(ctx, SearchRequest{Type: entry.TypeRequest, PerPage: intp(2), BeforeSequence: cursor})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		pages++
		if len(page.Entries) > 2 {
			t.Fatalf("page %d: got %d entries, want at most 2", pages, len(page.Entries))
		}
		if page.TotalOffset != nil {
			t.Errorf("page %d: total_offset should be null in cursor mode", pages)
		}
		seen = append(seen, uuidsOf(page)...)
		if !page.HasMore {
			if page.NextCursor != nil {
				t.Errorf("last page: next_cursor should be null, got %d", *page.NextCursor)
			}
			break
		}
		if page.NextCursor == nil {
			t.Fatalf("page %d: has_more without next_cursor", pages)
		}
		if got := page.Entries[len(page.Entries)-1].Sequence; got != *page.NextCursor {
			t.Errorf("next_cursor: got %d, want last sequence %d", *page.NextCursor, got)
		}
		cursor = page.NextCursor
	}

	want := []string{"r04", "r03", "r02", "r01", "r00"}
	if !equal(seen, want) {
		t.Errorf("traversal: got %v, want %v", seen, want)
	}
	if pages != 3 {
		t.Errorf("pages: got %d, want 3", pages)
	}
}

func TestSearchCursorStableUnderAppends(t *testing.T) {
	q, s := setupQuerier(t, requests(4)...)
	ctx := context.Background()

	first, err := q.Search(ctx, SearchRequest{Type: entry.TypeRequest, PerPage: intp(2)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := s.InsertEntries(ctx, []entry.Entry{req("late", "GET", "/x", 200, 1)}); err != nil {
		t.Fatalf("InsertEntries: %v", err)
	}
	second, err := q.Search(ctx, SearchRequest{Type: entry.TypeRequest, PerPage: intp(2), BeforeSequence: first.NextCursor})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := uuidsOf(second), []string{"r01", "r00"}; !equal(got, want) {
		t.Errorf("second page: got %v, want %v", got, want)
	}
}

func TestSearchExactPageHasNoMore(t *testing.T) {
	q, _ := setupQuerier(t, requests(2)...)
	page, err := q.Search(context.Background(), SearchRequest{Type: entry.TypeRequest, PerPage: intp(2)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.HasMore || page.NextCursor != nil {
		t.Errorf("got has_more=%v next_cursor=%v, want false/nil", page.HasMore, page.NextCursor)
	}
	if len(page.Entries) != 2 {
		t.Errorf("entries: got %d, want 2", len(page.Entries))
	}
}

func TestSearchOffsetPaging(t *testing.T) {
	q, _ := setupQuerier(t, requests(5)...)
	ctx := context.Background()

	var seen []string
	offset := 0
	for {
		page, err := q.Search(ctx, SearchRequest{
			Type:          entry.TypeRequest,
			PerPage:       intp(2),
			SortBy:        "content.duration",
			SortDirection: "asc",
			Offset:        intp(offset),
			// ignored outside cursor mode
			BeforeSequence: int64p(1),
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if page.NextCursor != nil {
			t.Errorf("next_cursor should be null in offset mode")
		}
		if page.TotalOffset == nil || *page.TotalOffset != offset+len(page.Entries) {
			t.Fatalf("total_offset: got %v, want %d", page.TotalOffset, offset+len(page.Entries))
		}
		seen = append(seen, uuidsOf(page)...)
		offset = *page.TotalOffset
		if !page.HasMore {
			break
		}
	}
	want := []string{"r00", "r01", "r02", "r03", "r04"}
	if !equal(seen, want) {
		t.Errorf("traversal: got %v, want %v", seen, want)
	}
}

func TestSearchCursorModeIgnoresOffset(t *testing.T) {
	q, _ := setupQuerier(t, requests(3)...)
	page, err := q.Search(context.Background(), SearchRequest{Type: entry.TypeRequest, Offset: intp(2)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Entries) != 3 {
		t.Errorf("entries: got %d, want 3", len(page.Entries))
	}
}

func TestSearchPerPageDefaults(t *testing.T) {
	s := newTestStore(t)
	if err := s.InsertEntries(context.Background(), requests(4)); err != nil {
		t.Fatalf("InsertEntries: %v", err)
	}
	q := NewQuerier(s, Config{PerPage: 3, MaxPerPage: 200})
	page, err := q.Search(context.Background(), SearchRequest{Type: entry.TypeRequest})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Entries) != 3 || !page.HasMore {
		t.Errorf("got %d entries has_more=%v, want 3/true", len(page.Entries), page.HasMore)
	}
}

func TestSearchBasePredicate(t *testing.T) {
	hidden := req("hidden", "GET", "/x", 200, 1)
	hidden.ShouldDisplayOnIndex = false
	q, _ := setupQuerier(t,
		req("shown", "GET", "/x", 200, 1),
		hidden,
		mk("query", entry.TypeQuery, map[string]any{"sql": "SELECT 1", "time": 1}),
	)
	page, err := q.Search(context.Background(), SearchRequest{Type: entry.TypeRequest})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := uuidsOf(page); !equal(got, []string{"shown"}) {
		t.Errorf("got %v, want [shown]", got)
	}
}

func TestSearchDateRange(t *testing.T) {
	entries := []entry.Entry{
		req("before", "GET", "/x", 200, 1),
		req("first", "GET", "/x", 200, 1),
		req("last", "GET", "/x", 200, 1),
		req("after", "GET", "/x", 200, 1),
	}
	entries[0].CreatedAt = time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC)
	entries[1].CreatedAt = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	entries[2].CreatedAt = time.Date(2024, 1, 16, 23, 59, 59, 0, time.UTC)
	entries[3].CreatedAt = time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
	q, _ := setupQuerier(t, entries...)

	page, err := q.Search(context.Background(), SearchRequest{
		Type:     entry.TypeRequest,
		DateFrom: "2024-01-15",
		DateTo:   "2024-01-16",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := uuidsOf(page), []string{"last", "first"}; !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSearchFacets(t *testing.T) {
	q, _ := setupQuerier(t,
		req("ok", "GET", "/api/v1/users", 200, 10),
		req("missing", "POST", "/api/v1/orders", 404, 250),
		req("broken", "GET", "/home", 500, 900),
		mk("slow", entry.TypeQuery, map[string]any{"sql": "SELECT * FROM users", "time": 150.5}),
		mk("fast", entry.TypeQuery, map[string]any{"sql": "update users set x = 1", "time": 3}),
		mk("cmd0", entry.TypeCommand, map[string]any{"command": "migrate", "exit_code": 0}),
		mk("cmd1", entry.TypeCommand, map[string]any{"command": "migrate", "exit_code": 1}),
		mk("mail", entry.TypeMail, map[string]any{"mailable": "App\\Mail\\Welcome", "to": []any{map[string]any{"address": "Jane@Example.com"}}}),
	)

	tests := []struct {
		name string
		req  SearchRequest
		want []string
	}{
		{"status class", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{Statuses: []string{"4xx"}}}, []string{"missing"}},
		{"status list", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{Statuses: []string{"200", "5xx"}}}, []string{"broken", "ok"}},
		{"methods", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{Methods: []string{"POST"}}}, []string{"missing"}},
		{"route group", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{RouteGroup: "api"}}, []string{"missing", "ok"}},
		{"unknown route group", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{RouteGroup: "nope"}}, []string{"broken", "missing", "ok"}},
		{"min duration", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{MinDuration: 250}}, []string{"broken", "missing"}},
		{"user email", SearchRequest{Type: entry.TypeRequest, Facets: catalog.Facets{UserEmail: "BROKEN@"}}, []string{"broken"}},
		{"content", SearchRequest{Type: entry.TypeRequest, Content: "orders"}, []string{"missing"}},
		{"slow query", SearchRequest{Type: entry.TypeQuery, Facets: catalog.Facets{SlowQuery: true}}, []string{"slow"}},
		{"query type", SearchRequest{Type: entry.TypeQuery, Facets: catalog.Facets{QueryType: "select"}}, []string{"slow"}},
		{"exit code zero", SearchRequest{Type: entry.TypeCommand, Facets: catalog.Facets{ExitCode: intp(0)}}, []string{"cmd0"}},
		{"mail to", SearchRequest{Type: entry.TypeMail, Facets: catalog.Facets{MailTo: "jane@example"}}, []string{"mail"}},
		{"other type facets ignored", SearchRequest{Type: entry.TypeQuery, Facets: catalog.Facets{Methods: []string{"POST"}}}, []string{"fast", "slow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := q.Search(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := uuidsOf(page); !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchSummarizesContent(t *testing.T) {
	q, _ := setupQuerier(t, mk("a", entry.TypeRequest, map[string]any{"method": "GET", "uri": "/x", "response_status": 200}))
	page, err := q.Search(context.Background(), SearchRequest{Type: entry.TypeRequest})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got, err := json.Marshal(page.Entries[0].Content)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"method":"GET","uri":"/x","response_status":200,"duration":null,"memory":null,"controller_action":null,"user":null,"ip_address":null}`
	if string(got) != want {
		t.Errorf("summary:\n got %s\nwant %s", got, want)
	}
	if page.Entries[0].CreatedAt != "2024-01-15 10:00:00" {
		t.Errorf("created_at: got %q", page.Entries[0].CreatedAt)
	}
}

type failingStore struct {
	store.Store
	scans int
}

func (f *failingStore) Scan(context.Context, store.ScanOpts) ([]entry.Entry, error) {
	f.scans++
	return nil, errors.New("connection lost")
}

func TestSearchValidationNeverReachesStore(t *testing.T) {
	fs := &failingStore{}
	q := NewQuerier(fs, Config{})

	_, err := q.Search(context.Background(), SearchRequest{Type: "bogus"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Errors["type"]; !ok {
		t.Errorf("expected a type error, got %v", verr.Errors)
	}
	if fs.scans != 0 {
		t.Errorf("store scanned %d times, want 0", fs.scans)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	q := NewQuerier(&failingStore{}, Config{})
	_, err := q.Search(context.Background(), SearchRequest{Type: entry.TypeLog})
	if err == nil {
		t.Fatal("expected error")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Errorf("store failure reported as validation error: %v", err)
	}
}

func TestFind(t *testing.T) {
	q, s := setupQuerier(t, req("a", "GET", "/x", 200, 1))
	ctx := context.Background()
	if err := s.InsertTags(ctx, []entry.Tag{{EntryUUID: "a", Tag: "vip"}, {EntryUUID: "a", Tag: "Auth:1"}}); err != nil {
		t.Fatalf("InsertTags: %v", err)
	}

	d, err := q.Find(ctx, "a")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if d == nil {
		t.Fatal("expected entry")
	}
	if !equal(d.Tags, []string{"Auth:1", "vip"}) {
		t.Errorf("tags: got %v", d.Tags)
	}
	var content map[string]any
	if err := json.Unmarshal(d.Content, &content); err != nil {
		t.Fatalf("content: %v", err)
	}
	if content["uri"] != "/x" {
		t.Errorf("content uri: got %v", content["uri"])
	}

	d, err = q.Find(ctx, "missing")
	if err != nil {
		t.Fatalf("Find missing: %v", err)
	}
	if d != nil {
		t.Errorf("expected nil for missing entry, got %+v", d)
	}
}

func TestFindWithBatch(t *testing.T) {
	batch := "b1"
	other := "b2"
	entries := []entry.Entry{
		req("a", "GET", "/x", 200, 1),
		mk("q1", entry.TypeQuery, map[string]any{"sql": "SELECT 1", "time": 1}),
		mk("q2", entry.TypeQuery, map[string]any{"sql": "SELECT 2", "time": 1}),
		mk("x", entry.TypeLog, map[string]any{"level": "info", "message": "elsewhere"}),
		req("alone", "GET", "/y", 200, 1),
	}
	entries[0].BatchID = &batch
	entries[1].BatchID = &batch
	entries[2].BatchID = &batch
	entries[3].BatchID = &other
	q, _ := setupQuerier(t, entries...)
	ctx := context.Background()

	d, err := q.FindWithBatch(ctx, "a")
	if err != nil {
		t.Fatalf("FindWithBatch: %v", err)
	}
	if d.Entry.UUID != "a" {
		t.Errorf("entry: got %s", d.Entry.UUID)
	}
	var got []string
	for _, b := range d.Batch {
		got = append(got, b.UUID)
	}
	if !equal(got, []string{"q1", "q2"}) {
		t.Errorf("batch: got %v, want [q1 q2]", got)
	}
	if string(d.Batch[0].Content.Get("sql")) != `"SELECT 1"` {
		t.Errorf("batch summary sql: got %s", d.Batch[0].Content.Get("sql"))
	}

	d, err = q.FindWithBatch(ctx, "alone")
	if err != nil {
		t.Fatalf("FindWithBatch alone: %v", err)
	}
	if d.Batch == nil || len(d.Batch) != 0 {
		t.Errorf("batch without batch_id: got %v, want []", d.Batch)
	}

	d, err = q.FindWithBatch(ctx, "missing")
	if err != nil || d != nil {
		t.Errorf("missing: got %v, %v; want nil, nil", d, err)
	}
}

func TestFilterValues(t *testing.T) {
	q, _ := setupQuerier(t)
	v := q.FilterValues("request")
	if !equal(v["route_groups"], []string{"api", "web"}) {
		t.Errorf("route_groups: got %v", v["route_groups"])
	}
	if len(q.FilterValues("dump")) != 0 {
		t.Errorf("dump: expected no values")
	}
	if len(q.FilterValues("nope")) != 0 {
		t.Errorf("unknown type: expected no values")
	}
}
