// Package querier answers dashboard reads: paginated, faceted entry search,
// single entry lookup with its batch, and filter value catalogs.
package querier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-errors/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strrl/telescope-dashboard/pkg/catalog"
	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

const (
	DefaultPerPage    = 50
	DefaultMaxPerPage = 200
)

// TimeLayout is how created_at is rendered in responses.
const TimeLayout = "2006-01-02 15:04:05"

var tracer = otel.Tracer("github.com/strrl/telescope-dashboard/pkg/querier")

// Config tunes paging and names the route groups.
type Config struct {
	PerPage     int
	MaxPerPage  int
	RouteGroups []catalog.RouteGroup
}

// Querier provides the dashboard's read operations over a store.
type Querier struct {
	store store.Store
	cfg   Config
}

// NewQuerier creates a new Querier backed by the given store. Zero page
// sizes fall back to the defaults.
func NewQuerier(s store.Store, cfg Config) *Querier {
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.MaxPerPage <= 0 {
		cfg.MaxPerPage = DefaultMaxPerPage
	}
	return &Querier{store: s, cfg: cfg}
}

// MaxPerPage is the largest accepted per_page.
func (q *Querier) MaxPerPage() int { return q.cfg.MaxPerPage }

func (q *Querier) env() catalog.Env {
	return catalog.Env{RouteGroups: q.cfg.RouteGroups}
}

// SearchRequest is a search over one entry type. Type-specific facets are
// flattened into the same JSON object.
type SearchRequest struct {
	Type           entry.Type `json:"type"`
	BeforeSequence *int64     `json:"before_sequence,omitempty"`
	PerPage        *int       `json:"per_page,omitempty"`
	SortBy         string     `json:"sort_by,omitempty"`
	SortDirection  string     `json:"sort_direction,omitempty"`
	Offset         *int       `json:"offset,omitempty"`
	DateFrom       string     `json:"date_from,omitempty"`
	DateTo         string     `json:"date_to,omitempty"`
	Content        string     `json:"content,omitempty"`

	catalog.Facets
}

// SortMode is how a search pages through results.
type SortMode int

const (
	// SequenceCursor pages newest-first by sequence using before_sequence.
	SequenceCursor SortMode = iota
	// CustomOffset pages by offset under an arbitrary ordering. Inserts
	// between page requests can shift rows across page boundaries.
	CustomOffset
)

func (m SortMode) String() string {
	if m == CustomOffset {
		return "offset"
	}
	return "cursor"
}

// Mode returns the sort mode selected by sort_by.
func (r *SearchRequest) Mode() SortMode {
	if r.SortBy == "" || r.SortBy == "sequence" {
		return SequenceCursor
	}
	return CustomOffset
}

var sortFields = map[string]store.Field{
	"sequence":         store.FieldSequence,
	"created_at":       store.FieldCreatedAt,
	"content.duration": store.Number("duration"),
	"content.time":     store.Number("time"),
}

// ordering maps sort_by and sort_direction to an ORDER BY. Unrecognized
// columns sort by sequence descending. Other columns are tie-broken by
// sequence in the same direction so offset pages are deterministic.
func (r *SearchRequest) ordering() []store.Order {
	field, ok := sortFields[r.SortBy]
	if r.SortBy == "" {
		field, ok = store.FieldSequence, true
	}
	if !ok {
		return []store.Order{{Field: store.FieldSequence, Desc: true}}
	}
	desc := r.SortDirection != "asc"
	order := []store.Order{{Field: field, Desc: desc}}
	if field != store.FieldSequence {
		order = append(order, store.Order{Field: store.FieldSequence, Desc: desc})
	}
	return order
}

// Page is one page of search results.
type Page struct {
	Entries     []SummaryEntry `json:"entries"`
	HasMore     bool           `json:"has_more"`
	NextCursor  *int64         `json:"next_cursor"`
	TotalOffset *int           `json:"total_offset"`
}

// SummaryEntry is a list row: entry metadata plus summarized content.
type SummaryEntry struct {
	UUID       string          `json:"uuid"`
	Sequence   int64           `json:"sequence"`
	BatchID    *string         `json:"batch_id"`
	Type       entry.Type      `json:"type"`
	FamilyHash *string         `json:"family_hash"`
	Content    catalog.Summary `json:"content"`
	CreatedAt  string          `json:"created_at"`
}

// Search runs a validated, paginated search. Invalid requests return a
// *ValidationError without touching the store.
func (q *Querier) Search(ctx context.Context, req SearchRequest) (*Page, error) {
	if err := req.Validate(q.cfg.MaxPerPage); err != nil {
		return nil, err
	}

	mode := req.Mode()
	ctx, span := tracer.Start(ctx, "querier.Search", trace.WithAttributes(
		attribute.String("entry.type", string(req.Type)),
		attribute.String("sort.mode", mode.String()),
	))
	defer span.End()

	size := q.cfg.PerPage
	if req.PerPage != nil {
		size = *req.PerPage
	}
	size = min(size, q.cfg.MaxPerPage)

	where := []store.Predicate{
		store.Eq(store.FieldType, string(req.Type)),
		store.Eq(store.FieldDisplay, true),
	}
	if mode == SequenceCursor && req.BeforeSequence != nil {
		where = append(where, store.Lt(store.FieldSequence, *req.BeforeSequence))
	}
	if req.DateFrom != "" {
		from, _ := parseDate(req.DateFrom)
		where = append(where, store.Gte(store.FieldCreatedAt, from))
	}
	if req.DateTo != "" {
		to, _ := parseDate(req.DateTo)
		where = append(where, store.Lte(store.FieldCreatedAt, endOfDay(to)))
	}
	if req.Content != "" {
		where = append(where, store.Contains(store.FieldContent, req.Content))
	}
	where = append(where, catalog.Predicates(req.Type, &req.Facets, q.env())...)

	offset := 0
	if mode == CustomOffset && req.Offset != nil {
		offset = *req.Offset
	}

	rows, err := q.store.Scan(ctx, store.ScanOpts{
		Where:   where,
		OrderBy: req.ordering(),
		Offset:  offset,
		Limit:   size + 1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, errors.Errorf("search %s entries: %w", req.Type, err)
	}

	page := &Page{HasMore: len(rows) > size}
	if page.HasMore {
		rows = rows[:size]
	}
	page.Entries = make([]SummaryEntry, len(rows))
	for i, e := range rows {
		page.Entries[i] = summaryEntry(e)
	}

	switch mode {
	case SequenceCursor:
		if page.HasMore && len(rows) > 0 {
			next := rows[len(rows)-1].Sequence
			page.NextCursor = &next
		}
	case CustomOffset:
		total := offset + len(rows)
		page.TotalOffset = &total
	}

	span.SetAttributes(
		attribute.Int("result.count", len(rows)),
		attribute.Bool("result.has_more", page.HasMore),
	)
	return page, nil
}

func summaryEntry(e entry.Entry) SummaryEntry {
	return SummaryEntry{
		UUID:       e.UUID,
		Sequence:   e.Sequence,
		BatchID:    e.BatchID,
		Type:       e.Type,
		FamilyHash: e.FamilyHash,
		Content:    catalog.Summarize(e.Type, e.Content),
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Detail is a full entry with decoded content and tags.
type Detail struct {
	UUID       string          `json:"uuid"`
	Sequence   int64           `json:"sequence"`
	BatchID    *string         `json:"batch_id"`
	Type       entry.Type      `json:"type"`
	FamilyHash *string         `json:"family_hash"`
	Content    json.RawMessage `json:"content"`
	Tags       []string        `json:"tags"`
	CreatedAt  string          `json:"created_at"`
}

// BatchEntry is a sibling of an entry in the same batch.
type BatchEntry struct {
	UUID      string          `json:"uuid"`
	Sequence  int64           `json:"sequence"`
	Type      entry.Type      `json:"type"`
	Content   catalog.Summary `json:"content"`
	CreatedAt string          `json:"created_at"`
}

// BatchDetail is an entry together with its batch siblings.
type BatchDetail struct {
	Entry *Detail      `json:"entry"`
	Batch []BatchEntry `json:"batch"`
}

// Find returns the entry with the given uuid, or nil if there is none.
func (q *Querier) Find(ctx context.Context, uuid string) (*Detail, error) {
	ctx, span := tracer.Start(ctx, "querier.Find", trace.WithAttributes(attribute.String("entry.uuid", uuid)))
	defer span.End()

	e, err := q.store.Find(ctx, uuid)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Errorf("find entry %s: %w", uuid, err)
	}
	if e == nil {
		return nil, nil
	}

	tags, err := q.store.Tags(ctx, uuid)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Errorf("entry %s tags: %w", uuid, err)
	}
	if tags == nil {
		tags = []string{}
	}

	content := e.Content
	if !json.Valid(content) {
		content = json.RawMessage("null")
	}
	return &Detail{
		UUID:       e.UUID,
		Sequence:   e.Sequence,
		BatchID:    e.BatchID,
		Type:       e.Type,
		FamilyHash: e.FamilyHash,
		Content:    content,
		Tags:       tags,
		CreatedAt:  formatTime(e.CreatedAt),
	}, nil
}

// FindWithBatch returns the entry plus the other entries of its batch in
// sequence order, or nil if the entry does not exist.
func (q *Querier) FindWithBatch(ctx context.Context, uuid string) (*BatchDetail, error) {
	d, err := q.Find(ctx, uuid)
	if err != nil || d == nil {
		return nil, err
	}

	out := &BatchDetail{Entry: d, Batch: []BatchEntry{}}
	if d.BatchID == nil || *d.BatchID == "" {
		return out, nil
	}

	siblings, err := q.store.Batch(ctx, *d.BatchID)
	if err != nil {
		return nil, errors.Errorf("batch %s: %w", *d.BatchID, err)
	}
	for _, e := range siblings {
		if e.UUID == uuid {
			continue
		}
		out.Batch = append(out.Batch, BatchEntry{
			UUID:      e.UUID,
			Sequence:  e.Sequence,
			Type:      e.Type,
			Content:   catalog.Summarize(e.Type, e.Content),
			CreatedAt: formatTime(e.CreatedAt),
		})
	}
	return out, nil
}

// FilterValues returns the filter UI values for an entry type name. Unknown
// names yield an empty map.
func (q *Querier) FilterValues(t string) catalog.Values {
	return catalog.FilterValues(entry.Type(t), q.env())
}
