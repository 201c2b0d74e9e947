// Package fixture loads newline-delimited JSON entry records into a store.
// It exists for local development and tests; Telescope itself writes the
// production tables.
package fixture

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/family"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

// BatchSize is how many records are written per transaction.
const BatchSize = 500

const maxLineSize = 16 << 20

// Record is one NDJSON line.
type Record struct {
	UUID                 string          `json:"uuid"`
	BatchID              *string         `json:"batch_id"`
	FamilyHash           *string         `json:"family_hash"`
	Type                 entry.Type      `json:"type"`
	Content              json.RawMessage `json:"content"`
	ShouldDisplayOnIndex *bool           `json:"should_display_on_index"`
	CreatedAt            *time.Time      `json:"created_at"`
	Tags                 []string        `json:"tags"`
}

// Result wraps either a successfully read value or a read error,
// similar to Result<T, E> in Rust.
type Result[T any] struct {
	Value T
	Err   error
}

// Read streams records from the file at path, or stdin if path is "-".
// Cancel the context to stop reading early; the goroutine will exit promptly.
func Read(ctx context.Context, path string) (<-chan Result[*Record], error) {
	var r io.ReadCloser = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Errorf("open fixture file: %w", err)
		}
		r = f
	}
	ch := make(chan Result[*Record], 100)
	go func() {
		defer close(ch)
		if path != "-" {
			defer func() { _ = r.Close() }()
		}
		decode(ctx, r, ch)
	}()
	return ch, nil
}

// Decode streams records from r.
func Decode(ctx context.Context, r io.Reader) <-chan Result[*Record] {
	ch := make(chan Result[*Record], 100)
	go func() {
		defer close(ch)
		decode(ctx, r, ch)
	}()
	return ch
}

func decode(ctx context.Context, r io.Reader, ch chan<- Result[*Record]) {
	send := func(res Result[*Record]) bool {
		select {
		case ch <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := parse(line)
		if err != nil {
			send(Result[*Record]{Err: errors.Errorf("line %d: %w", lineNum, err)})
			return
		}
		if !send(Result[*Record]{Value: rec}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(Result[*Record]{Err: errors.Errorf("read fixture: %w", err)})
	}
}

func parse(line []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, errors.Errorf("decode record: %w", err)
	}
	if !rec.Type.Valid() {
		return nil, errors.Errorf("unknown entry type %q", rec.Type)
	}
	if !gjson.ValidBytes(rec.Content) || !gjson.ParseBytes(rec.Content).IsObject() {
		return nil, errors.Errorf("content must be a JSON object")
	}
	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	}
	return &rec, nil
}

// Entry converts the record, applying defaults. now fills a missing
// created_at.
func (r *Record) Entry(now time.Time) entry.Entry {
	display := true
	if r.ShouldDisplayOnIndex != nil {
		display = *r.ShouldDisplayOnIndex
	}
	created := now
	if r.CreatedAt != nil {
		created = *r.CreatedAt
	}
	return entry.Entry{
		UUID:                 r.UUID,
		BatchID:              r.BatchID,
		FamilyHash:           r.FamilyHash,
		Type:                 r.Type,
		Content:              r.Content,
		ShouldDisplayOnIndex: display,
		CreatedAt:            created.UTC(),
	}
}

// Stats counts what Seed wrote.
type Stats struct {
	Entries int
	Tags    int
}

// Option configures Seed.
type Option func(*seedOptions)

type seedOptions struct {
	grouper *family.Grouper
}

// WithFamilies fills family_hash for records that lack one.
func WithFamilies(g *family.Grouper) Option {
	return func(o *seedOptions) { o.grouper = g }
}

// Seed drains records into l in batches of BatchSize. It stops at the first
// read or write error; batches already written stay written.
func Seed(ctx context.Context, l store.Loader, records <-chan Result[*Record], opts ...Option) (Stats, error) {
	var o seedOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		stats   Stats
		entries []entry.Entry
		tags    []entry.Tag
	)
	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		if err := l.InsertEntries(ctx, entries); err != nil {
			return errors.Errorf("insert entries: %w", err)
		}
		if len(tags) > 0 {
			if err := l.InsertTags(ctx, tags); err != nil {
				return errors.Errorf("insert tags: %w", err)
			}
		}
		stats.Entries += len(entries)
		stats.Tags += len(tags)
		entries, tags = entries[:0], tags[:0]
		return nil
	}

	now := time.Now()
	for res := range records {
		if res.Err != nil {
			return stats, res.Err
		}
		rec := res.Value
		if o.grouper != nil && rec.FamilyHash == nil {
			h, ok, err := o.grouper.Hash(rec.Type, rec.Content)
			if err != nil {
				return stats, errors.Errorf("family of %s: %w", rec.UUID, err)
			}
			if ok {
				rec.FamilyHash = &h
			}
		}
		entries = append(entries, rec.Entry(now))
		for _, tag := range rec.Tags {
			tags = append(tags, entry.Tag{EntryUUID: rec.UUID, Tag: tag})
		}
		if len(entries) >= BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
