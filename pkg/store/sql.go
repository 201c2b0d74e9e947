package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-errors/errors"

	"github.com/strrl/telescope-dashboard/pkg/entry"
)

const (
	entriesTable = "telescope_entries"
	tagsTable    = "telescope_entries_tags"

	entryColumns = "uuid, sequence, batch_id, family_hash, type, content, should_display_on_index, created_at"
)

// dialect captures the SQL differences between the supported databases.
type dialect interface {
	// schema returns the statements creating the tables and indexes.
	schema() []string
	// jsonText extracts a content path as text.
	jsonText(path string) string
	// jsonNumber extracts a content path as a number.
	jsonNumber(path string) string
	// like renders a case-insensitive LIKE against one placeholder, with
	// backslash as the escape character.
	like(expr string) string
	// timeArg converts a timestamp into the form stored in created_at.
	timeArg(t time.Time) any
	// offsetOnly renders an OFFSET clause with no LIMIT.
	offsetOnly(offset int) string
}

var _ Store = (*SQLStore)(nil)
var _ Loader = (*SQLStore)(nil)

// SQLStore implements Store and Loader over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	// accelerated maps content paths to projection columns present in the
	// entries table. Filled by Init; read-only afterwards.
	accelerated map[string]projection
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d, accelerated: map[string]projection{}}
}

// Init creates the entries and tags tables if they do not exist and detects
// which projection columns the entries table carries. Tables created by
// other tools (e.g. an existing Telescope database) are left untouched.
func (s *SQLStore) Init(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Errorf("init schema: %w", err)
		}
	}
	return s.detectProjections(ctx)
}

func (s *SQLStore) detectProjections(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+entriesTable+" LIMIT 0")
	if err != nil {
		return errors.Errorf("probe entries columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return errors.Errorf("read entries columns: %w", err)
	}
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[strings.ToLower(c)] = true
	}

	accelerated := map[string]projection{}
	for _, p := range projections {
		if present[p.column] {
			accelerated[p.path] = p
		}
	}
	s.accelerated = accelerated
	return nil
}

// Find returns the entry with the given uuid, or nil if there is none.
func (s *SQLStore) Find(ctx context.Context, uuid string) (*entry.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM "+entriesTable+" WHERE uuid = ?",
		uuid,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("find entry: %w", err)
	}
	return &e, nil
}

// Tags returns the tags attached to an entry, sorted.
func (s *SQLStore) Tags(ctx context.Context, uuid string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tag FROM "+tagsTable+" WHERE entry_uuid = ? ORDER BY tag",
		uuid,
	)
	if err != nil {
		return nil, errors.Errorf("query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("rows err: %w", err)
	}
	return tags, nil
}

// Batch returns every entry sharing batchID, ordered by sequence.
func (s *SQLStore) Batch(ctx context.Context, batchID string) ([]entry.Entry, error) {
	return s.Scan(ctx, ScanOpts{
		Where:   []Predicate{Eq(FieldBatchID, batchID)},
		OrderBy: []Order{{Field: FieldSequence}},
	})
}

// Scan returns entries matching the given options.
func (s *SQLStore) Scan(ctx context.Context, opts ScanOpts) ([]entry.Entry, error) {
	query, args, err := s.buildScan(opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Errorf("scan entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

func (s *SQLStore) buildScan(opts ScanOpts) (string, []any, error) {
	var conditions []string
	var args []any

	for _, p := range opts.Where {
		cond, err := s.compile(p, &args)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, cond)
	}

	query := "SELECT " + entryColumns + " FROM " + entriesTable
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if len(opts.OrderBy) > 0 {
		terms := make([]string, 0, len(opts.OrderBy))
		for _, o := range opts.OrderBy {
			expr, err := s.expr(o.Field)
			if err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, expr+" "+dir)
		}
		query += " ORDER BY " + strings.Join(terms, ", ")
	}

	switch {
	case opts.Limit > 0:
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	case opts.Offset > 0:
		query += " " + s.dialect.offsetOnly(opts.Offset)
	}
	return query, args, nil
}

// expr renders a field, preferring a projection column over JSON extraction.
func (s *SQLStore) expr(f Field) (string, error) {
	if !f.valid() {
		return "", errors.Errorf("invalid field %q", f.String())
	}
	if f.path == "" {
		return f.column, nil
	}
	if p, ok := s.accelerated[f.path]; ok {
		return p.column, nil
	}
	if f.numeric {
		return s.dialect.jsonNumber(f.path), nil
	}
	return s.dialect.jsonText(f.path), nil
}

func (s *SQLStore) compile(p Predicate, args *[]any) (string, error) {
	switch p := p.(type) {
	case Cond:
		return s.compileCond(p, args)
	case And:
		return s.compileGroup(p, " AND ", "1 = 1", args)
	case Or:
		return s.compileGroup(p, " OR ", "1 = 0", args)
	default:
		return "", errors.Errorf("unsupported predicate %T", p)
	}
}

func (s *SQLStore) compileGroup(members []Predicate, sep, empty string, args *[]any) (string, error) {
	if len(members) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(members))
	for _, m := range members {
		part, err := s.compile(m, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

var comparisons = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}

func (s *SQLStore) compileCond(c Cond, args *[]any) (string, error) {
	expr, err := s.expr(c.Field)
	if err != nil {
		return "", err
	}

	if cmp, ok := comparisons[c.Op]; ok {
		*args = append(*args, s.arg(c.Value))
		return fmt.Sprintf("%s %s ?", expr, cmp), nil
	}

	switch c.Op {
	case OpIn:
		values, ok := c.Value.([]any)
		if !ok {
			return "", errors.Errorf("%s: IN expects []any, got %T", c.Field, c.Value)
		}
		if len(values) == 0 {
			return "1 = 0", nil
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = "?"
			*args = append(*args, s.arg(v))
		}
		return fmt.Sprintf("%s IN (%s)", expr, strings.Join(marks, ", ")), nil
	case OpContains, OpHasPrefix, OpLike:
		text, ok := c.Value.(string)
		if !ok {
			return "", errors.Errorf("%s: pattern match expects string, got %T", c.Field, c.Value)
		}
		switch c.Op {
		case OpContains:
			text = "%" + escapeLike(text) + "%"
		case OpHasPrefix:
			text = escapeLike(text) + "%"
		}
		*args = append(*args, text)
		return s.dialect.like(expr), nil
	}
	return "", errors.Errorf("%s: unsupported operator %d", c.Field, c.Op)
}

func (s *SQLStore) arg(v any) any {
	if t, ok := v.(time.Time); ok {
		return s.dialect.timeArg(t)
	}
	return v
}

// InsertEntries stores entries in a single transaction, filling projection
// columns from content when the table has them.
func (s *SQLStore) InsertEntries(ctx context.Context, entries []entry.Entry) error {
	cols := []string{"uuid", "batch_id", "family_hash", "should_display_on_index", "type", "content", "created_at"}
	var accelerated []int
	for i, p := range projections {
		if _, ok := s.accelerated[p.path]; ok {
			cols = append(cols, p.column)
			accelerated = append(accelerated, i)
		}
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+entriesTable+" ("+strings.Join(cols, ", ")+") VALUES ("+marks+")",
	)
	if err != nil {
		return errors.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		args := []any{
			e.UUID,
			nullable(e.BatchID),
			nullable(e.FamilyHash),
			e.ShouldDisplayOnIndex,
			string(e.Type),
			string(e.Content),
			s.dialect.timeArg(createdAt),
		}
		values := projectionValues(e.Content)
		for _, i := range accelerated {
			args = append(args, values[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Errorf("insert entry %s: %w", e.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf("commit: %w", err)
	}
	return nil
}

// InsertTags stores tag rows in a single transaction.
func (s *SQLStore) InsertTags(ctx context.Context, tags []entry.Tag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+tagsTable+" (entry_uuid, tag) VALUES (?, ?)",
	)
	if err != nil {
		return errors.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, t.EntryUUID, t.Tag); err != nil {
			return errors.Errorf("insert tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (entry.Entry, error) {
	var (
		e          entry.Entry
		batchID    sql.NullString
		familyHash sql.NullString
		typ        string
		content    string
		createdAt  timestamp
	)
	err := row.Scan(&e.UUID, &e.Sequence, &batchID, &familyHash, &typ, &content, &e.ShouldDisplayOnIndex, &createdAt)
	if err != nil {
		return entry.Entry{}, err
	}
	if batchID.Valid {
		e.BatchID = &batchID.String
	}
	if familyHash.Valid {
		e.FamilyHash = &familyHash.String
	}
	e.Type = entry.Type(typ)
	e.Content = json.RawMessage(content)
	e.CreatedAt = createdAt.Time
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]entry.Entry, error) {
	var entries []entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("rows err: %w", err)
	}
	return entries, nil
}

// storedTimeLayout is how Telescope writes created_at into text columns.
const storedTimeLayout = "2006-01-02 15:04:05"

var timeLayouts = []string{
	storedTimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// timestamp scans created_at from either a native timestamp column or text.
type timestamp struct {
	time.Time
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time = time.Time{}
		return nil
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	}
	return errors.Errorf("unsupported created_at value %T", src)
}

func (ts *timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return errors.Errorf("unparseable created_at %q", s)
}
