package store

import (
	"regexp"
	"strings"
)

// Field names either a column of the entries table or a path inside the
// entry's JSON content. Content paths are resolved by the store: against an
// accelerated projection column when the table has one, otherwise through
// JSON extraction.
type Field struct {
	column  string
	path    string
	numeric bool
}

// Column refers to a physical column of the entries table.
func Column(name string) Field {
	return Field{column: name}
}

// Text refers to a content path compared as text, e.g. "user.email".
func Text(path string) Field {
	return Field{path: path}
}

// Number refers to a content path compared numerically.
func Number(path string) Field {
	return Field{path: path, numeric: true}
}

// Entry table columns.
var (
	FieldUUID      = Column("uuid")
	FieldSequence  = Column("sequence")
	FieldBatchID   = Column("batch_id")
	FieldType      = Column("type")
	FieldDisplay   = Column("should_display_on_index")
	FieldCreatedAt = Column("created_at")
	// FieldContent is the raw JSON text of the payload.
	FieldContent = Column("content")
)

func (f Field) String() string {
	if f.path != "" {
		return "content." + f.path
	}
	return f.column
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (f Field) valid() bool {
	if f.path == "" {
		return identRe.MatchString(f.column)
	}
	for _, part := range strings.Split(f.path, ".") {
		if !identRe.MatchString(part) {
			return false
		}
	}
	return true
}

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	// OpContains is a case-insensitive substring match. The value is escaped.
	OpContains
	// OpHasPrefix is a case-insensitive prefix match. The value is escaped.
	OpHasPrefix
	// OpLike is a case-insensitive LIKE with a caller-built pattern.
	OpLike
)

// Predicate is a boolean condition over entries. It is one of Cond, And, Or.
type Predicate interface {
	isPredicate()
}

// Cond compares a field against a value. For OpIn, Value must be a []any.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

// And is satisfied when every member is. An empty And is always true.
type And []Predicate

// Or is satisfied when any member is. An empty Or is never true.
type Or []Predicate

func (Cond) isPredicate() {}
func (And) isPredicate()  {}
func (Or) isPredicate()   {}

func Eq(f Field, v any) Cond          { return Cond{Field: f, Op: OpEq, Value: v} }
func Neq(f Field, v any) Cond         { return Cond{Field: f, Op: OpNeq, Value: v} }
func Lt(f Field, v any) Cond          { return Cond{Field: f, Op: OpLt, Value: v} }
func Lte(f Field, v any) Cond         { return Cond{Field: f, Op: OpLte, Value: v} }
func Gt(f Field, v any) Cond          { return Cond{Field: f, Op: OpGt, Value: v} }
func Gte(f Field, v any) Cond         { return Cond{Field: f, Op: OpGte, Value: v} }
func Contains(f Field, s string) Cond { return Cond{Field: f, Op: OpContains, Value: s} }
func HasPrefix(f Field, s string) Cond {
	return Cond{Field: f, Op: OpHasPrefix, Value: s}
}
func Like(f Field, pattern string) Cond { return Cond{Field: f, Op: OpLike, Value: pattern} }

// In matches any of the given strings.
func In(f Field, values []string) Cond {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Cond{Field: f, Op: OpIn, Value: vs}
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
