package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-errors/errors"

	"github.com/strrl/telescope-dashboard/pkg/store"
)

var statusRe = regexp.MustCompile(`^[1-5]([0-9]{2}|xx)$`)

// StatusExpr is a half-open range of HTTP status codes [Min, Max).
type StatusExpr struct {
	Min int
	Max int
}

// ParseStatus parses either a literal code ("404") or a class wildcard
// ("4xx", covering 400-499).
func ParseStatus(s string) (StatusExpr, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !statusRe.MatchString(s) {
		return StatusExpr{}, errors.Errorf("invalid status %q: want a code like 404 or a class like 4xx", s)
	}
	if strings.HasSuffix(s, "xx") {
		class := int(s[0]-'0') * 100
		return StatusExpr{Min: class, Max: class + 100}, nil
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return StatusExpr{}, errors.Errorf("invalid status %q: %w", s, err)
	}
	return StatusExpr{Min: code, Max: code + 1}, nil
}

// Predicate matches the expression against a numeric status field.
func (e StatusExpr) Predicate(f store.Field) store.Predicate {
	if e.Max-e.Min == 1 {
		return store.Eq(f, e.Min)
	}
	return store.And{store.Gte(f, e.Min), store.Lt(f, e.Max)}
}

// statusPredicate ORs the given expressions; unparseable ones are skipped
// because validation has already rejected them.
func statusPredicate(f store.Field, statuses ...string) store.Predicate {
	var ranges store.Or
	for _, s := range statuses {
		if s == "" {
			continue
		}
		expr, err := ParseStatus(s)
		if err != nil {
			continue
		}
		ranges = append(ranges, expr.Predicate(f))
	}
	if len(ranges) == 0 {
		return nil
	}
	return ranges
}
