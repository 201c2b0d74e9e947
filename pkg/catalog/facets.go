package catalog

import (
	"strings"

	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

// SlowQueryThreshold is the query time (ms) at or above which a query is slow.
const SlowQueryThreshold = 100

// Facets holds the type-specific filter fields of a search request. Only the
// fields belonging to the searched type are consulted.
type Facets struct {
	// request
	Methods     []string `json:"methods,omitempty"`
	URI         string   `json:"uri,omitempty"`
	RouteGroup  string   `json:"route_group,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
	MinDuration float64  `json:"min_duration,omitempty"`
	UserEmail   string   `json:"user_email,omitempty"`

	// query
	SlowQuery bool   `json:"slow_query,omitempty"`
	QueryType string `json:"query_type,omitempty"`

	ExceptionClass string `json:"exception_class,omitempty"`

	JobStatus string `json:"job_status,omitempty"`
	JobName   string `json:"job_name,omitempty"`

	LogLevel string `json:"log_level,omitempty"`

	ModelAction string `json:"model_action,omitempty"`
	ModelType   string `json:"model_type,omitempty"`

	Mailable    string `json:"mailable,omitempty"`
	MailTo      string `json:"mail_to,omitempty"`
	MailSubject string `json:"mail_subject,omitempty"`

	CommandName string `json:"command_name,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`

	EventName string `json:"event_name,omitempty"`

	CacheType string `json:"cache_type,omitempty"`
	CacheKey  string `json:"cache_key,omitempty"`

	Ability    string `json:"ability,omitempty"`
	GateResult string `json:"gate_result,omitempty"`

	ScheduleCommand string `json:"schedule_command,omitempty"`

	NotificationChannel string `json:"notification_channel,omitempty"`
	NotificationClass   string `json:"notification_class,omitempty"`

	RedisCommand string `json:"redis_command,omitempty"`

	ClientMethod string `json:"client_method,omitempty"`
	ClientURI    string `json:"client_uri,omitempty"`
	ClientStatus string `json:"client_status,omitempty"`

	BatchName string `json:"batch_name,omitempty"`
}

// RouteGroup names a glob over request URIs, e.g. api => /api/v*.
type RouteGroup struct {
	Name    string `mapstructure:"name" json:"name" yaml:"name"`
	Pattern string `mapstructure:"pattern" json:"pattern" yaml:"pattern"`
}

// Env is the configuration the catalog consults.
type Env struct {
	RouteGroups []RouteGroup
}

func (e Env) routePattern(name string) (string, bool) {
	for _, g := range e.RouteGroups {
		if g.Name == name {
			return g.Pattern, true
		}
	}
	return "", false
}

// GlobToLike turns a route glob into a LIKE pattern.
func GlobToLike(glob string) string {
	return strings.ReplaceAll(glob, "*", "%")
}

// Facet builds one predicate from a request, or returns nil when the field
// it reads is absent.
type Facet func(f *Facets, env Env) store.Predicate

// Projected content paths.
var (
	methodField   = store.Text("method")
	uriField      = store.Text("uri")
	statusField   = store.Number("response_status")
	durationField = store.Number("duration")
	timeField     = store.Number("time")
)

// Predicates returns the facet predicates for type t. Facets of other types
// are never consulted.
func Predicates(t entry.Type, f *Facets, env Env) []store.Predicate {
	kind, ok := kinds[t]
	if !ok {
		return nil
	}
	var preds []store.Predicate
	for _, facet := range kind.Facets {
		if p := facet(f, env); p != nil {
			preds = append(preds, p)
		}
	}
	return preds
}

func contains(field store.Field, get func(*Facets) string) Facet {
	return func(f *Facets, _ Env) store.Predicate {
		if v := get(f); v != "" {
			return store.Contains(field, v)
		}
		return nil
	}
}

func equals(field store.Field, get func(*Facets) string) Facet {
	return func(f *Facets, _ Env) store.Predicate {
		if v := get(f); v != "" {
			return store.Eq(field, v)
		}
		return nil
	}
}

func atLeast(field store.Field, get func(*Facets) float64) Facet {
	return func(f *Facets, _ Env) store.Predicate {
		if v := get(f); v > 0 {
			return store.Gte(field, v)
		}
		return nil
	}
}

func minDuration(field store.Field) Facet {
	return atLeast(field, func(f *Facets) float64 { return f.MinDuration })
}

func methodsIn(f *Facets, _ Env) store.Predicate {
	if len(f.Methods) == 0 {
		return nil
	}
	return store.In(methodField, f.Methods)
}

func requestStatuses(f *Facets, _ Env) store.Predicate {
	return statusPredicate(statusField, f.Statuses...)
}

func clientStatus(f *Facets, _ Env) store.Predicate {
	return statusPredicate(statusField, f.ClientStatus)
}

// routeGroup matches the uri against a configured glob. Unknown group names
// are ignored.
func routeGroup(f *Facets, env Env) store.Predicate {
	if f.RouteGroup == "" {
		return nil
	}
	pattern, ok := env.routePattern(f.RouteGroup)
	if !ok {
		return nil
	}
	return store.Like(uriField, GlobToLike(pattern))
}

func slowQuery(f *Facets, _ Env) store.Predicate {
	if !f.SlowQuery {
		return nil
	}
	return store.Gte(timeField, SlowQueryThreshold)
}

func queryType(f *Facets, _ Env) store.Predicate {
	if f.QueryType == "" {
		return nil
	}
	return store.HasPrefix(store.Text("sql"), strings.ToUpper(f.QueryType))
}

func exitCode(f *Facets, _ Env) store.Predicate {
	if f.ExitCode == nil {
		return nil
	}
	return store.Eq(store.Number("exit_code"), *f.ExitCode)
}
