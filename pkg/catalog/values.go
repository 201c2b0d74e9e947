package catalog

import "github.com/strrl/telescope-dashboard/pkg/entry"

// Enumerations shared by the filter UI catalog and request validation.
var (
	// Methods are the HTTP methods offered as request filters.
	Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
	// AcceptedMethods are the HTTP methods a search may filter on.
	AcceptedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	StatusGroups    = []string{"2xx", "3xx", "4xx", "5xx"}
	QueryTypes      = []string{"select", "insert", "update", "delete"}
	JobStatuses     = []string{"pending", "completed", "failed"}
	LogLevels       = []string{"emergency", "alert", "critical", "error", "warning", "notice", "info", "debug"}
	CacheTypes      = []string{"hit", "missed", "set", "forget"}
	ModelActions    = []string{"created", "updated", "deleted"}
	GateResults     = []string{"allowed", "denied"}
)

// Values maps a facet name to the values a client may pick from.
type Values map[string][]string

// FilterValues returns the facet values for type t. Types without declared
// facets, and unknown types, yield an empty map.
func FilterValues(t entry.Type, env Env) Values {
	kind, ok := kinds[t]
	if !ok || kind.Values == nil {
		return Values{}
	}
	return kind.Values(env)
}

func fixed(name string, values []string) func(Env) Values {
	return func(Env) Values {
		return Values{name: clone(values)}
	}
}

func requestValues(env Env) Values {
	groups := make([]string, 0, len(env.RouteGroups))
	for _, g := range env.RouteGroups {
		groups = append(groups, g.Name)
	}
	return Values{
		"methods":       clone(Methods),
		"route_groups":  groups,
		"status_groups": clone(StatusGroups),
	}
}

func clone(values []string) []string {
	return append([]string(nil), values...)
}
