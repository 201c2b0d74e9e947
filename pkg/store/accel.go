package store

import (
	"github.com/tidwall/gjson"
)

// maxURILength bounds the uri projection, matching the indexed column width.
const maxURILength = 500

// projection is a denormalized copy of one content path kept in its own
// column so filters and sorts can use an index instead of JSON extraction.
type projection struct {
	path    string
	column  string
	numeric bool
	value   func(gjson.Result) any
}

var projections = []projection{
	{path: "method", column: "c_method", value: textValue(0)},
	{path: "uri", column: "c_uri", value: textValue(maxURILength)},
	{path: "response_status", column: "c_response_status", numeric: true, value: intValue},
	{path: "duration", column: "c_duration", numeric: true, value: floatValue},
	{path: "time", column: "c_time", numeric: true, value: floatValue},
}

func textValue(limit int) func(gjson.Result) any {
	return func(r gjson.Result) any {
		if !r.Exists() || r.Type == gjson.Null {
			return nil
		}
		s := r.String()
		if limit > 0 {
			if runes := []rune(s); len(runes) > limit {
				s = string(runes[:limit])
			}
		}
		return s
	}
}

func intValue(r gjson.Result) any {
	if r.Type != gjson.Number {
		return nil
	}
	return r.Int()
}

func floatValue(r gjson.Result) any {
	if r.Type != gjson.Number {
		return nil
	}
	return r.Float()
}

// projectionValues extracts the projection column values from content, in
// the order of projections.
func projectionValues(content []byte) []any {
	values := make([]any, len(projections))
	for i, p := range projections {
		values[i] = p.value(gjson.GetBytes(content, p.path))
	}
	return values
}
