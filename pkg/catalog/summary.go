package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/strrl/telescope-dashboard/pkg/entry"
)

// genericSummaryKeys bounds the summary of types without a dedicated shape.
const genericSummaryKeys = 10

var null = json.RawMessage("null")

// Field is one key of a Summary.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Summary is the list-display projection of an entry's content. It marshals
// to a JSON object preserving key order.
type Summary []Field

// Get returns the raw value stored under key, or nil.
func (s Summary) Get(key string) json.RawMessage {
	for _, f := range s {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Keys returns the summary keys in order.
func (s Summary) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.Write(null)
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Summarize projects content down to the list fields of type t. Missing
// fields are null. Types without a dedicated shape keep the first ten keys
// of the payload in their original order.
func Summarize(t entry.Type, content []byte) Summary {
	if !gjson.ValidBytes(content) {
		return Summary{}
	}
	c := gjson.ParseBytes(content)
	if !c.IsObject() || !hasKeys(c) {
		return Summary{}
	}
	if kind, ok := kinds[t]; ok && kind.Summarize != nil {
		return kind.Summarize(c)
	}
	return firstKeys(c, genericSummaryKeys)
}

func hasKeys(c gjson.Result) bool {
	found := false
	c.ForEach(func(_, _ gjson.Result) bool {
		found = true
		return false
	})
	return found
}

func firstKeys(c gjson.Result, n int) Summary {
	s := Summary{}
	c.ForEach(func(key, value gjson.Result) bool {
		s = append(s, Field{Key: key.String(), Value: json.RawMessage(value.Raw)})
		return len(s) < n
	})
	return s
}

// present reports whether r holds a non-null value.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

// get returns the raw value at the first present path, or null.
func get(c gjson.Result, paths ...string) json.RawMessage {
	for _, p := range paths {
		if r := c.Get(p); present(r) {
			return json.RawMessage(r.Raw)
		}
	}
	return null
}

// pick builds a summary of keys read from the same-named content paths.
func pick(c gjson.Result, keys ...string) Summary {
	s := make(Summary, 0, len(keys))
	for _, k := range keys {
		s = append(s, Field{Key: k, Value: get(c, k)})
	}
	return s
}

// truncated returns the first n characters of a string field, or null.
func truncated(c gjson.Result, path string, n int) json.RawMessage {
	r := c.Get(path)
	if !present(r) {
		return null
	}
	text := r.String()
	if runes := []rune(text); len(runes) > n {
		text = string(runes[:n])
	}
	return quote(text)
}

func quote(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return json.RawMessage(strings.TrimSuffix(buf.String(), "\n"))
}

func summarizeRequest(c gjson.Result) Summary {
	return Summary{
		{"method", get(c, "method")},
		{"uri", get(c, "uri")},
		{"response_status", get(c, "response_status")},
		{"duration", get(c, "duration")},
		{"memory", get(c, "memory")},
		{"controller_action", get(c, "controller_action")},
		{"user", get(c, "user.email", "user.name")},
		{"ip_address", get(c, "ip_address")},
	}
}

func summarizeQuery(c gjson.Result) Summary {
	return pick(c, "sql", "time", "connection", "file", "line", "hash")
}

func summarizeException(c gjson.Result) Summary {
	return pick(c, "class", "file", "line", "message", "occurrences")
}

func summarizeJob(c gjson.Result) Summary {
	return pick(c, "name", "queue", "connection", "status", "tries")
}

func summarizeLog(c gjson.Result) Summary {
	return pick(c, "level", "message")
}

func summarizeMail(c gjson.Result) Summary {
	return pick(c, "mailable", "to", "subject", "queued")
}

func summarizeEvent(c gjson.Result) Summary {
	listeners := 0
	if r := c.Get("listeners"); present(r) {
		listeners = len(r.Array())
	}
	broadcast := get(c, "broadcast")
	if bytes.Equal(broadcast, null) {
		broadcast = json.RawMessage("false")
	}
	listenersJSON, _ := json.Marshal(listeners)
	return Summary{
		{"name", get(c, "name")},
		{"listeners", listenersJSON},
		{"broadcast", broadcast},
	}
}

func summarizeCache(c gjson.Result) Summary {
	return pick(c, "type", "key", "expiration")
}

func summarizeCommand(c gjson.Result) Summary {
	return pick(c, "command", "arguments", "exit_code", "duration")
}

func summarizeSchedule(c gjson.Result) Summary {
	return Summary{
		{"command", get(c, "command")},
		{"expression", get(c, "expression")},
		{"timezone", get(c, "timezone")},
		{"output", truncated(c, "output", 200)},
	}
}

func summarizeModel(c gjson.Result) Summary {
	return pick(c, "action", "model")
}

func summarizeGate(c gjson.Result) Summary {
	return pick(c, "ability", "result", "arguments")
}

func summarizeDump(c gjson.Result) Summary {
	return Summary{{"dump", truncated(c, "dump", 300)}}
}

func summarizeNotification(c gjson.Result) Summary {
	return pick(c, "notification", "notifiable", "channel", "response")
}

func summarizeRedis(c gjson.Result) Summary {
	return pick(c, "command", "time")
}

func summarizeClientRequest(c gjson.Result) Summary {
	return pick(c, "method", "uri", "response_status", "duration")
}

func summarizeBatch(c gjson.Result) Summary {
	return Summary{
		{"name", get(c, "name")},
		{"total_jobs", get(c, "totalJobs", "total_jobs")},
		{"pending_jobs", get(c, "pendingJobs", "pending_jobs")},
		{"failed_jobs", get(c, "failedJobs", "failed_jobs")},
	}
}
