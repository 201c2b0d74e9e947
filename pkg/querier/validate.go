package querier

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-errors/errors"

	"github.com/strrl/telescope-dashboard/pkg/catalog"
)

// ValidationError reports malformed search fields. Errors maps a field name
// (array members as "methods.0") to its messages.
type ValidationError struct {
	Errors map[string][]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	fields := e.Fields()
	if len(fields) == 0 {
		return "the given data was invalid"
	}
	msg := e.Errors[fields[0]][0]
	rest := -1
	for _, msgs := range e.Errors {
		rest += len(msgs)
	}
	switch {
	case rest == 1:
		msg += " (and 1 more error)"
	case rest > 1:
		msg += fmt.Sprintf(" (and %d more errors)", rest)
	}
	return msg
}

// Fields returns the invalid field names in sorted order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *ValidationError) add(field, format string, args ...any) {
	if e.Errors == nil {
		e.Errors = map[string][]string{}
	}
	e.Errors[field] = append(e.Errors[field], fmt.Sprintf(format, args...))
}

// SortFields are the accepted sort_by values.
var SortFields = []string{"sequence", "created_at", "content.duration", "content.time"}

var sortDirections = []string{"asc", "desc"}

const (
	maxContentLength = 500
	maxURILength     = 500
	maxTextLength    = 255
)

// dateLayouts are the accepted date_from / date_to formats.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date %q", s)
}

// endOfDay widens t to the last second of its calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// Validate checks r against the accepted field shapes and enumerations.
// maxPerPage bounds per_page. It returns a *ValidationError or nil.
func (r *SearchRequest) Validate(maxPerPage int) error {
	v := &ValidationError{}

	switch {
	case r.Type == "":
		v.add("type", "The type field is required.")
	case !r.Type.Valid():
		v.add("type", "The selected type is invalid.")
	}

	if r.PerPage != nil {
		if *r.PerPage < 1 {
			v.add("per_page", "The per_page field must be at least 1.")
		} else if *r.PerPage > maxPerPage {
			v.add("per_page", "The per_page field must not be greater than %d.", maxPerPage)
		}
	}
	if r.Offset != nil && *r.Offset < 0 {
		v.add("offset", "The offset field must be at least 0.")
	}
	oneOf(v, "sort_by", r.SortBy, SortFields)
	oneOf(v, "sort_direction", r.SortDirection, sortDirections)

	for field, value := range map[string]string{"date_from": r.DateFrom, "date_to": r.DateTo} {
		if value == "" {
			continue
		}
		if _, err := parseDate(value); err != nil {
			v.add(field, "The %s field must be a valid date.", field)
		}
	}

	maxLen(v, "content", r.Content, maxContentLength)
	r.validateFacets(v)

	if len(v.Errors) > 0 {
		return v
	}
	return nil
}

func (r *SearchRequest) validateFacets(v *ValidationError) {
	f := &r.Facets

	for i, m := range f.Methods {
		if !slices.Contains(catalog.AcceptedMethods, m) {
			v.add(fmt.Sprintf("methods.%d", i), "The selected methods.%d is invalid.", i)
		}
	}
	for i, s := range f.Statuses {
		if _, err := catalog.ParseStatus(s); err != nil {
			v.add(fmt.Sprintf("statuses.%d", i), "The selected statuses.%d is invalid.", i)
		}
	}
	if f.ClientStatus != "" {
		if _, err := catalog.ParseStatus(f.ClientStatus); err != nil {
			v.add("client_status", "The selected client_status is invalid.")
		}
	}
	if f.MinDuration < 0 {
		v.add("min_duration", "The min_duration field must be at least 0.")
	}

	oneOf(v, "query_type", f.QueryType, catalog.QueryTypes)
	oneOf(v, "job_status", f.JobStatus, catalog.JobStatuses)
	oneOf(v, "log_level", f.LogLevel, catalog.LogLevels)
	oneOf(v, "model_action", f.ModelAction, catalog.ModelActions)
	oneOf(v, "cache_type", f.CacheType, catalog.CacheTypes)
	oneOf(v, "gate_result", f.GateResult, catalog.GateResults)

	maxLen(v, "uri", f.URI, maxURILength)
	maxLen(v, "client_uri", f.ClientURI, maxURILength)
	for field, value := range map[string]string{
		"user_email":           f.UserEmail,
		"exception_class":      f.ExceptionClass,
		"job_name":             f.JobName,
		"model_type":           f.ModelType,
		"mailable":             f.Mailable,
		"mail_to":              f.MailTo,
		"mail_subject":         f.MailSubject,
		"command_name":         f.CommandName,
		"event_name":           f.EventName,
		"cache_key":            f.CacheKey,
		"ability":              f.Ability,
		"schedule_command":     f.ScheduleCommand,
		"notification_channel": f.NotificationChannel,
		"notification_class":   f.NotificationClass,
		"redis_command":        f.RedisCommand,
		"batch_name":           f.BatchName,
	} {
		maxLen(v, field, value, maxTextLength)
	}
}

func oneOf(v *ValidationError, field, value string, allowed []string) {
	if value != "" && !slices.Contains(allowed, value) {
		v.add(field, "The selected %s is invalid.", field)
	}
}

func maxLen(v *ValidationError, field, value string, n int) {
	if utf8.RuneCountInString(value) > n {
		v.add(field, "The %s field must not be greater than %d characters.", field, n)
	}
}

