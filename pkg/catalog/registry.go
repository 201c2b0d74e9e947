// Package catalog describes, per entry type, how entries are filtered,
// summarized for list display, and which facet values a client may choose.
// Adding a type means adding a row to kinds.
package catalog

import (
	"github.com/tidwall/gjson"

	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

// Kind bundles the per-type strategies.
type Kind struct {
	Facets    []Facet
	Summarize func(gjson.Result) Summary
	Values    func(Env) Values
}

var kinds = map[entry.Type]Kind{
	entry.TypeRequest: {
		Facets: []Facet{
			methodsIn,
			contains(uriField, func(f *Facets) string { return f.URI }),
			requestStatuses,
			minDuration(durationField),
			contains(store.Text("user.email"), func(f *Facets) string { return f.UserEmail }),
			routeGroup,
		},
		Summarize: summarizeRequest,
		Values:    requestValues,
	},
	entry.TypeQuery: {
		Facets: []Facet{
			slowQuery,
			queryType,
			minDuration(timeField),
		},
		Summarize: summarizeQuery,
		Values:    fixed("query_types", QueryTypes),
	},
	entry.TypeException: {
		Facets: []Facet{
			contains(store.Text("class"), func(f *Facets) string { return f.ExceptionClass }),
		},
		Summarize: summarizeException,
	},
	entry.TypeJob: {
		Facets: []Facet{
			equals(store.Text("status"), func(f *Facets) string { return f.JobStatus }),
			contains(store.Text("name"), func(f *Facets) string { return f.JobName }),
		},
		Summarize: summarizeJob,
		Values:    fixed("statuses", JobStatuses),
	},
	entry.TypeLog: {
		Facets: []Facet{
			equals(store.Text("level"), func(f *Facets) string { return f.LogLevel }),
		},
		Summarize: summarizeLog,
		Values:    fixed("levels", LogLevels),
	},
	entry.TypeMail: {
		Facets: []Facet{
			contains(store.Text("mailable"), func(f *Facets) string { return f.Mailable }),
			// recipients are nested address maps; match anywhere in the payload
			contains(store.FieldContent, func(f *Facets) string { return f.MailTo }),
			contains(store.Text("subject"), func(f *Facets) string { return f.MailSubject }),
		},
		Summarize: summarizeMail,
	},
	entry.TypeEvent: {
		Facets: []Facet{
			contains(store.Text("name"), func(f *Facets) string { return f.EventName }),
		},
		Summarize: summarizeEvent,
	},
	entry.TypeCache: {
		Facets: []Facet{
			equals(store.Text("type"), func(f *Facets) string { return f.CacheType }),
			contains(store.Text("key"), func(f *Facets) string { return f.CacheKey }),
		},
		Summarize: summarizeCache,
		Values:    fixed("types", CacheTypes),
	},
	entry.TypeCommand: {
		Facets: []Facet{
			contains(store.Text("command"), func(f *Facets) string { return f.CommandName }),
			exitCode,
		},
		Summarize: summarizeCommand,
	},
	entry.TypeSchedule: {
		Facets: []Facet{
			contains(store.Text("command"), func(f *Facets) string { return f.ScheduleCommand }),
		},
		Summarize: summarizeSchedule,
	},
	entry.TypeModel: {
		Facets: []Facet{
			equals(store.Text("action"), func(f *Facets) string { return f.ModelAction }),
			contains(store.Text("model"), func(f *Facets) string { return f.ModelType }),
		},
		Summarize: summarizeModel,
		Values:    fixed("actions", ModelActions),
	},
	entry.TypeGate: {
		Facets: []Facet{
			contains(store.Text("ability"), func(f *Facets) string { return f.Ability }),
			equals(store.Text("result"), func(f *Facets) string { return f.GateResult }),
		},
		Summarize: summarizeGate,
		Values:    fixed("results", GateResults),
	},
	entry.TypeDump: {
		Summarize: summarizeDump,
	},
	entry.TypeNotification: {
		Facets: []Facet{
			equals(store.Text("channel"), func(f *Facets) string { return f.NotificationChannel }),
			contains(store.Text("notification"), func(f *Facets) string { return f.NotificationClass }),
		},
		Summarize: summarizeNotification,
	},
	entry.TypeRedis: {
		Facets: []Facet{
			contains(store.Text("command"), func(f *Facets) string { return f.RedisCommand }),
			minDuration(timeField),
		},
		Summarize: summarizeRedis,
	},
	entry.TypeClientRequest: {
		Facets: []Facet{
			equals(methodField, func(f *Facets) string { return f.ClientMethod }),
			contains(uriField, func(f *Facets) string { return f.ClientURI }),
			clientStatus,
			minDuration(durationField),
		},
		Summarize: summarizeClientRequest,
	},
	entry.TypeBatch: {
		Facets: []Facet{
			contains(store.Text("name"), func(f *Facets) string { return f.BatchName }),
		},
		Summarize: summarizeBatch,
	},
}
