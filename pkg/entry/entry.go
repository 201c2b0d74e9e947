package entry

import (
	"encoding/json"
	"time"
)

// Type is the kind of telemetry captured by an entry.
type Type string

const (
	TypeRequest       Type = "request"
	TypeQuery         Type = "query"
	TypeException     Type = "exception"
	TypeJob           Type = "job"
	TypeLog           Type = "log"
	TypeMail          Type = "mail"
	TypeEvent         Type = "event"
	TypeCache         Type = "cache"
	TypeCommand       Type = "command"
	TypeSchedule      Type = "schedule"
	TypeModel         Type = "model"
	TypeGate          Type = "gate"
	TypeDump          Type = "dump"
	TypeNotification  Type = "notification"
	TypeRedis         Type = "redis"
	TypeClientRequest Type = "client_request"
	TypeBatch         Type = "batch"
	TypeView          Type = "view"
)

// Types lists every known entry type in display order.
var Types = []Type{
	TypeRequest,
	TypeQuery,
	TypeException,
	TypeJob,
	TypeLog,
	TypeMail,
	TypeEvent,
	TypeCache,
	TypeCommand,
	TypeSchedule,
	TypeModel,
	TypeGate,
	TypeDump,
	TypeNotification,
	TypeRedis,
	TypeClientRequest,
	TypeBatch,
	TypeView,
}

// Valid reports whether t is one of the known entry types.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Entry is a single stored telemetry record. Entries are append-only;
// Sequence is assigned by the store and orders entries by insertion.
type Entry struct {
	UUID                 string
	Sequence             int64
	BatchID              *string
	FamilyHash           *string
	Type                 Type
	Content              json.RawMessage
	ShouldDisplayOnIndex bool
	CreatedAt            time.Time
}

// Tag attaches a label to an entry.
type Tag struct {
	EntryUUID string
	Tag       string
}
