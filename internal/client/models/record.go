package models

import (
	"maps"
	"time"
)

// SyncStatus tells whether the remote store has confirmed a record.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// Operation is the net effect still owed to the remote store.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// FieldID is the key carrying the record identifier inside Fields.
const FieldID = "id"

// metaKeys are local-only keys that must never reach the remote store.
var metaKeys = []string{"syncStatus", "operation", "lastModified", "revision"}

// Fields is a record payload keyed by camelCase field names.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil map clones to an empty one.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// Merge returns a copy of f overlaid with partial. The id key is never
// overwritten.
func (f Fields) Merge(partial Fields) Fields {
	out := f.Clone()
	for k, v := range partial {
		if k == FieldID {
			continue
		}
		out[k] = v
	}
	return out
}

// StripMeta returns a copy of f without sync metadata keys.
func (f Fields) StripMeta() Fields {
	out := f.Clone()
	for _, k := range metaKeys {
		delete(out, k)
	}
	return out
}

// ID returns the id key as a string, or "" when missing.
func (f Fields) ID() string {
	id, _ := f[FieldID].(string)
	return id
}

// SyncMeta is the bookkeeping the local store keeps next to a payload.
type SyncMeta struct {
	SyncStatus   SyncStatus
	Operation    Operation
	LastModified time.Time
	// Revision increases on every local mutation. A replay only confirms the
	// revision it read, so edits racing a sync pass stay queued.
	Revision int64
}

// Record is a stored entity together with its sync metadata.
type Record struct {
	ID     string
	Kind   Kind
	Fields Fields
	SyncMeta
}

// InCreateState reports whether the record has never been confirmed remotely.
func (r Record) InCreateState() bool {
	return r.Operation == OpCreate && r.SyncStatus != StatusSynced
}

// Payload returns the fields to send to or show outside the store:
// metadata stripped, id included.
func (r Record) Payload() Fields {
	out := r.Fields.StripMeta()
	out[FieldID] = r.ID
	return out
}

// Counts summarises the queue state of one kind.
type Counts struct {
	Pending int
	Synced  int
	Failed  int
	Deleted int
}
