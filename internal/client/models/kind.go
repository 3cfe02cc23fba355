// Package models defines the client-side entity kinds, their typed payloads,
// and the sync metadata the local store keeps next to every record.
package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/schoolkeeper/internal/common"
)

// Kind names an entity category. The value doubles as the table name in both
// the local store and the remote database.
type Kind string

const (
	KindStudent     Kind = "students"
	KindTeacher     Kind = "teachers"
	KindSubject     Kind = "subjects"
	KindExam        Kind = "exams"
	KindMark        Kind = "marks"
	KindActivityLog Kind = "activity_logs"
)

// SyncOrder is the order in which queued mutations are replayed. Kinds that
// are referenced by foreign keys come before the kinds referencing them.
var SyncOrder = []Kind{KindStudent, KindTeacher, KindSubject, KindExam, KindMark}

// Kinds lists every known kind.
var Kinds = []Kind{KindStudent, KindTeacher, KindSubject, KindExam, KindMark, KindActivityLog}

func (k Kind) String() string { return string(k) }

// Offline reports whether records of this kind are kept in the local store.
// Activity logs are remote-only.
func (k Kind) Offline() bool {
	switch k {
	case KindStudent, KindTeacher, KindSubject, KindExam, KindMark:
		return true
	default:
		return false
	}
}

// ParseKind accepts the table name or its singular form, case-insensitively
// ("students", "Student", "activity_log").
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if v == string(k) || v+"s" == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownKind, s)
}
