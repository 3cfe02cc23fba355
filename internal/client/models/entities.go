package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/common"
)

type Student struct {
	ID           string `json:"id,omitempty"`
	FullName     string `json:"fullName" validate:"required,max=200"`
	RollNumber   string `json:"rollNumber" validate:"required,max=32"`
	ClassName    string `json:"className" validate:"required,max=64"`
	Section      string `json:"section,omitempty" validate:"omitempty,max=16"`
	Gender       string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	DateOfBirth  string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	GuardianName string `json:"guardianName,omitempty" validate:"omitempty,max=200"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

type Teacher struct {
	ID            string `json:"id,omitempty"`
	FullName      string `json:"fullName" validate:"required,max=200"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Qualification string `json:"qualification,omitempty" validate:"omitempty,max=200"`
	JoinedOn      string `json:"joinedOn,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type Subject struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name" validate:"required,max=100"`
	Code      string `json:"code" validate:"required,max=16"`
	ClassName string `json:"className,omitempty" validate:"omitempty,max=64"`
	TeacherID string `json:"teacherId,omitempty"`
}

type Exam struct {
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name" validate:"required,max=100"`
	SubjectID string  `json:"subjectId" validate:"required"`
	ClassName string  `json:"className,omitempty" validate:"omitempty,max=64"`
	ExamDate  string  `json:"examDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MaxMarks  float64 `json:"maxMarks" validate:"gt=0"`
}

type Mark struct {
	ID            string  `json:"id,omitempty"`
	StudentID     string  `json:"studentId" validate:"required"`
	ExamID        string  `json:"examId" validate:"required"`
	MarksObtained float64 `json:"marksObtained" validate:"gte=0"`
	Grade         string  `json:"grade,omitempty" validate:"omitempty,max=4"`
	Remarks       string  `json:"remarks,omitempty" validate:"omitempty,max=500"`
}

// ActivityLog is an audit row kept only in the remote store.
type ActivityLog struct {
	ID         string    `json:"id,omitempty"`
	Action     string    `json:"action" validate:"required,max=64"`
	EntityType string    `json:"entityType,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// New returns a pointer to the zero value of the typed payload for kind.
func New(kind Kind) (any, error) {
	switch kind {
	case KindStudent:
		return &Student{}, nil
	case KindTeacher:
		return &Teacher{}, nil
	case KindSubject:
		return &Subject{}, nil
	case KindExam:
		return &Exam{}, nil
	case KindMark:
		return &Mark{}, nil
	case KindActivityLog:
		return &ActivityLog{}, nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownKind, kind)
}

// Decode converts fields into the typed payload for kind. Unknown keys are
// ignored.
func Decode(kind Kind, fields Fields) (any, error) {
	v, err := New(kind)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(fields.StripMeta())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrValidation, kind, err)
	}
	return v, nil
}

// Coerce converts string values to the Go type the typed payload declares for
// the same key, so "maxMarks"="100" becomes 100.0. Keys the payload does not
// declare, and values that do not parse, are kept as they are.
func Coerce(kind Kind, fields Fields) (Fields, error) {
	v, err := New(kind)
	if err != nil {
		return nil, err
	}
	types := jsonFieldKinds(reflect.TypeOf(v).Elem())

	out := fields.Clone()
	for k, val := range fields {
		s, ok := val.(string)
		if !ok {
			continue
		}
		switch types[k] {
		case reflect.Float32, reflect.Float64:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out[k] = f
			}
		case reflect.Int, reflect.Int32, reflect.Int64:
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				out[k] = n
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(s); err == nil {
				out[k] = b
			}
		}
	}
	return out, nil
}

func jsonFieldKinds(t reflect.Type) map[string]reflect.Kind {
	out := make(map[string]reflect.Kind, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = f.Type.Kind()
	}
	return out
}
