package gateway

import (
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
)

type columnType int

const (
	colText columnType = iota
	colNumber
	colDate
	colUUID
)

// Column maps a payload key to a remote column.
type Column struct {
	Field string
	Name  string
	Type  columnType
}

// selectExpr reads dates and uuids back as text so payloads keep the same
// shape they had locally.
func (c Column) selectExpr() string {
	switch c.Type {
	case colDate, colUUID:
		return c.Name + "::text"
	default:
		return c.Name
	}
}

// param converts a payload value into a query argument.
func (c Column) param(v any) any {
	switch c.Type {
	case colDate, colUUID:
		if s, ok := v.(string); ok && s == "" {
			return nil
		}
	}
	return v
}

// value converts a scanned column into a payload value.
func (c Column) value(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		if c.Type == colDate {
			return t.Format(time.DateOnly)
		}
		return t
	case int64:
		if c.Type == colNumber {
			return float64(t)
		}
	}
	return v
}

// Table describes the remote table of one kind. The id column is implicit.
type Table struct {
	Name    string
	Columns []Column
}

// Tables maps every offline-capable kind to its remote table.
var Tables = map[models.Kind]Table{
	models.KindStudent: {
		Name: "students",
		Columns: []Column{
			{"fullName", "full_name", colText},
			{"rollNumber", "roll_number", colText},
			{"className", "class_name", colText},
			{"section", "section", colText},
			{"gender", "gender", colText},
			{"dateOfBirth", "date_of_birth", colDate},
			{"guardianName", "guardian_name", colText},
			{"phone", "phone", colText},
		},
	},
	models.KindTeacher: {
		Name: "teachers",
		Columns: []Column{
			{"fullName", "full_name", colText},
			{"email", "email", colText},
			{"phone", "phone", colText},
			{"qualification", "qualification", colText},
			{"joinedOn", "joined_on", colDate},
		},
	},
	models.KindSubject: {
		Name: "subjects",
		Columns: []Column{
			{"name", "name", colText},
			{"code", "code", colText},
			{"className", "class_name", colText},
			{"teacherId", "teacher_id", colUUID},
		},
	},
	models.KindExam: {
		Name: "exams",
		Columns: []Column{
			{"name", "name", colText},
			{"subjectId", "subject_id", colUUID},
			{"className", "class_name", colText},
			{"examDate", "exam_date", colDate},
			{"maxMarks", "max_marks", colNumber},
		},
	},
	models.KindMark: {
		Name: "marks",
		Columns: []Column{
			{"studentId", "student_id", colUUID},
			{"examId", "exam_id", colUUID},
			{"marksObtained", "marks_obtained", colNumber},
			{"grade", "grade", colText},
			{"remarks", "remarks", colText},
		},
	},
}
