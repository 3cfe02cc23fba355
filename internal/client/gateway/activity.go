package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/dbx"
	"github.com/google/uuid"
)

// ActivityLogs reads and appends the remote-only audit feed.
type ActivityLogs struct {
	db dbx.DBTX
}

func NewActivityLogs(db dbx.DBTX) *ActivityLogs {
	return &ActivityLogs{db: db}
}

// Create appends an entry. Empty id and time are filled in.
func (a *ActivityLogs) Create(ctx context.Context, e models.ActivityLog) (models.ActivityLog, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO activity_logs (id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := a.db.ExecContext(ctx, query,
		e.ID, e.Action, nullString(e.EntityType), nullString(e.EntityID), nullString(e.Details), e.CreatedAt)
	if err != nil {
		return models.ActivityLog{}, classify("create", models.KindActivityLog, err)
	}
	return e, nil
}

// FetchAll returns the newest entries first, at most limit of them.
func (a *ActivityLogs) FetchAll(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	query := `SELECT id::text, action, entity_type, entity_id, details, created_at
		FROM activity_logs ORDER BY created_at DESC, id LIMIT $1`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, classify("fetch", models.KindActivityLog, err)
	}
	defer rows.Close()

	var result []models.ActivityLog
	for rows.Next() {
		var (
			e                          models.ActivityLog
			entityType, entityID, note sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &entityType, &entityID, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		e.EntityType, e.EntityID, e.Details = entityType.String, entityID.String, note.String
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch", models.KindActivityLog, err)
	}
	return result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
