// Package gateway is the only path from the client to the hosted PostgreSQL
// database that holds the authoritative copy of school records.
//
// Every offline-capable kind gets a Gateway exposing FetchAll, Create, Update
// and Delete. A remote-side refusal (constraint or data error, or an update
// of a row that no longer exists) is reported as an error wrapping
// ErrRejected. Any other error is a transport fault. Callers that only care
// about "did the write land" can treat both the same way.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRejected marks writes the remote store refused.
var ErrRejected = errors.New("rejected by remote store")

// Gateway performs remote CRUD for one entity kind.
type Gateway interface {
	Kind() models.Kind
	FetchAll(ctx context.Context) ([]models.Fields, error)
	Create(ctx context.Context, fields models.Fields) (models.Fields, error)
	Update(ctx context.Context, id string, partial models.Fields) error
	Delete(ctx context.Context, id string) error
}

// IsRejected reports whether err is a remote rejection rather than a
// transport fault.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// classify wraps a driver error. SQLSTATE classes 22 (data exception) and
// 23 (integrity constraint violation) are rejections.
func classify(op string, kind models.Kind, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return fmt.Errorf("%s %s: %w: %w", op, kind, ErrRejected, err)
	}
	return fmt.Errorf("%s %s: %w", op, kind, err)
}
