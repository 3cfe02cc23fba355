package records

import (
	"context"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
)

// Repository is the local durable store of one entity kind. Every record it
// holds carries sync metadata describing what is still owed to the remote
// store.
type Repository interface {
	// Kind returns the entity kind the repository is bound to.
	Kind() models.Kind

	// Add stores a new record in pending/create state under a fresh id.
	Add(ctx context.Context, fields models.Fields) (models.Record, error)

	// Update merges partial into a visible record and queues it again.
	// It returns common.ErrNotFound for unknown or delete-marked ids.
	Update(ctx context.Context, id string, partial models.Fields) (models.Record, error)

	// Delete removes a never-synced record outright, otherwise queues a
	// remote delete.
	Delete(ctx context.Context, id string) error

	// Get returns a record with its metadata, delete-marked ones included.
	Get(ctx context.Context, id string) (models.Record, error)

	// ListAll returns every record with its metadata.
	ListAll(ctx context.Context) ([]models.Record, error)

	// ListVisible returns payloads of every record not marked for deletion.
	ListVisible(ctx context.Context) ([]models.Fields, error)

	// ListPending returns the replay queue: pending and failed records,
	// oldest mutation first.
	ListPending(ctx context.Context) ([]models.Record, error)

	// ListFailed returns records whose last replay was rejected.
	ListFailed(ctx context.Context) ([]models.Record, error)

	// MarkSynced confirms the replay of rec. Edits made after rec was read
	// stay queued.
	MarkSynced(ctx context.Context, rec models.Record) error

	// MarkFailed flags a record whose replay failed. It stays queued.
	MarkFailed(ctx context.Context, id string) error

	// ReplaceAll drops every record and loads the given payloads with status.
	ReplaceAll(ctx context.Context, payloads []models.Fields, status models.SyncStatus) error

	// Counts returns queue counters.
	Counts(ctx context.Context) (models.Counts, error)
}
