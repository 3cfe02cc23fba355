package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/common"
	"github.com/dmitrijs2005/schoolkeeper/internal/dbx"
	"github.com/google/uuid"
)

// SQLiteStore implements Repository on top of a SQLite table named after its kind.
type SQLiteStore struct {
	db    *sql.DB
	kind  models.Kind
	now   func() time.Time
	newID func() string
}

// Option customizes a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces the clock used for LastModified.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(f func() string) Option {
	return func(s *SQLiteStore) { s.newID = f }
}

// NewSQLiteStore binds a store to kind. Only offline-capable kinds have tables.
func NewSQLiteStore(db *sql.DB, kind models.Kind, opts ...Option) (*SQLiteStore, error) {
	if !kind.Offline() {
		return nil, fmt.Errorf("%w: %s has no local table", common.ErrUnknownKind, kind)
	}
	s := &SQLiteStore{
		db:    db,
		kind:  kind,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *SQLiteStore) Kind() models.Kind { return s.kind }

const columns = `id, data, sync_status, operation, last_modified, revision`

func (s *SQLiteStore) Add(ctx context.Context, fields models.Fields) (models.Record, error) {
	rec := models.Record{
		ID:     s.newID(),
		Kind:   s.kind,
		Fields: fields.StripMeta(),
		SyncMeta: models.SyncMeta{
			SyncStatus:   models.StatusPending,
			Operation:    models.OpCreate,
			LastModified: s.now(),
			Revision:     1,
		},
	}
	delete(rec.Fields, models.FieldID)

	if err := s.insert(ctx, s.db, rec); err != nil {
		return models.Record{}, fmt.Errorf("failed to add %s: %w", s.kind, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, partial models.Fields) (models.Record, error) {
	var out models.Record
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Operation == models.OpDelete {
			return common.ErrNotFound
		}

		if !rec.InCreateState() {
			rec.Operation = models.OpUpdate
		}
		rec.Fields = rec.Fields.Merge(partial.StripMeta())
		delete(rec.Fields, models.FieldID)
		rec.SyncStatus = models.StatusPending
		rec.LastModified = s.now()
		rec.Revision++

		if err := s.save(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to update %s[%s]: %w", s.kind, id, err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.InCreateState() {
			return s.purge(ctx, tx, id)
		}
		if rec.Operation == models.OpDelete {
			return nil
		}

		rec.Operation = models.OpDelete
		rec.SyncStatus = models.StatusPending
		rec.LastModified = s.now()
		rec.Revision++
		return s.save(ctx, tx, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s[%s]: %w", s.kind, id, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Record, error) {
	rec, err := s.get(ctx, s.db, id)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to get %s[%s]: %w", s.kind, id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Record, error) {
	recs, err := s.query(ctx, s.db, `ORDER BY last_modified, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all %s: %w", s.kind, err)
	}
	return recs, nil
}

func (s *SQLiteStore) ListVisible(ctx context.Context) ([]models.Fields, error) {
	recs, err := s.query(ctx, s.db, `WHERE operation <> ? ORDER BY last_modified, id`, models.OpDelete)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.kind, err)
	}
	out := make([]models.Fields, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Payload())
	}
	return out, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]models.Record, error) {
	recs, err := s.query(ctx, s.db, `WHERE sync_status IN (?, ?) ORDER BY last_modified, id`,
		models.StatusPending, models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending %s: %w", s.kind, err)
	}
	return recs, nil
}

func (s *SQLiteStore) ListFailed(ctx context.Context) ([]models.Record, error) {
	recs, err := s.query(ctx, s.db, `WHERE sync_status = ? ORDER BY last_modified, id`, models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed %s: %w", s.kind, err)
	}
	return recs, nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, rec models.Record) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := s.get(ctx, tx, rec.ID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if cur.Revision != rec.Revision {
			// The remote row now exists; later edits are owed as an update.
			if rec.Operation == models.OpCreate && cur.Operation == models.OpCreate {
				cur.Operation = models.OpUpdate
				cur.SyncStatus = models.StatusPending
				return s.save(ctx, tx, cur)
			}
			return nil
		}

		if cur.Operation == models.OpDelete {
			return s.purge(ctx, tx, rec.ID)
		}
		cur.SyncStatus = models.StatusSynced
		return s.save(ctx, tx, cur)
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s[%s] synced: %w", s.kind, rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id string) error {
	q := fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE id = ? AND sync_status <> ?`, s.kind)
	if _, err := s.db.ExecContext(ctx, q, models.StatusFailed, id, models.StatusSynced); err != nil {
		return fmt.Errorf("failed to mark %s[%s] failed: %w", s.kind, id, err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, payloads []models.Fields, status models.SyncStatus) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.kind)); err != nil {
			return err
		}
		now := s.now()
		for _, p := range payloads {
			id := p.ID()
			if id == "" {
				id = s.newID()
			}
			fields := p.StripMeta()
			delete(fields, models.FieldID)
			rec := models.Record{
				ID:     id,
				Kind:   s.kind,
				Fields: fields,
				SyncMeta: models.SyncMeta{
					SyncStatus:   status,
					Operation:    models.OpCreate,
					LastModified: now,
					Revision:     1,
				},
			}
			if err := s.insert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.kind, err)
	}
	return nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (models.Counts, error) {
	q := fmt.Sprintf(`SELECT
		COALESCE(SUM(sync_status = 'pending'), 0),
		COALESCE(SUM(sync_status = 'synced'), 0),
		COALESCE(SUM(sync_status = 'failed'), 0),
		COALESCE(SUM(operation = 'delete'), 0)
		FROM %s`, s.kind)

	var c models.Counts
	if err := s.db.QueryRowContext(ctx, q).Scan(&c.Pending, &c.Synced, &c.Failed, &c.Deleted); err != nil {
		return models.Counts{}, fmt.Errorf("failed to count %s: %w", s.kind, err)
	}
	return c, nil
}

func (s *SQLiteStore) insert(ctx context.Context, db dbx.DBTX, rec models.Record) error {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)`, s.kind, columns)
	_, err = db.ExecContext(ctx, q, rec.ID, string(data), rec.SyncStatus, rec.Operation,
		rec.LastModified.UnixNano(), rec.Revision)
	return err
}

func (s *SQLiteStore) save(ctx context.Context, db dbx.DBTX, rec models.Record) error {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	q := fmt.Sprintf(`UPDATE %s SET data = ?, sync_status = ?, operation = ?, last_modified = ?, revision = ?
		WHERE id = ?`, s.kind)
	n, err := dbx.ExecAffected(ctx, db, q, string(data), rec.SyncStatus, rec.Operation,
		rec.LastModified.UnixNano(), rec.Revision, rec.ID)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
	return nil
}

func (s *SQLiteStore) purge(ctx context.Context, db dbx.DBTX, id string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.kind), id)
	return err
}

func (s *SQLiteStore) get(ctx context.Context, db dbx.DBTX, id string) (models.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, columns, s.kind)
	rec, err := s.scan(db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, common.ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) query(ctx context.Context, db dbx.DBTX, where string, args ...any) ([]models.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s %s`, columns, s.kind, where)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scan(row scanner) (models.Record, error) {
	var (
		rec  models.Record
		data string
		ts   int64
	)
	if err := row.Scan(&rec.ID, &data, &rec.SyncStatus, &rec.Operation, &ts, &rec.Revision); err != nil {
		return models.Record{}, err
	}
	rec.Kind = s.kind
	rec.LastModified = time.Unix(0, ts).UTC()
	if err := json.Unmarshal([]byte(data), &rec.Fields); err != nil {
		return models.Record{}, fmt.Errorf("decode payload of %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = models.Fields{}
	}
	return rec, nil
}
