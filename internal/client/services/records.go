// Package services contains application services for the SchoolKeeper client.
// RecordService is the single entry point the CLI uses to read and change
// school records: every change is written to the local store first and, when
// the remote store is reachable, replayed immediately.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/reconciler"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/schoolkeeper/internal/common"
	"github.com/dmitrijs2005/schoolkeeper/internal/logging"
	"github.com/go-playground/validator/v10"
)

// RecordService defines record operations for the CLI.
//
// Contract:
//   - Create, Update and Delete never fail because the remote store is
//     unreachable or refuses the change; the record simply stays queued.
//     Local storage faults and validation errors are returned.
//   - Sync, Refresh and Activity need the remote store and return
//     connectivity.ErrUnavailable while offline.
type RecordService interface {
	Create(ctx context.Context, kind models.Kind, fields models.Fields) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, partial models.Fields) (models.Record, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind) ([]models.Fields, error)
	Pending(ctx context.Context, kind models.Kind) ([]models.Record, error)
	Failed(ctx context.Context, kind models.Kind) ([]models.Record, error)
	Sync(ctx context.Context) (reconciler.Result, error)
	Refresh(ctx context.Context) (reconciler.Result, error)
	Activity(ctx context.Context, limit int) ([]models.ActivityLog, error)
	Status(ctx context.Context) (Status, error)
}

// Syncer replays queued records.
type Syncer interface {
	TriggerSync(ctx context.Context) reconciler.Result
	SyncRecord(ctx context.Context, kind models.Kind, id string) (bool, error)
	Refresh(ctx context.Context) reconciler.Result
	Running() bool
}

// Connectivity exposes the monitor state the service needs.
type Connectivity interface {
	Online() bool
	WasOffline() bool
	Acknowledge()
}

// ActivityReader reads the remote activity feed.
type ActivityReader interface {
	FetchAll(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

// Status summarises the client state.
type Status struct {
	Online        bool
	WasOffline    bool
	Syncing       bool
	LastSyncAt    time.Time
	LastRefreshAt time.Time
	Kinds         map[models.Kind]models.Counts
}

// Pending returns the number of queued records over all kinds.
func (s Status) Pending() int {
	n := 0
	for _, c := range s.Kinds {
		n += c.Pending + c.Failed
	}
	return n
}

type recordService struct {
	stores   map[models.Kind]records.Repository
	syncer   Syncer
	conn     Connectivity
	activity ActivityReader
	meta     metadata.Repository
	validate *validator.Validate
	log      logging.Logger
}

// NewRecordService wires the service. activity and meta may be nil.
func NewRecordService(
	stores map[models.Kind]records.Repository,
	syncer Syncer,
	conn Connectivity,
	activity ActivityReader,
	meta metadata.Repository,
	log logging.Logger,
) RecordService {
	return &recordService{
		stores:   stores,
		syncer:   syncer,
		conn:     conn,
		activity: activity,
		meta:     meta,
		validate: validator.New(),
		log:      log,
	}
}

func (s *recordService) store(kind models.Kind) (records.Repository, error) {
	st, ok := s.stores[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not stored locally", common.ErrUnknownKind, kind)
	}
	return st, nil
}

// check validates fields against the typed payload of kind.
func (s *recordService) check(kind models.Kind, fields models.Fields) error {
	v, err := models.Decode(kind, fields)
	if err != nil {
		return err
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", common.ErrValidation, describe(verrs))
		}
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		if fe.Param() != "" {
			msg += fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			msg += fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return msg
}

// writeThrough replays one record when online and returns its fresh state.
func (s *recordService) writeThrough(ctx context.Context, st records.Repository, rec models.Record) models.Record {
	if !s.conn.Online() {
		return rec
	}
	ok, err := s.syncer.SyncRecord(ctx, st.Kind(), rec.ID)
	if err != nil {
		s.log.Warn(ctx, "write-through failed, record stays queued", "kind", st.Kind(), "id", rec.ID, "error", err)
		return rec
	}
	if !ok {
		return rec
	}
	fresh, err := st.Get(ctx, rec.ID)
	if err != nil {
		return rec
	}
	return fresh
}

func (s *recordService) Create(ctx context.Context, kind models.Kind, fields models.Fields) (models.Record, error) {
	st, err := s.store(kind)
	if err != nil {
		return models.Record{}, err
	}
	if err := s.check(kind, fields); err != nil {
		return models.Record{}, err
	}

	rec, err := st.Add(ctx, fields)
	if err != nil {
		return models.Record{}, err
	}
	s.log.Debug(ctx, "record created", "kind", kind, "id", rec.ID)
	return s.writeThrough(ctx, st, rec), nil
}

func (s *recordService) Update(ctx context.Context, kind models.Kind, id string, partial models.Fields) (models.Record, error) {
	st, err := s.store(kind)
	if err != nil {
		return models.Record{}, err
	}

	cur, err := st.Get(ctx, id)
	if err != nil {
		return models.Record{}, err
	}
	if cur.Operation == models.OpDelete {
		return models.Record{}, fmt.Errorf("%s[%s]: %w", kind, id, common.ErrNotFound)
	}
	if err := s.check(kind, cur.Fields.Merge(partial)); err != nil {
		return models.Record{}, err
	}

	rec, err := st.Update(ctx, id, partial)
	if err != nil {
		return models.Record{}, err
	}
	return s.writeThrough(ctx, st, rec), nil
}

func (s *recordService) Delete(ctx context.Context, kind models.Kind, id string) error {
	st, err := s.store(kind)
	if err != nil {
		return err
	}
	if err := st.Delete(ctx, id); err != nil {
		return err
	}
	// A never-synced record is gone already; SyncRecord then finds nothing.
	s.writeThrough(ctx, st, models.Record{ID: id})
	return nil
}

func (s *recordService) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	st, err := s.store(kind)
	if err != nil {
		return models.Record{}, err
	}
	return st.Get(ctx, id)
}

func (s *recordService) List(ctx context.Context, kind models.Kind) ([]models.Fields, error) {
	st, err := s.store(kind)
	if err != nil {
		return nil, err
	}
	return st.ListVisible(ctx)
}

func (s *recordService) Pending(ctx context.Context, kind models.Kind) ([]models.Record, error) {
	st, err := s.store(kind)
	if err != nil {
		return nil, err
	}
	return st.ListPending(ctx)
}

func (s *recordService) Failed(ctx context.Context, kind models.Kind) ([]models.Record, error) {
	st, err := s.store(kind)
	if err != nil {
		return nil, err
	}
	return st.ListFailed(ctx)
}

// Sync runs a full pass and acknowledges the reconnection when it succeeds.
func (s *recordService) Sync(ctx context.Context) (reconciler.Result, error) {
	if !s.conn.Online() {
		return reconciler.Result{}, connectivity.ErrUnavailable
	}
	res := s.syncer.TriggerSync(ctx)
	if res.Success && !res.Skipped {
		s.conn.Acknowledge()
	}
	return res, nil
}

func (s *recordService) Refresh(ctx context.Context) (reconciler.Result, error) {
	if !s.conn.Online() {
		return reconciler.Result{}, connectivity.ErrUnavailable
	}
	return s.syncer.Refresh(ctx), nil
}

func (s *recordService) Activity(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if s.activity == nil {
		return nil, nil
	}
	if !s.conn.Online() {
		return nil, connectivity.ErrUnavailable
	}
	return s.activity.FetchAll(ctx, limit)
}

func (s *recordService) Status(ctx context.Context) (Status, error) {
	st := Status{
		Online:     s.conn.Online(),
		WasOffline: s.conn.WasOffline(),
		Syncing:    s.syncer.Running(),
		Kinds:      make(map[models.Kind]models.Counts, len(s.stores)),
	}
	for _, k := range models.SyncOrder {
		store, ok := s.stores[k]
		if !ok {
			continue
		}
		c, err := store.Counts(ctx)
		if err != nil {
			return Status{}, err
		}
		st.Kinds[k] = c
	}
	if s.meta != nil {
		var err error
		if st.LastSyncAt, err = s.meta.GetTime(ctx, metadata.KeyLastSyncAt); err != nil {
			return Status{}, err
		}
		if st.LastRefreshAt, err = s.meta.GetTime(ctx, metadata.KeyLastRefreshAt); err != nil {
			return Status{}, err
		}
	}
	return st, nil
}
