// Package reconciler drains the local mutation queue into the remote store.
//
// A Reconciler is built from an ordered list of adapters, one per entity
// kind, each pairing a local records.Repository with a gateway.Gateway. A
// pass visits the kinds in that order so referenced rows reach the remote
// store before the rows referencing them, and replays every queued record of
// a kind one at a time. A failing record is flagged and left queued for the
// next pass; it never stops the rest of the queue.
//
// At most one pass runs at a time. A trigger that arrives while a pass is
// running returns an empty successful Result immediately.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/schoolkeeper/internal/common"
	"github.com/dmitrijs2005/schoolkeeper/internal/logging"
)

// Adapter binds the local and remote sides of one entity kind.
type Adapter struct {
	Kind    models.Kind
	Store   records.Repository
	Gateway gateway.Gateway
}

// ActivityWriter appends to the remote activity feed.
type ActivityWriter interface {
	Create(ctx context.Context, e models.ActivityLog) (models.ActivityLog, error)
}

// KindResult holds the counters of one kind.
type KindResult struct {
	Synced int
	Failed int
	Errors int
}

// Result reports a pass. Errors counts transport and iteration faults; remote
// rejections only count as Failed.
type Result struct {
	Success bool
	Skipped bool
	Synced  int
	Failed  int
	Errors  int
	Kinds   map[models.Kind]KindResult
}

func (r *Result) add(kind models.Kind, kr KindResult) {
	r.Kinds[kind] = kr
	r.Synced += kr.Synced
	r.Failed += kr.Failed
	r.Errors += kr.Errors
}

type Reconciler struct {
	adapters []Adapter
	byKind   map[models.Kind]Adapter
	log      logging.Logger
	activity ActivityWriter
	meta     metadata.Repository
	metrics  *Metrics
	now      func() time.Time

	running atomic.Bool
}

type Option func(*Reconciler)

// WithActivityLog writes a "sync" entry to the remote feed after each pass
// that synced records.
func WithActivityLog(a ActivityWriter) Option {
	return func(r *Reconciler) { r.activity = a }
}

// WithMetadata persists the time of the last successful pass and refresh.
func WithMetadata(m metadata.Repository) Option {
	return func(r *Reconciler) { r.meta = m }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// New builds a reconciler visiting adapters in the given order.
func New(adapters []Adapter, log logging.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		adapters: adapters,
		byKind:   make(map[models.Kind]Adapter, len(adapters)),
		log:      log,
		now:      time.Now,
	}
	for _, a := range adapters {
		r.byKind[a.Kind] = a
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Running reports whether a pass is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

func newResult() Result {
	return Result{Kinds: map[models.Kind]KindResult{}}
}

func skipped() Result {
	return Result{Success: true, Skipped: true, Kinds: map[models.Kind]KindResult{}}
}

// TriggerSync runs one reconciliation pass.
func (r *Reconciler) TriggerSync(ctx context.Context) Result {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug(ctx, "sync already in progress, skipping")
		r.metrics.observeSkipped()
		return skipped()
	}
	defer r.running.Store(false)

	start := r.now()
	kinds := make([]KindResult, len(r.adapters))
	deletes := make([][]models.Record, len(r.adapters))
	for i, a := range r.adapters {
		deletes[i] = r.syncKind(ctx, a, &kinds[i])
	}
	// Deletes go children first so a parent row is never removed while a
	// queued child still references it.
	for i := len(r.adapters) - 1; i >= 0; i-- {
		r.replayBatch(ctx, r.adapters[i], deletes[i], &kinds[i])
	}

	res := newResult()
	for i, a := range r.adapters {
		res.add(a.Kind, kinds[i])
	}
	res.Success = res.Failed == 0

	r.metrics.observePass(res, r.now().Sub(start))
	r.log.Info(ctx, "sync pass finished",
		"synced", res.Synced, "failed", res.Failed, "errors", res.Errors, "duration", r.now().Sub(start))

	if res.Success && r.meta != nil {
		if err := r.meta.SetTime(ctx, metadata.KeyLastSyncAt, r.now()); err != nil {
			r.log.Warn(ctx, "failed to store last sync time", "error", err)
		}
	}
	if res.Synced > 0 {
		r.writeActivity(ctx, models.ActivityLog{
			Action:  "sync",
			Details: fmt.Sprintf("synced %d records, %d failed", res.Synced, res.Failed),
		})
	}
	return res
}

// syncKind lists the queue of a, replays creates and updates, and returns
// the queued deletes for the reverse sweep.
func (r *Reconciler) syncKind(ctx context.Context, a Adapter, kr *KindResult) (deletes []models.Record) {
	log := r.log.With("kind", a.Kind)

	defer func() {
		if p := recover(); p != nil {
			log.Error(ctx, "sync iteration panicked", "panic", p)
			kr.Failed++
			kr.Errors++
			deletes = nil
		}
	}()

	pending, err := a.Store.ListPending(ctx)
	if err != nil {
		log.Error(ctx, "failed to list pending records", "error", err)
		kr.Failed++
		kr.Errors++
		return nil
	}

	var upserts []models.Record
	for _, rec := range pending {
		if rec.Operation == models.OpDelete {
			deletes = append(deletes, rec)
			continue
		}
		upserts = append(upserts, rec)
	}
	r.replayBatch(ctx, a, upserts, kr)
	return deletes
}

// replayBatch replays recs in order. A panic outside the gateway call ends
// the batch and counts as one failure.
func (r *Reconciler) replayBatch(ctx context.Context, a Adapter, recs []models.Record, kr *KindResult) {
	log := r.log.With("kind", a.Kind)

	defer func() {
		if p := recover(); p != nil {
			log.Error(ctx, "sync iteration panicked", "panic", p)
			kr.Failed++
			kr.Errors++
		}
	}()

	for _, rec := range recs {
		r.syncOne(ctx, log, a, rec, kr)
	}
}

// syncOne replays rec and records the outcome in kr.
func (r *Reconciler) syncOne(ctx context.Context, log logging.Logger, a Adapter, rec models.Record, kr *KindResult) {
	err := replay(ctx, a.Gateway, rec)
	if err == nil {
		if err := a.Store.MarkSynced(ctx, rec); err != nil {
			log.Error(ctx, "failed to mark record synced", "id", rec.ID, "error", err)
			kr.Failed++
			kr.Errors++
			return
		}
		log.Debug(ctx, "record synced", "id", rec.ID, "operation", rec.Operation)
		kr.Synced++
		return
	}

	kr.Failed++
	if gateway.IsRejected(err) {
		log.Warn(ctx, "record rejected by remote store", "id", rec.ID, "operation", rec.Operation, "error", err)
	} else {
		log.Error(ctx, "record replay failed", "id", rec.ID, "operation", rec.Operation, "error", err)
		kr.Errors++
	}
	if err := a.Store.MarkFailed(ctx, rec.ID); err != nil {
		log.Error(ctx, "failed to mark record failed", "id", rec.ID, "error", err)
		kr.Errors++
	}
}

// replay sends the net operation of rec to the remote store. A panic in the
// gateway is returned as an error.
func replay(ctx context.Context, g gateway.Gateway, rec models.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during %s of %s: %v", rec.Operation, rec.ID, p)
		}
	}()

	switch rec.Operation {
	case models.OpCreate:
		_, err = g.Create(ctx, rec.Payload())
	case models.OpUpdate:
		err = g.Update(ctx, rec.ID, rec.Fields.StripMeta())
	case models.OpDelete:
		err = g.Delete(ctx, rec.ID)
	default:
		err = fmt.Errorf("unknown operation %q", rec.Operation)
	}
	return err
}

// SyncRecord replays a single queued record, used for write-through. It
// returns false without touching the record when a pass is running, when the
// record is already synced, or when the replay failed.
func (r *Reconciler) SyncRecord(ctx context.Context, kind models.Kind, id string) (bool, error) {
	a, ok := r.byKind[kind]
	if !ok {
		return false, fmt.Errorf("%w: %s", common.ErrUnknownKind, kind)
	}
	if !r.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer r.running.Store(false)

	rec, err := a.Store.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.SyncStatus == models.StatusSynced {
		return true, nil
	}

	var kr KindResult
	r.syncOne(ctx, r.log.With("kind", kind), a, rec, &kr)
	if kr.Synced == 1 {
		r.writeActivity(ctx, models.ActivityLog{
			Action:     string(rec.Operation),
			EntityType: string(kind),
			EntityID:   rec.ID,
		})
	}
	return kr.Synced == 1, nil
}

// Refresh replaces the local copy of every kind with a remote snapshot. Kinds
// that still have queued records are skipped so local edits are not lost.
func (r *Reconciler) Refresh(ctx context.Context) Result {
	if !r.running.CompareAndSwap(false, true) {
		return skipped()
	}
	defer r.running.Store(false)

	res := newResult()
	for _, a := range r.adapters {
		res.add(a.Kind, r.refreshKind(ctx, a))
	}
	res.Success = res.Failed == 0

	if res.Success && r.meta != nil {
		if err := r.meta.SetTime(ctx, metadata.KeyLastRefreshAt, r.now()); err != nil {
			r.log.Warn(ctx, "failed to store last refresh time", "error", err)
		}
	}
	r.log.Info(ctx, "refresh finished", "loaded", res.Synced, "failed", res.Failed)
	return res
}

func (r *Reconciler) refreshKind(ctx context.Context, a Adapter) KindResult {
	log := r.log.With("kind", a.Kind)

	pending, err := a.Store.ListPending(ctx)
	if err != nil {
		log.Error(ctx, "failed to list pending records", "error", err)
		return KindResult{Failed: 1, Errors: 1}
	}
	if len(pending) > 0 {
		log.Info(ctx, "refresh skipped, local changes are queued", "queued", len(pending))
		return KindResult{}
	}

	rows, err := a.Gateway.FetchAll(ctx)
	if err != nil {
		log.Error(ctx, "failed to fetch remote records", "error", err)
		return KindResult{Failed: 1, Errors: 1}
	}
	if err := a.Store.ReplaceAll(ctx, rows, models.StatusSynced); err != nil {
		log.Error(ctx, "failed to replace local records", "error", err)
		return KindResult{Failed: 1, Errors: 1}
	}
	return KindResult{Synced: len(rows)}
}

func (r *Reconciler) writeActivity(ctx context.Context, e models.ActivityLog) {
	if r.activity == nil {
		return
	}
	if _, err := r.activity.Create(ctx, e); err != nil {
		r.log.Warn(ctx, "failed to write activity log", "error", err)
	}
}
