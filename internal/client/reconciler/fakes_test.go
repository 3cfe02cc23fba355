package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/client"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/records"
	"github.com/stretchr/testify/require"
)

type call struct {
	Kind   models.Kind
	Op     models.Operation
	ID     string
	Fields models.Fields
}

// fakeRemote records gateway calls of every kind in one ordered log.
type fakeRemote struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]error
	panic map[string]bool
	rows  map[models.Kind][]models.Fields

	// when set, Create signals started and waits on release
	started chan struct{}
	release chan struct{}

	fetchErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		fail:  map[string]error{},
		panic: map[string]bool{},
		rows:  map[models.Kind][]models.Fields{},
	}
}

func (f *fakeRemote) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.panic[c.ID] {
		panic("gateway exploded")
	}
	return f.fail[c.ID]
}

func (f *fakeRemote) setFail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, id)
		return
	}
	f.fail[id] = err
}

func (f *fakeRemote) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type fakeGateway struct {
	kind   models.Kind
	remote *fakeRemote
}

func (g *fakeGateway) Kind() models.Kind { return g.kind }

func (g *fakeGateway) FetchAll(ctx context.Context) ([]models.Fields, error) {
	g.remote.mu.Lock()
	defer g.remote.mu.Unlock()
	if g.remote.fetchErr != nil {
		return nil, g.remote.fetchErr
	}
	return g.remote.rows[g.kind], nil
}

func (g *fakeGateway) Create(ctx context.Context, fields models.Fields) (models.Fields, error) {
	if g.remote.started != nil {
		g.remote.started <- struct{}{}
		<-g.remote.release
	}
	if err := g.remote.record(call{g.kind, models.OpCreate, fields.ID(), fields.Clone()}); err != nil {
		return nil, err
	}
	return fields, nil
}

func (g *fakeGateway) Update(ctx context.Context, id string, partial models.Fields) error {
	return g.remote.record(call{g.kind, models.OpUpdate, id, partial.Clone()})
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	return g.remote.record(call{g.kind, models.OpDelete, id, nil})
}

var (
	errRejected  = errors.Join(gateway.ErrRejected, errors.New("violates check constraint"))
	errTransport = errors.New("dial tcp 10.0.0.1:5432: connection refused")
)

// failingList wraps a store whose ListPending always fails.
type failingList struct {
	records.Repository
}

func (f failingList) ListPending(context.Context) ([]models.Record, error) {
	return nil, errors.New("disk I/O error")
}

type env struct {
	repos  *client.Repositories
	remote *fakeRemote
	stores map[models.Kind]records.Repository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repos, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return &env{repos: repos, remote: newFakeRemote(), stores: repos.Records}
}

func (e *env) adapters() []Adapter {
	out := make([]Adapter, 0, len(models.SyncOrder))
	for _, k := range models.SyncOrder {
		out = append(out, Adapter{Kind: k, Store: e.stores[k], Gateway: &fakeGateway{kind: k, remote: e.remote}})
	}
	return out
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []models.ActivityLog
	err     error
}

func (f *fakeActivity) Create(ctx context.Context, e models.ActivityLog) (models.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.ActivityLog{}, f.err
	}
	f.entries = append(f.entries, e)
	return e, nil
}
