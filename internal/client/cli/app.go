package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/backup"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/client"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/config"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/reconciler"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/services"
	"github.com/dmitrijs2005/schoolkeeper/internal/filex"
	"github.com/dmitrijs2005/schoolkeeper/internal/logging"
	"golang.org/x/term"
)

// exporter uploads a snapshot of the local store.
type exporter interface {
	Export(ctx context.Context) (string, backup.Snapshot, error)
}

// monitor is the part of connectivity.Monitor the App drives.
type monitor interface {
	Start(ctx context.Context) bool
	Run(ctx context.Context)
	Online() bool
	Reconnected() <-chan struct{}
}

type App struct {
	config   *config.Config
	service  services.RecordService
	monitor  monitor
	exporter exporter
	migrate  func(ctx context.Context) error
	metrics  *reconciler.Metrics
	log      logging.Logger
	scanner  *bufio.Scanner
	out      io.Writer
	closers  []func() error
}

// NewApp opens the local and remote stores and wires the services on top of
// them. The remote store does not have to be reachable.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.New(os.Stderr, c.LogLevel)

	path, err := filex.EnsureParentDir(c.LocalDBPath)
	if err != nil {
		return nil, err
	}
	repos, err := client.InitDatabase(ctx, path)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}
	app := &App{
		config:  c,
		log:     log,
		scanner: bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
	}
	app.closers = append(app.closers, repos.Close)

	remote, err := gateway.Open(ctx, c.RemoteDSN)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, remote.Close)
	app.migrate = func(ctx context.Context) error { return gateway.RunMigrations(ctx, remote) }

	gateways, err := gateway.NewAll(remote)
	if err != nil {
		app.Close()
		return nil, err
	}
	adapters := make([]reconciler.Adapter, 0, len(models.SyncOrder))
	stores := make([]records.Repository, 0, len(models.SyncOrder))
	for _, k := range models.SyncOrder {
		adapters = append(adapters, reconciler.Adapter{Kind: k, Store: repos.Records[k], Gateway: gateways[k]})
		stores = append(stores, repos.Records[k])
	}

	activity := gateway.NewActivityLogs(remote)
	app.metrics = reconciler.NewMetrics()
	syncer := reconciler.New(adapters, log,
		reconciler.WithActivityLog(activity),
		reconciler.WithMetadata(repos.Metadata),
		reconciler.WithMetrics(app.metrics),
	)

	prober, err := app.prober(remote)
	if err != nil {
		app.Close()
		return nil, err
	}
	mon := connectivity.NewMonitor(prober, c.OnlineCheckInterval, c.ProbeTimeout, log)
	app.monitor = mon

	app.service = services.NewRecordService(repos.Records, syncer, mon, activity, repos.Metadata, log)

	if bc := c.Backup(); bc.Bucket != "" {
		s3c, err := backup.NewS3Client(ctx, bc)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.exporter = backup.NewExporter(stores, s3c, bc.Bucket)
	}

	return app, nil
}

// prober picks the gRPC health endpoint when one is configured and pings the
// remote database otherwise.
func (a *App) prober(remote *sql.DB) (connectivity.Prober, error) {
	if a.config.HealthEndpointAddr == "" {
		return connectivity.NewSQLProber(remote), nil
	}
	p, err := connectivity.NewGRPCHealthProber(a.config.HealthEndpointAddr, "")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run starts the background watchers and blocks in the REPL until the user
// exits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to SchoolKeeper CLI (type 'help' for commands)")

	if !a.monitor.Start(ctx) {
		fmt.Fprintln(a.out, "Remote store unreachable, working offline")
	}
	go a.monitor.Run(ctx)
	go a.watchReconnects(ctx)

	if a.config.MetricsAddr != "" {
		srv := a.serveMetrics(ctx)
		defer srv.Close()
	}

	statusFn := a.prompt
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		statusFn = nil
	}
	runREPL(ctx, a, statusFn, a.scanner)
}

// watchReconnects runs a sync pass each time the monitor reports a
// reconnection, when AutoSync is on.
func (a *App) watchReconnects(ctx context.Context) {
	for {
		select {
		case <-a.monitor.Reconnected():
			if !a.config.AutoSync {
				continue
			}
			res, err := a.service.Sync(ctx)
			if err != nil {
				a.log.Warn(ctx, "automatic sync failed", "error", err)
				continue
			}
			a.log.Info(ctx, "automatic sync finished", "synced", res.Synced, "failed", res.Failed, "errors", res.Errors)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(ctx, "metrics server stopped", "error", err)
		}
	}()
	a.log.Info(ctx, "serving metrics", "addr", a.config.MetricsAddr)
	return srv
}

// prompt renders the connectivity mode and the size of the queue.
func (a *App) prompt() string {
	mode := "offline"
	if a.monitor.Online() {
		mode = "online"
	}
	st, err := a.service.Status(context.Background())
	if err != nil || st.Pending() == 0 {
		return mode
	}
	return fmt.Sprintf("%s, %d queued", mode, st.Pending())
}
