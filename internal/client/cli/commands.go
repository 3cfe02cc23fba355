package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/backup"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/reconciler"
)

const defaultActivityLimit = 20

var errUsage = errors.New("usage")

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}

func parseKind(s string) (models.Kind, error) {
	k, err := models.ParseKind(s)
	if err != nil {
		return "", err
	}
	if !k.Offline() {
		return "", fmt.Errorf("%s can only be read with the activity command", k)
	}
	return k, nil
}

// kindsArg returns the kind named in args, or every offline kind.
func kindsArg(args []string) ([]models.Kind, error) {
	if len(args) == 0 {
		return models.SyncOrder, nil
	}
	k, err := parseKind(args[0])
	if err != nil {
		return nil, err
	}
	return []models.Kind{k}, nil
}

func (a *App) fields(kind models.Kind, items []string) (models.Fields, error) {
	f, err := ParseAssignments(items)
	if err != nil {
		return nil, err
	}
	return models.Coerce(kind, f)
}

// Add creates a record. Without assignments on the command line the fields
// are read one per line.
func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("add <kind> [field=value ...]")
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	items := args[1:]
	if len(items) == 0 {
		items, err = ReadAssignments(a.scanner, fmt.Sprintf("Enter %s fields", kind), a.out)
		if err != nil {
			return err
		}
	}
	fields, err := a.fields(kind, items)
	if err != nil {
		return err
	}
	rec, err := a.service.Create(ctx, kind, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s %s (%s)\n", kind, rec.ID, rec.SyncStatus)
	return nil
}

func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("update <kind> <id> field=value ...")
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	fields, err := a.fields(kind, args[2:])
	if err != nil {
		return err
	}
	rec, err := a.service.Update(ctx, kind, args[1], fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated %s %s (%s)\n", kind, rec.ID, rec.SyncStatus)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("delete <kind> <id>")
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	if err := a.service.Delete(ctx, kind, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s %s\n", kind, args[1])
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("list <kind>")
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	rows, err := a.service.List(ctx, kind)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(a.out, "no %s\n", kind)
		return nil
	}
	for _, f := range rows {
		fmt.Fprintln(a.out, formatFields(f))
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("show <kind> <id>")
	}
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	rec, err := a.service.Get(ctx, kind, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, formatRecord(rec))
	return nil
}

func (a *App) Pending(ctx context.Context, args []string) error {
	return a.queue(ctx, args, "pending", a.service.Pending)
}

func (a *App) Failed(ctx context.Context, args []string) error {
	return a.queue(ctx, args, "failed", a.service.Failed)
}

func (a *App) queue(ctx context.Context, args []string, name string, fetch func(context.Context, models.Kind) ([]models.Record, error)) error {
	kinds, err := kindsArg(args)
	if err != nil {
		return err
	}
	total := 0
	for _, k := range kinds {
		recs, err := fetch(ctx, k)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Fprintln(a.out, formatRecord(r))
		}
		total += len(recs)
	}
	fmt.Fprintf(a.out, "%d %s\n", total, name)
	return nil
}

func (a *App) Sync(ctx context.Context, _ []string) error {
	res, err := a.service.Sync(ctx)
	if err != nil {
		return err
	}
	printResult(a, "sync", res)
	return nil
}

func (a *App) Refresh(ctx context.Context, _ []string) error {
	res, err := a.service.Refresh(ctx)
	if err != nil {
		return err
	}
	printResult(a, "refresh", res)
	return nil
}

func printResult(a *App, op string, res reconciler.Result) {
	if res.Skipped {
		fmt.Fprintf(a.out, "%s skipped: another pass is running\n", op)
		return
	}
	fmt.Fprintf(a.out, "%s: %d synced, %d failed, %d errors\n", op, res.Synced, res.Failed, res.Errors)
	for _, k := range models.SyncOrder {
		kr, ok := res.Kinds[k]
		if !ok || kr == (reconciler.KindResult{}) {
			continue
		}
		fmt.Fprintf(a.out, "  %-8s synced=%d failed=%d errors=%d\n", k, kr.Synced, kr.Failed, kr.Errors)
	}
}

func (a *App) Status(ctx context.Context, _ []string) error {
	st, err := a.service.Status(ctx)
	if err != nil {
		return err
	}
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	fmt.Fprintf(a.out, "mode: %s\n", mode)
	if st.WasOffline {
		fmt.Fprintln(a.out, "reconnected since the last sync")
	}
	if st.Syncing {
		fmt.Fprintln(a.out, "sync in progress")
	}
	fmt.Fprintf(a.out, "last sync: %s\n", formatTime(st.LastSyncAt))
	fmt.Fprintf(a.out, "last refresh: %s\n", formatTime(st.LastRefreshAt))
	for _, k := range models.SyncOrder {
		c := st.Kinds[k]
		fmt.Fprintf(a.out, "  %-8s pending=%d failed=%d synced=%d deleted=%d\n", k, c.Pending, c.Failed, c.Synced, c.Deleted)
	}
	return nil
}

func (a *App) Activity(ctx context.Context, args []string) error {
	limit := defaultActivityLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usage("activity [limit]")
		}
		limit = n
	}
	logs, err := a.service.Activity(ctx, limit)
	if err != nil {
		return err
	}
	for _, l := range logs {
		line := fmt.Sprintf("%s %s", l.CreatedAt.Local().Format(time.DateTime), l.Action)
		if l.EntityType != "" {
			line += " " + l.EntityType + " " + l.EntityID
		}
		if l.Details != "" {
			line += ": " + l.Details
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *App) Backup(ctx context.Context, _ []string) error {
	if a.exporter == nil {
		return backup.ErrNotConfigured
	}
	key, snap, err := a.exporter.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded %d records to %s\n", snap.Count(), key)
	return nil
}

// Migrate applies the remote schema. It needs the remote store.
func (a *App) Migrate(ctx context.Context, _ []string) error {
	if !a.monitor.Online() {
		return connectivity.ErrUnavailable
	}
	if err := a.migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "remote schema is up to date")
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

// formatFields renders fields as id first, then name=value sorted by name.
func formatFields(f models.Fields) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		if k != models.FieldID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	if id := f.ID(); id != "" {
		parts = append(parts, models.FieldID+"="+id)
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return strings.Join(parts, " ")
}

func formatRecord(r models.Record) string {
	return fmt.Sprintf("[%s %s %s rev=%d] %s", r.Kind, r.Operation, r.SyncStatus, r.Revision, formatFields(r.Payload()))
}
