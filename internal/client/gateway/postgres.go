package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/common"
	"github.com/dmitrijs2005/schoolkeeper/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to the remote database with the pgx driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// PostgresGateway implements Gateway over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresGateway struct {
	db    dbx.DBTX
	kind  models.Kind
	table Table
}

// NewPostgresGateway binds a gateway to kind.
func NewPostgresGateway(db dbx.DBTX, kind models.Kind) (*PostgresGateway, error) {
	t, ok := Tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no remote table for %s", common.ErrUnknownKind, kind)
	}
	return &PostgresGateway{db: db, kind: kind, table: t}, nil
}

// NewAll returns one gateway per kind in models.SyncOrder.
func NewAll(db dbx.DBTX) (map[models.Kind]Gateway, error) {
	out := make(map[models.Kind]Gateway, len(models.SyncOrder))
	for _, k := range models.SyncOrder {
		g, err := NewPostgresGateway(db, k)
		if err != nil {
			return nil, err
		}
		out[k] = g
	}
	return out, nil
}

func (g *PostgresGateway) Kind() models.Kind { return g.kind }

func (g *PostgresGateway) selectList() string {
	cols := make([]string, 0, len(g.table.Columns)+1)
	cols = append(cols, "id::text")
	for _, c := range g.table.Columns {
		cols = append(cols, c.selectExpr())
	}
	return strings.Join(cols, ", ")
}

// FetchAll returns every remote row of the kind.
func (g *PostgresGateway) FetchAll(ctx context.Context) ([]models.Fields, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, g.selectList(), g.table.Name)
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("fetch", g.kind, err)
	}
	defer rows.Close()

	var result []models.Fields
	for rows.Next() {
		f, err := g.scan(rows)
		if err != nil {
			return nil, classify("fetch", g.kind, err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch", g.kind, err)
	}
	return result, nil
}

// Create inserts a row under the client-assigned id and returns the stored
// payload. Keys without a remote column are dropped. Creating an existing id
// overwrites that row.
func (g *PostgresGateway) Create(ctx context.Context, fields models.Fields) (models.Fields, error) {
	id := fields.ID()
	if id == "" {
		return nil, fmt.Errorf("create %s: %w: missing id", g.kind, ErrRejected)
	}

	names := []string{"id"}
	marks := []string{"$1"}
	sets := []string{"updated_at = now()"}
	args := []any{id}
	for _, c := range g.table.Columns {
		v, ok := fields[c.Field]
		if !ok {
			continue
		}
		args = append(args, c.param(v))
		names = append(names, c.Name)
		marks = append(marks, fmt.Sprintf("$%d", len(args)))
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c.Name, c.Name))
	}

	// A create replayed after its local confirmation was lost finds its own
	// row; it overwrites it instead of failing on the primary key.
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s RETURNING %s`,
		g.table.Name, strings.Join(names, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "), g.selectList())

	out, err := g.scan(g.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, classify("create", g.kind, err)
	}
	return out, nil
}

// Update applies the mapped keys of partial. Updating a row that does not
// exist is a rejection.
func (g *PostgresGateway) Update(ctx context.Context, id string, partial models.Fields) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	for _, c := range g.table.Columns {
		v, ok := partial[c.Field]
		if !ok {
			continue
		}
		args = append(args, c.param(v))
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Name, len(args)))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, g.table.Name, strings.Join(sets, ", "))
	n, err := dbx.ExecAffected(ctx, g.db, query, args...)
	if err != nil {
		return classify("update", g.kind, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s[%s]: %w: row not found", g.kind, id, ErrRejected)
	}
	return nil
}

// Delete removes a row. A row that is already gone counts as deleted.
func (g *PostgresGateway) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, g.table.Name)
	if _, err := dbx.ExecAffected(ctx, g.db, query, id); err != nil {
		return classify("delete", g.kind, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (g *PostgresGateway) scan(row scanner) (models.Fields, error) {
	var id string
	vals := make([]any, len(g.table.Columns))
	dest := make([]any, 0, len(vals)+1)
	dest = append(dest, &id)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	out := models.Fields{models.FieldID: id}
	for i, c := range g.table.Columns {
		if vals[i] == nil {
			continue
		}
		out[c.Field] = c.value(vals[i])
	}
	return out, nil
}
