package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/schoolkeeper/internal/client/repositories/records"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the local stores opened on one SQLite database.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Records  map[models.Kind]records.Repository
}

// Close closes the underlying database.
func (r *Repositories) Close() error {
	return r.DB.Close()
}

// RunMigrations applies the embedded local schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply local migrations: %w", err)
	}
	return nil
}

// InitDatabase opens (or creates) the SQLite file at dsn, migrates it and
// binds one record store per offline-capable kind.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Store transactions rely on a single connection; see dbx.WithTx.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	repos := &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Records:  make(map[models.Kind]records.Repository, len(models.SyncOrder)),
	}
	for _, k := range models.SyncOrder {
		s, err := records.NewSQLiteStore(db, k)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		repos.Records[k] = s
	}
	return repos, nil
}
