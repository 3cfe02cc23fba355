// Package client bootstraps the local side of SchoolKeeper.
//
// InitDatabase opens the SQLite file, applies the embedded goose migrations
// (see internal/client/migrations) and returns a Repositories value holding
// the metadata store and one record store per offline-capable entity kind.
//
// The returned *sql.DB is limited to one open connection. Record stores run
// multi-statement operations in transactions on that connection, so callers
// must not hold rows open across store calls.
package client
