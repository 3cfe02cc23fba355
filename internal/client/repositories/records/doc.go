// Package records provides the client-side durable store of school records.
//
// # Overview
//
// One SQLiteStore serves one entity kind and keeps each record as a JSON
// payload next to its sync metadata: status (pending, synced, failed), the
// net operation still owed to the remote store (create, update, delete), the
// time of the last local mutation and a revision counter.
//
// # Operation collapse
//
// Updating a record that has never been synced keeps it in create state, and
// deleting such a record removes it outright. Deleting a synced record only
// marks it; the row stays until MarkSynced confirms the remote delete.
//
// # Concurrency
//
// The store expects a *sql.DB limited to a single open connection (see
// client.InitDatabase). Statements are serialized by the pool and
// multi-statement operations run inside dbx.WithTx.
//
// Typical usage
//
//	store, _ := records.NewSQLiteStore(db, models.KindStudent)
//	rec, _ := store.Add(ctx, models.Fields{"fullName": "Ann Lee"})
//	_, _ = store.Update(ctx, rec.ID, models.Fields{"className": "6A"})
//	queue, _ := store.ListPending(ctx)
package records
