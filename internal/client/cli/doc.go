// Package cli provides the interactive SchoolKeeper command-line client.
//
// It wires configuration, the local SQLite store, the remote gateways, the
// reconciler and the connectivity monitor, then runs a REPL over stdin.
// Every change is accepted locally first, so the REPL keeps working while the
// remote store is unreachable.
//
// Key features:
//   - add / update / delete / list / show records of any offline kind
//   - pending / failed queues per kind
//   - sync, refresh and status
//   - remote activity feed
//   - S3 backup of the local store
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
