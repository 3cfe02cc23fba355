package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context, args []string) error
	Update(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Pending(ctx context.Context, args []string) error
	Failed(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Refresh(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Activity(ctx context.Context, args []string) error
	Backup(ctx context.Context, args []string) error
	Migrate(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  add <kind> [field=value ...]          create a record (fields are prompted when omitted)
  update <kind> <id> field=value ...    change fields of a record
  delete <kind> <id>                    delete a record
  (l)ist <kind>                         list visible records
  show <kind> <id>                      show one record with its sync state
  pending [kind]                        list records waiting for sync
  failed [kind]                         list records the remote store refused
  sync                                  replay queued changes now
  refresh                               reload kinds with an empty queue from the remote store
  status                                connectivity and queue summary
  activity [limit]                      recent remote activity
  backup                                upload a snapshot of the local store to S3
  migrate                               apply the remote schema
  exit | quit                           leave the program
Kinds: students, teachers, subjects, exams, marks`

// runREPL starts a simple read–eval–print loop for the SchoolKeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens. Unknown
// commands are reported back to the user. The loop exits on scanner EOF or
// when the user types "exit" or "quit".
//
// The prompt shows the current status from statusFn; a nil statusFn disables
// the prompt (stdin is not a terminal).
//
// Errors returned by command handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if statusFn != nil {
			printlnFn(fmt.Sprintf("sk (%s) > ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "add":
			err = a.Add(ctx, args)
		case "update":
			err = a.Update(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "pending":
			err = a.Pending(ctx, args)
		case "failed":
			err = a.Failed(ctx, args)
		case "sync":
			err = a.Sync(ctx, args)
		case "refresh":
			err = a.Refresh(ctx, args)
		case "status":
			err = a.Status(ctx, args)
		case "activity":
			err = a.Activity(ctx, args)
		case "backup":
			err = a.Backup(ctx, args)
		case "migrate":
			err = a.Migrate(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("error:", err)
		}
	}
}
