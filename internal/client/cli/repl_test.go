package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) Add(_ context.Context, a []string) error      { return f.record("add", a) }
func (f *fakeExec) Update(_ context.Context, a []string) error   { return f.record("update", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error   { return f.record("delete", a) }
func (f *fakeExec) List(_ context.Context, a []string) error     { return f.record("list", a) }
func (f *fakeExec) Show(_ context.Context, a []string) error     { return f.record("show", a) }
func (f *fakeExec) Pending(_ context.Context, a []string) error  { return f.record("pending", a) }
func (f *fakeExec) Failed(_ context.Context, a []string) error   { return f.record("failed", a) }
func (f *fakeExec) Sync(_ context.Context, a []string) error     { return f.record("sync", a) }
func (f *fakeExec) Refresh(_ context.Context, a []string) error  { return f.record("refresh", a) }
func (f *fakeExec) Status(_ context.Context, a []string) error   { return f.record("status", a) }
func (f *fakeExec) Activity(_ context.Context, a []string) error { return f.record("activity", a) }
func (f *fakeExec) Backup(_ context.Context, a []string) error   { return f.record("backup", a) }
func (f *fakeExec) Migrate(_ context.Context, a []string) error  { return f.record("migrate", a) }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var out []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"add students fullName=Asha",
		"update marks m1 grade=A",
		"delete exams e1",
		"l subjects",
		"list teachers",
		"show students s1",
		"pending",
		"failed marks",
		"",
		"sync",
		"refresh",
		"status",
		"activity 5",
		"backup",
		"migrate",
		"foobar",
		"exit",
		"sync",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "online" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"add", "update", "delete", "list", "list", "show", "pending", "failed",
		"sync", "refresh", "status", "activity", "backup", "migrate",
	}, exec.calls)
	assert.Equal(t, []string{"students", "fullName=Asha"}, exec.args[0])
	assert.Equal(t, []string{"marks", "m1", "grade=A"}, exec.args[1])
	assert.Empty(t, exec.args[6])

	assert.Contains(t, *out, "sk (online) > ")
	assert.Contains(t, *out, helpText)
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_PrintsHandlerErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{err: errors.New("boom")}
	runREPL(context.Background(), exec, nil, bufio.NewScanner(strings.NewReader("sync\nstatus\n")))

	assert.Equal(t, []string{"sync", "status"}, exec.calls)
	assert.Equal(t, []string{"error: boom", "error: boom"}, *out, "no prompt without a status func")
}
