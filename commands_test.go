package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/internal/backup"
	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

// execute runs the root command against dbPath and returns its output.
func execute(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{
		"--db", dbPath,
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--log-level", "error",
	}, args...))
	err := root.Execute()
	a.close()
	return out.String(), err
}

func TestOperatorAddAndLoanCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := execute(t, db, "rahasia\n", "operator", "add", "pustakawan")
	require.NoError(t, err)
	assert.Contains(t, out, "Added operator 'pustakawan'")

	mgr, err := library.NewLibraryManager(db)
	require.NoError(t, err)
	_, err = mgr.AddBook(context.Background(), library.BookRequest{Code: "K001", Title: "Matematika"})
	require.NoError(t, err)
	require.NoError(t, mgr.Close())

	out, err = execute(t, db, "rahasia\n", "loan", "-u", "pustakawan",
		"--student", "Budi", "--class", "11 IPA 1", "--book", "K001", "--date", "2025-01-10")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01-13")
	assert.Contains(t, out, "pustakawan")

	out, err = execute(t, db, "", "loans", "--active")
	require.NoError(t, err)
	assert.Contains(t, out, "Budi")

	out, err = execute(t, db, "", "return", "1", "-u", "pustakawan", "--password", "rahasia", "--date", "2025-01-11")
	require.NoError(t, err)
	assert.Contains(t, out, "Loan 1 marked as returned.")

	out, err = execute(t, db, "", "loans", "--status", "borrowed")
	require.NoError(t, err)
	assert.Contains(t, out, "No loans found.")
}

func TestLoanCommandRejectsBadInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, db, "", "operator", "add", "admin", "--password", "admin")
	require.NoError(t, err)

	_, err = execute(t, db, "", "loan", "-u", "admin", "--password", "wrong",
		"--student", "Budi", "--class", "11 IPA 1", "--book", "K001")
	assert.ErrorIs(t, err, library.ErrInvalidCredentials)

	_, err = execute(t, db, "", "loan", "-u", "admin", "--password", "admin",
		"--student", "Budi", "--class", "11 IPA 1", "--book", "K001", "--date", "10/01/2025")
	assert.ErrorIs(t, err, library.ErrValidation)

	_, err = execute(t, db, "", "loan", "-u", "admin", "--password", "admin",
		"--student", "Budi", "--class", "11 IPA 1", "--book", "K001")
	assert.ErrorIs(t, err, library.ErrNotFound)

	_, err = execute(t, db, "", "loans", "--status", "lost")
	assert.ErrorIs(t, err, library.ErrValidation)
}

func TestBackupCommandsNeedTarget(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("BACKUP_REMOTE_PATH", "")

	_, err := execute(t, db, "", "backup", "sync")
	assert.ErrorContains(t, err, "no remote path")

	_, err = execute(t, db, "", "backup", "restore", "--remote", "/root/backup/library.db")
	assert.ErrorContains(t, err, "--force")
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return strconv.Itoa(port)
}

func TestFailedRestoreKeepsLocalDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	live, err := library.NewLibraryManager(db)
	require.NoError(t, err)
	t.Cleanup(func() { live.Close() })
	_, err = live.AddBook(context.Background(), library.BookRequest{Code: "K001", Title: "Matematika"})
	require.NoError(t, err)
	_, err = os.Stat(db + "-wal")
	require.NoError(t, err)

	t.Setenv("BACKUP_HOST", "")
	t.Setenv("BACKUP_USER", "")
	_, err = execute(t, db, "", "backup", "restore", "--force", "--remote", "/nope/library.db")
	assert.ErrorIs(t, err, backup.ErrNotConfigured)

	t.Setenv("BACKUP_HOST", "127.0.0.1")
	t.Setenv("BACKUP_PORT", closedPort(t))
	t.Setenv("BACKUP_USER", "backup")
	t.Setenv("BACKUP_TIMEOUT", "2s")
	_, err = execute(t, db, "", "backup", "restore", "--force", "--remote", "/nope/library.db")
	assert.Error(t, err)

	_, err = os.Stat(db + "-wal")
	assert.NoError(t, err, "WAL must survive a failed restore")

	other, err := library.NewLibraryManager(db)
	require.NoError(t, err)
	defer other.Close()
	book, err := other.GetBookByCode(context.Background(), "K001")
	require.NoError(t, err)
	assert.Equal(t, "Matematika", book.Title)
}

func TestShellIsDefaultCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, db, "", "operator", "add", "admin", "--password", "admin")
	require.NoError(t, err)

	out, err := execute(t, db, "admin\nadmin\nexit\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as admin")
	assert.Contains(t, out, "Goodbye!")
}
