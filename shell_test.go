package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

func newManager(t *testing.T) *library.LibraryManager {
	t.Helper()
	mgr, err := library.NewLibraryManager(filepath.Join(t.TempDir(), "shell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	_, err = mgr.AddOperator(context.Background(), "admin", "admin")
	require.NoError(t, err)
	return mgr
}

// runScript feeds lines to a fresh shell and returns everything it printed.
func runScript(t *testing.T, mgr *library.LibraryManager, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	newShell(context.Background(), in, &out, mgr).run()
	return out.String()
}

func TestShellLoanAndReturn(t *testing.T) {
	mgr := newManager(t)
	out := runScript(t, mgr,
		"admin", "admin",
		"add book", "K001", "Matematika",
		"loan", "Budi", "11 IPA 1", "K001", "2025-01-10",
		"active loans",
		"return", "1", "2025-01-12",
		"list loans", "returned",
		"exit",
	)

	assert.Contains(t, out, "Logged in as admin")
	assert.Contains(t, out, "Book: Matematika")
	assert.Contains(t, out, "Due date: 2025-01-13")
	assert.Contains(t, out, "Loan recorded.")
	assert.Contains(t, out, "borrowed OVERDUE")
	assert.Contains(t, out, "Loan 1 marked as returned.")
	assert.Contains(t, out, "2025-01-12")
	assert.Contains(t, out, "Goodbye!")

	loan, err := mgr.GetLoan(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, library.StatusReturned, loan.Status)
}

func TestShellLoginRetries(t *testing.T) {
	mgr := newManager(t)
	out := runScript(t, mgr,
		"admin", "wrong",
		"admin", "admin",
		"exit",
	)
	assert.Contains(t, out, "Login failed")
	assert.Contains(t, out, "Logged in as admin")

	out = runScript(t, mgr, "a", "b", "a", "b", "a", "b", "exit")
	assert.Contains(t, out, "Too many failed attempts.")
	assert.NotContains(t, out, "Goodbye!")
}

func TestShellLogoutDropsSession(t *testing.T) {
	mgr := newManager(t)
	out := runScript(t, mgr,
		"admin", "admin",
		"logout",
		"admin", "admin",
		"exit",
	)
	assert.Equal(t, 2, strings.Count(out, "Logged in as admin"))
	assert.Contains(t, out, "Logged out.")
}

func TestShellReportsErrors(t *testing.T) {
	mgr := newManager(t)
	out := runScript(t, mgr,
		"admin", "admin",
		"loan", "Budi", library.ClassPlaceholder, "K001", "",
		"loan", "Budi", "11 IPA 1", "NOPE", "",
		"return", "42", "",
		"find book", "NOPE",
		"add book", "K001", "Matematika",
		"add book", "K001", "Fisika",
		"delete class", "abc",
		"frobnicate",
		"exit",
	)

	assert.Contains(t, out, "class_name is required")
	assert.Contains(t, out, "not found")
	assert.Contains(t, out, "Error: loan 42 not found")
	assert.Contains(t, out, "No book with code NOPE")
	assert.Contains(t, out, "book code K001 is already used")
	assert.Contains(t, out, "Invalid ID: abc")
	assert.Contains(t, out, "Unknown command.")

	// The rejected loans created nothing.
	students, err := mgr.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestShellClassesStudentsBooks(t *testing.T) {
	mgr := newManager(t)
	out := runScript(t, mgr,
		"admin", "admin",
		"add class", "11 IPA 1",
		"add student", "Siti Aminah", "1",
		"search student", "amin",
		"list classes",
		"add book", "S-01", "Sejarah Indonesia",
		"search book", "sejarah",
		"search book", "zzz",
		"delete book", "S-01",
		"list books",
		"delete student", "1",
		"list students",
		"exit",
	)

	assert.Contains(t, out, "Added class '11 IPA 1' with ID 1")
	assert.Contains(t, out, "Added student 'Siti Aminah' with ID 1")
	assert.Contains(t, out, "Siti Aminah")
	assert.Contains(t, out, "Sejarah Indonesia")
	assert.Contains(t, out, "No books found matching 'zzz'.")
	assert.Contains(t, out, "Deleted book S-01")
	assert.Contains(t, out, "No books in library.")
	assert.Contains(t, out, "Deleted student 1")
	assert.Contains(t, out, "No students found.")
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Matematika", 20, "Matematika"},
		{"Sejarah Indonesia Modern", 10, "Sejarah..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateString(tt.in, tt.max))
	}
}
