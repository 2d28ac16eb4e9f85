package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

func newManager(t *testing.T) *library.LibraryManager {
	t.Helper()
	mgr, err := library.NewLibraryManager(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestImportBooks(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	csv := strings.Join([]string{
		"code,title",
		"K001,Matematika",
		`K002,"Sejarah, Jilid 1"`,
		"K003",
		",Tanpa Kode",
		"K001,Matematika Wajib",
	}, "\n")

	var out bytes.Buffer
	res, err := importBooks(ctx, mgr, strings.NewReader(csv), &out)
	require.NoError(t, err)
	assert.Equal(t, 3, res.imported)
	assert.Equal(t, 2, res.failed)
	assert.Contains(t, out.String(), "line 4: ERROR")
	assert.Contains(t, out.String(), "line 5: ERROR")

	books, err := mgr.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	// The later row for the same code overwrote the title.
	assert.Equal(t, "Matematika Wajib", books[0].Title)
	assert.Equal(t, "Sejarah, Jilid 1", books[1].Title)
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "books.csv")
	require.NoError(t, os.WriteFile(file, []byte("kode,judul\nB-01,Biologi\n"), 0o644))
	db := filepath.Join(dir, "library.db")

	cmd := newImportCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--db", db, "--env-file", filepath.Join(dir, "none.env"), "--reset", file})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Successfully imported: 1 books")
	assert.Contains(t, out.String(), "Biologi")

	cmd = newImportCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--db", db, filepath.Join(dir, "missing.csv")})
	assert.Error(t, cmd.Execute())
}
