package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lib.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	_, err = db.CreateClass(context.Background(), "10 IPS 2")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	classes, err := db.ListClasses(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "10 IPS 2", classes[0].Name)
}

func TestGetOrCreateClass(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	first, err := db.GetOrCreateClass(ctx, "11 IPA 1")
	require.NoError(t, err)
	second, err := db.GetOrCreateClass(ctx, "11 IPA 1")
	require.NoError(t, err)
	other, err := db.GetOrCreateClass(ctx, "11 IPA 2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)

	classes, err := db.ListClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestCreateClassWithTakenIDIsDuplicate(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateClassWithID(ctx, 7, "12 IPA 3"))
	err := db.CreateClassWithID(ctx, 7, "12 IPA 4")
	assert.ErrorIs(t, err, ErrDuplicate)

	c, err := db.GetClass(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "12 IPA 3", c.Name)
}

func TestGetOrCreateStudentDeduplicates(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	classID, err := db.GetOrCreateClass(ctx, "11 IPA 1")
	require.NoError(t, err)

	first, err := db.GetOrCreateStudent(ctx, "Ani", classID)
	require.NoError(t, err)
	second, err := db.GetOrCreateStudent(ctx, "Ani", classID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	students, err := db.SearchStudents(ctx, "Ani")
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestCreateStudentAllowsDuplicates(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	classID, _ := db.CreateClass(ctx, "11 IPA 1")

	a, err := db.CreateStudent(ctx, "Budi", classID)
	require.NoError(t, err)
	b, err := db.CreateStudent(ctx, "Budi", classID)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// The same name in another class is another student.
	otherClass, _ := db.CreateClass(ctx, "11 IPA 2")
	c, err := db.GetOrCreateStudent(ctx, "Budi", otherClass)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGetOrCreateBookOverwritesTitle(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	first, err := db.GetOrCreateBook(ctx, "B001", "X")
	require.NoError(t, err)
	second, err := db.GetOrCreateBook(ctx, "B001", "Y")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	b, err := db.GetBookByCode(ctx, "B001")
	require.NoError(t, err)
	assert.Equal(t, "Y", b.Title)

	books, err := db.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestCreateBookDuplicateCode(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	_, err := db.CreateBook(ctx, "K001", "Matematika")
	require.NoError(t, err)
	_, err = db.CreateBook(ctx, "K001", "Fisika")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrStorage)
}

func TestGetBookByUnknownCode(t *testing.T) {
	db := tempDB(t)
	_, err := db.GetBookByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchBooks(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	for code, title := range map[string]string{
		"J-01":    "History of Java",
		"HIST-01": "Sejarah Indonesia",
		"M-01":    "Matematika",
	} {
		_, err := db.CreateBook(ctx, code, title)
		require.NoError(t, err)
	}

	tests := []struct {
		keyword string
		want    []string
	}{
		{"hist", []string{"J-01", "HIST-01"}},
		{"HIST", []string{"J-01", "HIST-01"}},
		{"mat", []string{"M-01"}},
		{"java", []string{"J-01"}},
		{"zzz", nil},
		{"", []string{"J-01", "HIST-01", "M-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			books, err := db.SearchBooks(ctx, tt.keyword)
			require.NoError(t, err)
			var codes []string
			for _, b := range books {
				codes = append(codes, b.Code)
			}
			assert.ElementsMatch(t, tt.want, codes)
		})
	}
}

func TestSearchClassesAndStudents(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	ipa, _ := db.CreateClass(ctx, "11 IPA 1")
	_, _ = db.CreateClass(ctx, "11 IPS 1")
	_, _ = db.CreateStudent(ctx, "Siti Aminah", ipa)
	_, _ = db.CreateStudent(ctx, "Budi", ipa)

	classes, err := db.SearchClasses(ctx, "ipa")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, ipa, classes[0].ID)

	students, err := db.SearchStudents(ctx, "amin")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Siti Aminah", students[0].Name)
	require.NotNil(t, students[0].ClassName)
	assert.Equal(t, "11 IPA 1", *students[0].ClassName)
}

func TestListOrderedByID(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	classID, _ := db.CreateClass(ctx, "X")
	for _, name := range []string{"Citra", "Ani", "Budi"} {
		_, err := db.CreateStudent(ctx, name, classID)
		require.NoError(t, err)
	}

	students, err := db.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 3)
	for i := 1; i < len(students); i++ {
		assert.Less(t, students[i-1].ID, students[i].ID)
	}
	assert.Equal(t, "Citra", students[0].Name)
}

func TestDeleteClassDoesNotCascade(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	classID, _ := db.CreateClass(ctx, "11 IPA 1")
	studentID, _ := db.CreateStudent(ctx, "Ani", classID)

	require.NoError(t, db.DeleteClass(ctx, classID))

	students, err := db.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, studentID, students[0].ID)
	assert.Nil(t, students[0].ClassName)
	require.NotNil(t, students[0].ClassID)
	assert.Equal(t, classID, *students[0].ClassID)
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	assert.ErrorIs(t, db.DeleteClass(ctx, 42), ErrNotFound)
	assert.ErrorIs(t, db.DeleteStudent(ctx, 42), ErrNotFound)
	assert.ErrorIs(t, db.DeleteBook(ctx, "NOPE"), ErrNotFound)
}

func TestDeleteBookByCode(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	_, _ = db.CreateBook(ctx, "K001", "Matematika")

	require.NoError(t, db.DeleteBook(ctx, "K001"))
	_, err := db.GetBookByCode(ctx, "K001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	id, err := db.AddOperator(ctx, "admin", "rahasia")
	require.NoError(t, err)

	sess, err := db.Authenticate(ctx, "admin", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, Session{OperatorID: id, Username: "admin"}, sess)

	_, err = db.Authenticate(ctx, "admin", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = db.AddOperator(ctx, "admin", "other")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSnapshot(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	_, _ = db.CreateBook(ctx, "K001", "Matematika")

	snap := filepath.Join(t.TempDir(), "snap.db")
	require.NoError(t, os.WriteFile(snap, []byte("stale"), 0o644))
	require.NoError(t, db.Snapshot(ctx, snap))

	copyDB, err := NewDatabase(snap)
	require.NoError(t, err)
	defer copyDB.Close()
	b, err := copyDB.GetBookByCode(ctx, "K001")
	require.NoError(t, err)
	assert.Equal(t, "Matematika", b.Title)
}

func TestGetOrCreateClassConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	first, err := NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	second, err := NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		db := first
		if i%2 == 1 {
			db = second
		}
		wg.Add(1)
		go func(i int, db *Database) {
			defer wg.Done()
			ids[i], errs[i] = db.GetOrCreateClass(context.Background(), "11 IPA 1")
		}(i, db)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	classes, err := first.ListClasses(context.Background())
	require.NoError(t, err)
	assert.Len(t, classes, 1)
}
