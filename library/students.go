package library

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

const tableStudent = "student"

// studentColumns left-joins the class so a deleted class shows up as a nil name
// instead of hiding the student.
func studentColumns() *goqu.SelectDataset {
	return dialect.From(goqu.T(tableStudent).As("s")).
		LeftJoin(goqu.T(tableClass).As("c"), goqu.On(goqu.I("s.class_id").Eq(goqu.I("c.id")))).
		Select(
			goqu.I("s.id"),
			goqu.I("s.name"),
			goqu.I("s.class_id"),
			goqu.I("c.name").As("class_name"),
		).
		Order(goqu.I("s.id").Asc())
}

// getOrCreateStudent treats (name, class) as the identity of a student.
func getOrCreateStudent(ctx context.Context, tx *sqlx.Tx, name string, classID int64) (id int64, created bool, err error) {
	err = tx.GetContext(ctx, &id,
		`SELECT id FROM student WHERE name=? AND class_id=? ORDER BY id LIMIT 1`, name, classID)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO student(name,class_id) VALUES(?,?)`, name, classID)
	if err != nil {
		return 0, false, err
	}
	id, err = res.LastInsertId()
	return id, err == nil, err
}

// GetOrCreateStudent returns the student with this name in this class, creating
// one if none exists.
func (d *Database) GetOrCreateStudent(ctx context.Context, name string, classID int64) (int64, error) {
	var (
		id      int64
		created bool
	)
	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, created, err = getOrCreateStudent(ctx, tx, name, classID)
		return err
	})
	if err != nil {
		return 0, classify("get or create student", err)
	}
	if created {
		d.logMutation(ctx, "create student", id)
	}
	return id, nil
}

// CreateStudent always inserts, even when a same-named student already exists
// in the class.
func (d *Database) CreateStudent(ctx context.Context, name string, classID int64) (int64, error) {
	res, err := d.addStudentStmt.ExecContext(ctx, name, classID)
	if err != nil {
		return 0, classify("create student", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("create student", err)
	}
	d.logMutation(ctx, "create student", id)
	return id, nil
}

func (d *Database) GetStudent(ctx context.Context, id int64) (*Student, error) {
	var s Student
	if err := d.getInto(ctx, &s, studentColumns().Where(goqu.I("s.id").Eq(id))); err != nil {
		return nil, classify("get student", err)
	}
	return &s, nil
}

// ListStudents returns all students with their class names, ordered by id.
func (d *Database) ListStudents(ctx context.Context) ([]*Student, error) {
	var students []*Student
	if err := d.selectInto(ctx, &students, studentColumns()); err != nil {
		return nil, classify("list students", err)
	}
	return students, nil
}

// SearchStudents matches keyword anywhere in the student name, ignoring case.
func (d *Database) SearchStudents(ctx context.Context, keyword string) ([]*Student, error) {
	if keyword == "" {
		return d.ListStudents(ctx)
	}
	var students []*Student
	ds := studentColumns().Where(goqu.I("s.name").Like(containsPattern(keyword)))
	if err := d.selectInto(ctx, &students, ds); err != nil {
		return nil, classify("search students", err)
	}
	return students, nil
}

// DeleteStudent removes the student. Loans that reference it are kept.
func (d *Database) DeleteStudent(ctx context.Context, id int64) error {
	if err := d.deleteWhere(ctx, tableStudent, goqu.Ex{"id": id}); err != nil {
		return classify("delete student", err)
	}
	d.logMutation(ctx, "delete student", id)
	return nil
}
