package library

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

const tableClass = "class"

func classColumns() *goqu.SelectDataset {
	return dialect.From(tableClass).Select("id", "name").Order(goqu.C("id").Asc())
}

// getOrCreateClass resolves a class by name inside tx, inserting it when absent.
// Pre-existing duplicate names resolve to the oldest row. created reports an
// insert.
func getOrCreateClass(ctx context.Context, tx *sqlx.Tx, name string) (id int64, created bool, err error) {
	err = tx.GetContext(ctx, &id, `SELECT id FROM class WHERE name=? ORDER BY id LIMIT 1`, name)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO class(name) VALUES(?)`, name)
	if err != nil {
		return 0, false, err
	}
	id, err = res.LastInsertId()
	return id, err == nil, err
}

// GetOrCreateClass returns the id of the class called name, creating it first
// if needed.
func (d *Database) GetOrCreateClass(ctx context.Context, name string) (int64, error) {
	var (
		id      int64
		created bool
	)
	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, created, err = getOrCreateClass(ctx, tx, name)
		return err
	})
	if err != nil {
		return 0, classify("get or create class", err)
	}
	if created {
		d.logMutation(ctx, "create class", id)
	}
	return id, nil
}

// CreateClass inserts a class unconditionally.
func (d *Database) CreateClass(ctx context.Context, name string) (int64, error) {
	res, err := d.addClassStmt.ExecContext(ctx, name)
	if err != nil {
		return 0, classify("create class", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("create class", err)
	}
	d.logMutation(ctx, "create class", id)
	return id, nil
}

// CreateClassWithID inserts a class under an operator-chosen id. A taken id is
// reported as ErrDuplicate.
func (d *Database) CreateClassWithID(ctx context.Context, id int64, name string) error {
	if _, err := d.db.ExecContext(ctx, `INSERT INTO class(id,name) VALUES(?,?)`, id, name); err != nil {
		return classify("create class", err)
	}
	d.logMutation(ctx, "create class", id)
	return nil
}

func (d *Database) GetClass(ctx context.Context, id int64) (*Class, error) {
	var c Class
	if err := d.getInto(ctx, &c, classColumns().Where(goqu.C("id").Eq(id))); err != nil {
		return nil, classify("get class", err)
	}
	return &c, nil
}

// ListClasses returns all classes ordered by id.
func (d *Database) ListClasses(ctx context.Context) ([]*Class, error) {
	var classes []*Class
	if err := d.selectInto(ctx, &classes, classColumns()); err != nil {
		return nil, classify("list classes", err)
	}
	return classes, nil
}

// SearchClasses matches keyword anywhere in the class name, ignoring case.
func (d *Database) SearchClasses(ctx context.Context, keyword string) ([]*Class, error) {
	if keyword == "" {
		return d.ListClasses(ctx)
	}
	var classes []*Class
	ds := classColumns().Where(goqu.C("name").Like(containsPattern(keyword)))
	if err := d.selectInto(ctx, &classes, ds); err != nil {
		return nil, classify("search classes", err)
	}
	return classes, nil
}

// DeleteClass removes the class only. Students keep their class_id.
func (d *Database) DeleteClass(ctx context.Context, id int64) error {
	if err := d.deleteWhere(ctx, tableClass, goqu.Ex{"id": id}); err != nil {
		return classify("delete class", err)
	}
	d.logMutation(ctx, "delete class", id)
	return nil
}
