package library

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

const tableBook = "book"

func bookColumns() *goqu.SelectDataset {
	return dialect.From(tableBook).Select("id", "code", "title").Order(goqu.C("id").Asc())
}

// upsertBookSQL keys books on code. An existing row keeps its id and takes the
// new title; there is no history of earlier titles.
const upsertBookSQL = `INSERT INTO book(code,title) VALUES(?,?)
    ON CONFLICT(code) DO UPDATE SET title=excluded.title
    RETURNING id`

// GetOrCreateBook returns the id of the book with this code, inserting it or
// overwriting its title with title.
func (d *Database) GetOrCreateBook(ctx context.Context, code, title string) (int64, error) {
	var id int64
	if err := d.db.GetContext(ctx, &id, upsertBookSQL, code, title); err != nil {
		return 0, classify("get or create book", err)
	}
	d.logMutation(ctx, "upsert book", id)
	return id, nil
}

// CreateBook inserts a book. A code that is already taken yields ErrDuplicate.
func (d *Database) CreateBook(ctx context.Context, code, title string) (int64, error) {
	res, err := d.addBookStmt.ExecContext(ctx, code, title)
	if err != nil {
		return 0, classify("create book", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("create book", err)
	}
	d.logMutation(ctx, "create book", id)
	return id, nil
}

func bookByCode(ctx context.Context, q sqlx.QueryerContext, code string) (*Book, error) {
	var b Book
	if err := sqlx.GetContext(ctx, q, &b, `SELECT id,code,title FROM book WHERE code=?`, code); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookByCode looks a book up by its code.
func (d *Database) GetBookByCode(ctx context.Context, code string) (*Book, error) {
	b, err := bookByCode(ctx, d.db, code)
	if err != nil {
		return nil, classify("get book "+code, err)
	}
	return b, nil
}

// ListBooks returns all books ordered by id.
func (d *Database) ListBooks(ctx context.Context) ([]*Book, error) {
	var books []*Book
	if err := d.selectInto(ctx, &books, bookColumns()); err != nil {
		return nil, classify("list books", err)
	}
	return books, nil
}

// SearchBooks matches keyword anywhere in the title or the code, ignoring case.
func (d *Database) SearchBooks(ctx context.Context, keyword string) ([]*Book, error) {
	if keyword == "" {
		return d.ListBooks(ctx)
	}
	pattern := containsPattern(keyword)
	ds := bookColumns().Where(goqu.Or(
		goqu.C("title").Like(pattern),
		goqu.C("code").Like(pattern),
	))
	var books []*Book
	if err := d.selectInto(ctx, &books, ds); err != nil {
		return nil, classify("search books", err)
	}
	return books, nil
}

// DeleteBook removes the book with this code. Loans that reference it are kept.
func (d *Database) DeleteBook(ctx context.Context, code string) error {
	if err := d.deleteWhere(ctx, tableBook, goqu.Ex{"code": code}); err != nil {
		return classify("delete book "+code, err)
	}
	d.logger.Info(logMsgMutation, logAttrOp, "delete book", "code", code)
	return nil
}
