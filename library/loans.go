package library

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

const tableLoan = "loan"

// LoanPeriodDays is how long a book may be kept. It is the same for every book
// and every student.
const LoanPeriodDays = 3

// DueDate is the day a loan made on loanDate must be returned.
func DueDate(loanDate Date) Date {
	return loanDate.AddDays(LoanPeriodDays)
}

// loanColumns left-joins the display names; a deleted student or book leaves
// the loan visible with nil names.
func loanColumns() *goqu.SelectDataset {
	return dialect.From(goqu.T(tableLoan).As("l")).
		LeftJoin(goqu.T(tableStudent).As("s"), goqu.On(goqu.I("l.student_id").Eq(goqu.I("s.id")))).
		LeftJoin(goqu.T(tableClass).As("c"), goqu.On(goqu.I("s.class_id").Eq(goqu.I("c.id")))).
		LeftJoin(goqu.T(tableBook).As("b"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		Select(
			goqu.I("l.id"),
			goqu.I("l.student_id"),
			goqu.I("l.book_id"),
			goqu.I("l.loan_date"),
			goqu.I("l.due_date"),
			goqu.I("l.return_date"),
			goqu.I("l.status"),
			goqu.COALESCE(goqu.I("l.admin_id"), 0).As("admin_id"),
			goqu.I("s.name").As("student_name"),
			goqu.I("c.name").As("class_name"),
			goqu.I("b.code").As("book_code"),
			goqu.I("b.title").As("book_title"),
		)
}

// NewLoan is a validated loan ready to be stored.
type NewLoan struct {
	StudentName string
	ClassName   string
	BookCode    string
	LoanDate    Date
}

// CreateLoan resolves the class and student (creating them when new), requires
// the book to exist, and inserts the loan with its due date. Everything happens
// in one transaction, so a failure leaves no half-created class or student.
func (d *Database) CreateLoan(ctx context.Context, operatorID int64, nl NewLoan) (*LoanReceipt, error) {
	receipt := &LoanReceipt{
		StudentName: nl.StudentName,
		ClassName:   nl.ClassName,
		BookCode:    nl.BookCode,
		LoanDate:    nl.LoanDate,
		DueDate:     DueDate(nl.LoanDate),
	}

	var classID, studentID int64
	var newClass, newStudent bool
	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		classID, newClass, err = getOrCreateClass(ctx, tx, nl.ClassName)
		if err != nil {
			return fmt.Errorf("resolve class: %w", err)
		}
		studentID, newStudent, err = getOrCreateStudent(ctx, tx, nl.StudentName, classID)
		if err != nil {
			return fmt.Errorf("resolve student: %w", err)
		}
		book, err := bookByCode(ctx, tx, nl.BookCode)
		if err != nil {
			return fmt.Errorf("book %s: %w", nl.BookCode, err)
		}
		receipt.BookTitle = book.Title

		res, err := tx.ExecContext(ctx,
			`INSERT INTO loan(student_id,book_id,loan_date,due_date,status,admin_id) VALUES(?,?,?,?,?,?)`,
			studentID, book.ID, receipt.LoanDate, receipt.DueDate, StatusBorrowed, operatorID)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		receipt.LoanID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, classify("create loan", err)
	}
	if newClass {
		d.logMutation(ctx, "create class", classID)
	}
	if newStudent {
		d.logMutation(ctx, "create student", studentID)
	}
	d.logMutation(ctx, "create loan", receipt.LoanID)
	return receipt, nil
}

// ReturnLoan marks the loan returned on returnDate. The current status is not
// checked: returning a returned loan just moves its return date.
func (d *Database) ReturnLoan(ctx context.Context, loanID int64, returnDate Date) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE loan SET return_date=?, status=? WHERE id=?`, returnDate, StatusReturned, loanID)
	if err != nil {
		return classify("return loan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("return loan", err)
	}
	if n == 0 {
		return classify(fmt.Sprintf("return loan %d", loanID), ErrNotFound)
	}
	d.logMutation(ctx, "return loan", loanID)
	return nil
}

func (d *Database) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	var l Loan
	if err := d.getInto(ctx, &l, loanColumns().Where(goqu.I("l.id").Eq(id))); err != nil {
		return nil, classify(fmt.Sprintf("get loan %d", id), err)
	}
	return &l, nil
}

// ListLoans returns loans newest first, optionally restricted to one status.
func (d *Database) ListLoans(ctx context.Context, status LoanStatus) ([]*Loan, error) {
	ds := loanColumns().Order(goqu.I("l.id").Desc())
	if status != StatusAll && status != "" {
		ds = ds.Where(goqu.I("l.status").Eq(string(status)))
	}
	var loans []*Loan
	if err := d.selectInto(ctx, &loans, ds); err != nil {
		return nil, classify("list loans", err)
	}
	return loans, nil
}

// ListActiveLoans returns the loans still out, newest first.
func (d *Database) ListActiveLoans(ctx context.Context) ([]*Loan, error) {
	return d.ListLoans(ctx, StatusBorrowed)
}
