package library

// Class is a school class such as "11 IPA 1". Its name is the natural key used by
// the loan form, although the table does not enforce uniqueness.
type Class struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Student belongs to at most one class. ClassID and ClassName are nil when the
// student has no class or the referenced class was deleted.
type Student struct {
	ID        int64   `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	ClassID   *int64  `json:"class_id" db:"class_id"`
	ClassName *string `json:"class_name" db:"class_name"`
}

// Book is identified by operators through its code; ID is only the storage key.
type Book struct {
	ID    int64  `json:"id" db:"id"`
	Code  string `json:"code" db:"code"`
	Title string `json:"title" db:"title"`
}

// LoanStatus is the persisted state of a loan.
type LoanStatus string

const (
	StatusBorrowed LoanStatus = "borrowed"
	StatusReturned LoanStatus = "returned"

	// StatusAll is only a list filter and is never stored.
	StatusAll LoanStatus = "ALL"
)

// ParseLoanStatus accepts the list filter values used by both front ends.
// An empty string means StatusAll.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch LoanStatus(s) {
	case "", StatusAll, "all":
		return StatusAll, nil
	case StatusBorrowed, StatusReturned:
		return LoanStatus(s), nil
	}
	return "", validationErrorf("unknown loan status %q", s)
}

// Loan is a single borrowing event. The joined display columns are nil when the
// referenced student or book no longer exists.
type Loan struct {
	ID          int64      `json:"id" db:"id"`
	StudentID   int64      `json:"student_id" db:"student_id"`
	BookID      int64      `json:"book_id" db:"book_id"`
	LoanDate    Date       `json:"loan_date" db:"loan_date"`
	DueDate     Date       `json:"due_date" db:"due_date"`
	ReturnDate  *Date      `json:"return_date" db:"return_date"`
	Status      LoanStatus `json:"status" db:"status"`
	AdminID     int64      `json:"admin_id" db:"admin_id"`
	StudentName *string    `json:"student_name" db:"student_name"`
	ClassName   *string    `json:"class_name" db:"class_name"`
	BookCode    *string    `json:"book_code" db:"book_code"`
	BookTitle   *string    `json:"book_title" db:"book_title"`
}

// Overdue reports whether the loan is still out after its due date. It is a
// display-time derivation and never stored.
func (l *Loan) Overdue(today Date) bool {
	return l.Status == StatusBorrowed && today.After(l.DueDate)
}

// LoanReceipt is what an operator sees after recording a loan.
type LoanReceipt struct {
	LoanID      int64  `json:"loan_id"`
	StudentName string `json:"student_name"`
	ClassName   string `json:"class_name"`
	BookCode    string `json:"book_code"`
	BookTitle   string `json:"book_title"`
	LoanDate    Date   `json:"loan_date"`
	DueDate     Date   `json:"due_date"`
	Operator    string `json:"operator"`
}

// Operator is a librarian account. The password is compared verbatim.
type Operator struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
}
