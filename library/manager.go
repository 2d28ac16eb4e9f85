package library

import (
	"context"
	"strings"
)

// LibraryManager is a thin façade over the Database that both front ends share.
// It trims and validates operator input before it reaches storage.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the storage handle for tools that need it directly.
func (lm *LibraryManager) Database() *Database { return lm.db }

// ------------------ Operators ------------------

// Login checks credentials and returns the session for the operator. The
// password is compared exactly as given.
func (lm *LibraryManager) Login(ctx context.Context, username, password string) (Session, error) {
	creds := Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateStruct(creds); err != nil {
		return Session{}, err
	}
	return lm.db.Authenticate(ctx, creds.Username, creds.Password)
}

func (lm *LibraryManager) AddOperator(ctx context.Context, username, password string) (int64, error) {
	creds := Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateStruct(creds); err != nil {
		return 0, err
	}
	return lm.db.AddOperator(ctx, creds.Username, creds.Password)
}

// ------------------ Classes ------------------

func (lm *LibraryManager) GetOrCreateClass(ctx context.Context, name string) (int64, error) {
	req := ClassRequest{Name: strings.TrimSpace(name)}
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	return lm.db.GetOrCreateClass(ctx, req.Name)
}

// AddClass creates a class. A non-zero ID is used as the class id.
func (lm *LibraryManager) AddClass(ctx context.Context, req ClassRequest) (int64, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	if req.ID > 0 {
		return req.ID, lm.db.CreateClassWithID(ctx, req.ID, req.Name)
	}
	return lm.db.CreateClass(ctx, req.Name)
}

func (lm *LibraryManager) GetClass(ctx context.Context, id int64) (*Class, error) {
	return lm.db.GetClass(ctx, id)
}

func (lm *LibraryManager) ListClasses(ctx context.Context) ([]*Class, error) {
	return lm.db.ListClasses(ctx)
}

func (lm *LibraryManager) SearchClasses(ctx context.Context, keyword string) ([]*Class, error) {
	return lm.db.SearchClasses(ctx, strings.TrimSpace(keyword))
}

func (lm *LibraryManager) DeleteClass(ctx context.Context, id int64) error {
	return lm.db.DeleteClass(ctx, id)
}

// ------------------ Students ------------------

func (lm *LibraryManager) GetOrCreateStudent(ctx context.Context, name string, classID int64) (int64, error) {
	req := StudentRequest{Name: strings.TrimSpace(name), ClassID: classID}
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	return lm.db.GetOrCreateStudent(ctx, req.Name, req.ClassID)
}

// AddStudent creates a student in an existing class.
func (lm *LibraryManager) AddStudent(ctx context.Context, req StudentRequest) (int64, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	if _, err := lm.db.GetClass(ctx, req.ClassID); err != nil {
		return 0, err
	}
	return lm.db.CreateStudent(ctx, req.Name, req.ClassID)
}

func (lm *LibraryManager) GetStudent(ctx context.Context, id int64) (*Student, error) {
	return lm.db.GetStudent(ctx, id)
}

func (lm *LibraryManager) ListStudents(ctx context.Context) ([]*Student, error) {
	return lm.db.ListStudents(ctx)
}

func (lm *LibraryManager) SearchStudents(ctx context.Context, keyword string) ([]*Student, error) {
	return lm.db.SearchStudents(ctx, strings.TrimSpace(keyword))
}

func (lm *LibraryManager) DeleteStudent(ctx context.Context, id int64) error {
	return lm.db.DeleteStudent(ctx, id)
}

// ------------------ Books ------------------

func (lm *LibraryManager) GetOrCreateBook(ctx context.Context, code, title string) (int64, error) {
	req := BookRequest{Code: strings.TrimSpace(code), Title: strings.TrimSpace(title)}
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	return lm.db.GetOrCreateBook(ctx, req.Code, req.Title)
}

func (lm *LibraryManager) AddBook(ctx context.Context, req BookRequest) (int64, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	return lm.db.CreateBook(ctx, req.Code, req.Title)
}

func (lm *LibraryManager) GetBookByCode(ctx context.Context, code string) (*Book, error) {
	return lm.db.GetBookByCode(ctx, strings.TrimSpace(code))
}

func (lm *LibraryManager) ListBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.ListBooks(ctx)
}

func (lm *LibraryManager) SearchBooks(ctx context.Context, keyword string) ([]*Book, error) {
	return lm.db.SearchBooks(ctx, strings.TrimSpace(keyword))
}

func (lm *LibraryManager) DeleteBook(ctx context.Context, code string) error {
	return lm.db.DeleteBook(ctx, strings.TrimSpace(code))
}

// ------------------ Circulation ------------------

// CreateLoan records a loan for the operator in ctx and returns the receipt.
func (lm *LibraryManager) CreateLoan(ctx context.Context, req LoanRequest) (*LoanReceipt, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.BookCode = strings.TrimSpace(req.BookCode)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.LoanDate.IsZero() {
		req.LoanDate = Today()
	}

	receipt, err := lm.db.CreateLoan(ctx, sess.OperatorID, NewLoan{
		StudentName: req.StudentName,
		ClassName:   req.ClassName,
		BookCode:    req.BookCode,
		LoanDate:    req.LoanDate,
	})
	if err != nil {
		return nil, err
	}
	receipt.Operator = sess.Username
	return receipt, nil
}

// ReturnLoan closes a loan. A zero returnDate means today.
func (lm *LibraryManager) ReturnLoan(ctx context.Context, loanID int64, returnDate Date) error {
	if _, err := requireSession(ctx); err != nil {
		return err
	}
	if returnDate.IsZero() {
		returnDate = Today()
	}
	return lm.db.ReturnLoan(ctx, loanID, returnDate)
}

func (lm *LibraryManager) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	return lm.db.GetLoan(ctx, id)
}

func (lm *LibraryManager) ListLoans(ctx context.Context, status LoanStatus) ([]*Loan, error) {
	return lm.db.ListLoans(ctx, status)
}

func (lm *LibraryManager) ListActiveLoans(ctx context.Context) ([]*Loan, error) {
	return lm.db.ListActiveLoans(ctx)
}

// ------------------ Backup ------------------

// Snapshot writes a consistent copy of the database file for upload.
func (lm *LibraryManager) Snapshot(ctx context.Context, path string) error {
	return lm.db.Snapshot(ctx, path)
}
