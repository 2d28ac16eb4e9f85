package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

const maxLoginAttempts = 3

// shell is the interactive terminal front end. Its context carries the
// operator session once login succeeded.
type shell struct {
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager
	ctx context.Context

	// readPassword reads without echo. When nil the password is read as a
	// plain line, which is what happens when stdin is not a terminal.
	readPassword func(prompt string) (string, error)
}

func newShell(ctx context.Context, in io.Reader, out io.Writer, mgr *library.LibraryManager) *shell {
	return &shell{
		sc:  bufio.NewScanner(in),
		out: out,
		mgr: mgr,
		ctx: ctx,
	}
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) println(args ...any) {
	fmt.Fprintln(sh.out, args...)
}

// prompt prints label and returns the trimmed next line. ok is false at end of
// input.
func (sh *shell) prompt(label string) (string, bool) {
	sh.printf("%s", label)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.sc.Text()), true
}

// password reads a password without trimming it.
func (sh *shell) password(label string) (string, bool) {
	if sh.readPassword == nil {
		sh.printf("%s", label)
		if !sh.sc.Scan() {
			return "", false
		}
		return strings.TrimRight(sh.sc.Text(), "\r"), true
	}
	pw, err := sh.readPassword(label)
	if err != nil {
		sh.printf("Error reading password: %v\n", err)
		return "", false
	}
	return pw, true
}

// login asks for credentials until they match an operator. It returns false
// when input ends or too many attempts failed.
func (sh *shell) login() bool {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		username, ok := sh.prompt("Username: ")
		if !ok {
			return false
		}
		password, ok := sh.password("Password: ")
		if !ok {
			return false
		}
		sess, err := sh.mgr.Login(sh.ctx, username, password)
		if err == nil {
			sh.ctx = library.WithSession(sh.ctx, sess)
			sh.printf("Logged in as %s\n", sess.Username)
			return true
		}
		sh.printf("Login failed: %v\n", err)
	}
	sh.println("Too many failed attempts.")
	return false
}

func (sh *shell) help() {
	sh.println("Available commands:")
	sh.println("  Circulation: loan, return, list loans, active loans")
	sh.println("  Classes: add class, list classes, search class, delete class")
	sh.println("  Students: add student, list students, search student, delete student")
	sh.println("  Books: add book, list books, search book, find book, delete book")
	sh.println("  System: help, logout, exit")
}

// run logs the operator in and reads commands until exit or end of input.
func (sh *shell) run() {
	sh.println("Welcome to the School Library!")
	for {
		if !sh.login() {
			return
		}
		sh.help()
		if !sh.loop() {
			return
		}
	}
}

// loop returns true when the operator logged out and false on exit.
func (sh *shell) loop() bool {
	for {
		cmd, ok := sh.prompt("\n> ")
		if !ok {
			return false
		}

		switch cmd {
		case "":
		case "loan":
			sh.handleLoan()
		case "return":
			sh.handleReturn()
		case "list loans":
			sh.handleListLoans()
		case "active loans":
			sh.handleActiveLoans()
		case "add class":
			sh.handleAddClass()
		case "list classes":
			sh.handleListClasses("")
		case "search class":
			if q, ok := sh.prompt("Keyword: "); ok {
				sh.handleListClasses(q)
			}
		case "delete class":
			sh.handleDeleteClass()
		case "add student":
			sh.handleAddStudent()
		case "list students":
			sh.handleListStudents("")
		case "search student":
			if q, ok := sh.prompt("Keyword: "); ok {
				sh.handleListStudents(q)
			}
		case "delete student":
			sh.handleDeleteStudent()
		case "add book":
			sh.handleAddBook()
		case "list books":
			sh.handleListBooks("")
		case "search book":
			if q, ok := sh.prompt("Keyword: "); ok {
				sh.handleListBooks(q)
			}
		case "find book":
			sh.handleFindBook()
		case "delete book":
			sh.handleDeleteBook()
		case "help":
			sh.help()
		case "logout":
			sh.ctx = library.WithSession(sh.ctx, library.Session{})
			sh.println("Logged out.")
			return true
		case "exit":
			sh.println("Goodbye!")
			return false
		default:
			sh.println("Unknown command. Type 'help' to see the available commands.")
		}
	}
}

func (sh *shell) readID(label string) (int64, bool) {
	s, ok := sh.prompt(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		sh.printf("Invalid ID: %s\n", s)
		return 0, false
	}
	return id, true
}

// readDate returns the zero Date for blank input, which means today.
func (sh *shell) readDate(label string) (library.Date, bool) {
	s, ok := sh.prompt(label)
	if !ok {
		return library.Date{}, false
	}
	if s == "" {
		return library.Date{}, true
	}
	d, err := library.ParseDate(s)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return library.Date{}, false
	}
	return d, true
}

// ------------------ Circulation ------------------

func (sh *shell) handleLoan() {
	student, ok := sh.prompt("Student name: ")
	if !ok {
		return
	}
	class, ok := sh.prompt(fmt.Sprintf("Class (%s): ", library.ClassPlaceholder))
	if !ok {
		return
	}
	code, ok := sh.prompt("Book code: ")
	if !ok {
		return
	}
	if book, err := sh.mgr.GetBookByCode(sh.ctx, code); err == nil {
		sh.printf("Book: %s\n", book.Title)
	}
	loanDate, ok := sh.readDate("Loan date (YYYY-MM-DD, blank for today): ")
	if !ok {
		return
	}
	shown := loanDate
	if shown.IsZero() {
		shown = library.Today()
	}
	sh.printf("Due date: %s\n", library.DueDate(shown))

	receipt, err := sh.mgr.CreateLoan(sh.ctx, library.LoanRequest{
		StudentName: student,
		ClassName:   class,
		BookCode:    code,
		LoanDate:    loanDate,
	})
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}

	printReceipt(sh.out, receipt)
}

func printReceipt(w io.Writer, r *library.LoanReceipt) {
	fmt.Fprintln(w, "Loan recorded.")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "%-12s %d\n", "Loan ID", r.LoanID)
	fmt.Fprintf(w, "%-12s %s\n", "Student", r.StudentName)
	fmt.Fprintf(w, "%-12s %s\n", "Class", r.ClassName)
	fmt.Fprintf(w, "%-12s %s (%s)\n", "Book", r.BookTitle, r.BookCode)
	fmt.Fprintf(w, "%-12s %s\n", "Loan date", r.LoanDate)
	fmt.Fprintf(w, "%-12s %s\n", "Due date", r.DueDate)
	fmt.Fprintf(w, "%-12s %s\n", "Operator", r.Operator)
	fmt.Fprintln(w, strings.Repeat("-", 40))
}

func (sh *shell) handleReturn() {
	id, ok := sh.readID("Loan ID: ")
	if !ok {
		return
	}
	returnDate, ok := sh.readDate("Return date (YYYY-MM-DD, blank for today): ")
	if !ok {
		return
	}
	if err := sh.mgr.ReturnLoan(sh.ctx, id, returnDate); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			sh.printf("Error: loan %d not found\n", id)
			return
		}
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Loan %d marked as returned.\n", id)
}

func (sh *shell) handleListLoans() {
	s, ok := sh.prompt("Status (ALL/borrowed/returned, blank for ALL): ")
	if !ok {
		return
	}
	status, err := library.ParseLoanStatus(s)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	loans, err := sh.mgr.ListLoans(sh.ctx, status)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	printLoans(sh.out, loans)
}

func (sh *shell) handleActiveLoans() {
	loans, err := sh.mgr.ListActiveLoans(sh.ctx)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	printLoans(sh.out, loans)
}

func printLoans(w io.Writer, loans []*library.Loan) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No loans found.")
		return
	}
	today := library.Today()
	fmt.Fprintf(w, "%-5s %-20s %-10s %-8s %-25s %-10s %-10s %-10s %s\n",
		"ID", "Student", "Class", "Code", "Title", "Loaned", "Due", "Returned", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 115))
	for _, l := range loans {
		returned := "-"
		if l.ReturnDate != nil {
			returned = l.ReturnDate.String()
		}
		status := string(l.Status)
		if l.Overdue(today) {
			status += " OVERDUE"
		}
		fmt.Fprintf(w, "%-5d %-20s %-10s %-8s %-25s %-10s %-10s %-10s %s\n",
			l.ID,
			truncateString(deref(l.StudentName), 20),
			truncateString(deref(l.ClassName), 10),
			truncateString(deref(l.BookCode), 8),
			truncateString(deref(l.BookTitle), 25),
			l.LoanDate, l.DueDate, returned, status)
	}
}

// ------------------ Classes ------------------

func (sh *shell) handleAddClass() {
	name, ok := sh.prompt("Class name: ")
	if !ok {
		return
	}
	id, err := sh.mgr.AddClass(sh.ctx, library.ClassRequest{Name: name})
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Added class '%s' with ID %d\n", name, id)
}

func (sh *shell) handleListClasses(keyword string) {
	classes, err := sh.mgr.SearchClasses(sh.ctx, keyword)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	if len(classes) == 0 {
		sh.println("No classes found.")
		return
	}
	sh.printf("%-5s %s\n", "ID", "Name")
	sh.println(strings.Repeat("-", 30))
	for _, c := range classes {
		sh.printf("%-5d %s\n", c.ID, c.Name)
	}
}

func (sh *shell) handleDeleteClass() {
	id, ok := sh.readID("Class ID: ")
	if !ok {
		return
	}
	if err := sh.mgr.DeleteClass(sh.ctx, id); err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Deleted class %d\n", id)
}

// ------------------ Students ------------------

func (sh *shell) handleAddStudent() {
	name, ok := sh.prompt("Student name: ")
	if !ok {
		return
	}
	classID, ok := sh.readID("Class ID: ")
	if !ok {
		return
	}
	id, err := sh.mgr.AddStudent(sh.ctx, library.StudentRequest{Name: name, ClassID: classID})
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Added student '%s' with ID %d\n", name, id)
}

func (sh *shell) handleListStudents(keyword string) {
	students, err := sh.mgr.SearchStudents(sh.ctx, keyword)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	if len(students) == 0 {
		sh.println("No students found.")
		return
	}
	sh.printf("%-5s %-30s %s\n", "ID", "Name", "Class")
	sh.println(strings.Repeat("-", 50))
	for _, s := range students {
		sh.printf("%-5d %-30s %s\n", s.ID, truncateString(s.Name, 30), deref(s.ClassName))
	}
}

func (sh *shell) handleDeleteStudent() {
	id, ok := sh.readID("Student ID: ")
	if !ok {
		return
	}
	if err := sh.mgr.DeleteStudent(sh.ctx, id); err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Deleted student %d\n", id)
}

// ------------------ Books ------------------

func (sh *shell) handleAddBook() {
	code, ok := sh.prompt("Book code: ")
	if !ok {
		return
	}
	title, ok := sh.prompt("Title: ")
	if !ok {
		return
	}
	id, err := sh.mgr.AddBook(sh.ctx, library.BookRequest{Code: code, Title: title})
	if err != nil {
		if errors.Is(err, library.ErrDuplicate) {
			sh.printf("Error: book code %s is already used\n", code)
			return
		}
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Added book ID %d\n", id)
}

func (sh *shell) handleListBooks(keyword string) {
	books, err := sh.mgr.SearchBooks(sh.ctx, keyword)
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		if keyword == "" {
			sh.println("No books in library.")
		} else {
			sh.printf("No books found matching '%s'.\n", keyword)
		}
		return
	}
	sh.printf("%-5s %-12s %s\n", "ID", "Code", "Title")
	sh.println(strings.Repeat("-", 60))
	for _, b := range books {
		sh.printf("%-5d %-12s %s\n", b.ID, truncateString(b.Code, 12), truncateString(b.Title, 40))
	}
}

func (sh *shell) handleFindBook() {
	code, ok := sh.prompt("Book code: ")
	if !ok {
		return
	}
	book, err := sh.mgr.GetBookByCode(sh.ctx, code)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			sh.printf("No book with code %s\n", code)
			return
		}
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("%s: %s\n", book.Code, book.Title)
}

func (sh *shell) handleDeleteBook() {
	code, ok := sh.prompt("Book code: ")
	if !ok {
		return
	}
	if err := sh.mgr.DeleteBook(sh.ctx, code); err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Deleted book %s\n", code)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
