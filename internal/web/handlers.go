package web

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "id must be a positive number")
	}
	return id, nil
}

// optionalDate parses a YYYY-MM-DD form value. Blank means the zero Date.
func optionalDate(s string) (library.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return library.Date{}, nil
	}
	return library.ParseDate(s)
}

func bodyError() error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
}

// ------------------ Sessions ------------------

func (s *Server) login(c *fiber.Ctx) error {
	var creds library.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return bodyError()
	}
	sess, err := s.mgr.Login(c.UserContext(), creds.Username, creds.Password)
	if err != nil {
		return err
	}
	token, expires := s.sessions.Create(sess)
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	s.logger.Info("operator logged in", "operator_id", sess.OperatorID, "username", sess.Username)
	return ok(c, fiber.Map{
		"token":      token,
		"username":   sess.Username,
		"expires_at": expires.Format(time.RFC3339),
	})
}

func (s *Server) logout(c *fiber.Ctx) error {
	token := c.Cookies(SessionCookie)
	if token == "" {
		token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if token != "" {
		s.sessions.Delete(token)
	}
	c.ClearCookie(SessionCookie)
	return ok(c, nil)
}

// ------------------ Classes ------------------

func (s *Server) listClasses(c *fiber.Ctx) error {
	var (
		classes []*library.Class
		err     error
	)
	if q := c.Query("q"); q != "" {
		classes, err = s.mgr.SearchClasses(c.UserContext(), q)
	} else {
		classes, err = s.mgr.ListClasses(c.UserContext())
	}
	if err != nil {
		return err
	}
	return ok(c, classes)
}

func (s *Server) createClass(c *fiber.Ctx) error {
	var req library.ClassRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError()
	}
	id, err := s.mgr.AddClass(c.UserContext(), req)
	if err != nil {
		return err
	}
	return created(c, library.Class{ID: id, Name: strings.TrimSpace(req.Name)})
}

func (s *Server) getClass(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	class, err := s.mgr.GetClass(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, class)
}

func (s *Server) deleteClass(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.mgr.DeleteClass(c.UserContext(), id); err != nil {
		return err
	}
	return ok(c, nil)
}

// ------------------ Students ------------------

func (s *Server) listStudents(c *fiber.Ctx) error {
	var (
		students []*library.Student
		err      error
	)
	if q := c.Query("q"); q != "" {
		students, err = s.mgr.SearchStudents(c.UserContext(), q)
	} else {
		students, err = s.mgr.ListStudents(c.UserContext())
	}
	if err != nil {
		return err
	}
	return ok(c, students)
}

func (s *Server) createStudent(c *fiber.Ctx) error {
	var req library.StudentRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError()
	}
	id, err := s.mgr.AddStudent(c.UserContext(), req)
	if err != nil {
		return err
	}
	student, err := s.mgr.GetStudent(c.UserContext(), id)
	if err != nil {
		return err
	}
	return created(c, student)
}

func (s *Server) getStudent(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	student, err := s.mgr.GetStudent(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, student)
}

func (s *Server) deleteStudent(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := s.mgr.DeleteStudent(c.UserContext(), id); err != nil {
		return err
	}
	return ok(c, nil)
}

// ------------------ Books ------------------

func (s *Server) listBooks(c *fiber.Ctx) error {
	var (
		books []*library.Book
		err   error
	)
	if q := c.Query("q"); q != "" {
		books, err = s.mgr.SearchBooks(c.UserContext(), q)
	} else {
		books, err = s.mgr.ListBooks(c.UserContext())
	}
	if err != nil {
		return err
	}
	return ok(c, books)
}

func (s *Server) createBook(c *fiber.Ctx) error {
	var req library.BookRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError()
	}
	if _, err := s.mgr.AddBook(c.UserContext(), req); err != nil {
		return err
	}
	book, err := s.mgr.GetBookByCode(c.UserContext(), req.Code)
	if err != nil {
		return err
	}
	return created(c, book)
}

func (s *Server) getBook(c *fiber.Ctx) error {
	book, err := s.mgr.GetBookByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return ok(c, book)
}

// upsertBook creates the book or overwrites its title.
func (s *Server) upsertBook(c *fiber.Ctx) error {
	var req library.BookRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError()
	}
	code := c.Params("code")
	if _, err := s.mgr.GetOrCreateBook(c.UserContext(), code, req.Title); err != nil {
		return err
	}
	book, err := s.mgr.GetBookByCode(c.UserContext(), code)
	if err != nil {
		return err
	}
	return ok(c, book)
}

func (s *Server) deleteBook(c *fiber.Ctx) error {
	if err := s.mgr.DeleteBook(c.UserContext(), c.Params("code")); err != nil {
		return err
	}
	return ok(c, nil)
}

// ------------------ Loans ------------------

type loanView struct {
	*library.Loan
	Overdue bool `json:"overdue"`
}

func viewLoans(loans []*library.Loan) []loanView {
	today := library.Today()
	out := make([]loanView, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanView{Loan: l, Overdue: l.Overdue(today)})
	}
	return out
}

func (s *Server) listLoans(c *fiber.Ctx) error {
	status, err := library.ParseLoanStatus(c.Query("status"))
	if err != nil {
		return err
	}
	loans, err := s.mgr.ListLoans(c.UserContext(), status)
	if err != nil {
		return err
	}
	return ok(c, viewLoans(loans))
}

func (s *Server) listActiveLoans(c *fiber.Ctx) error {
	loans, err := s.mgr.ListActiveLoans(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, viewLoans(loans))
}

func (s *Server) getLoan(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	loan, err := s.mgr.GetLoan(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, loanView{Loan: loan, Overdue: loan.Overdue(library.Today())})
}

type loanForm struct {
	StudentName string `json:"student_name" form:"student_name"`
	ClassName   string `json:"class_name" form:"class_name"`
	BookCode    string `json:"book_code" form:"book_code"`
	LoanDate    string `json:"loan_date" form:"loan_date"`
}

func (s *Server) createLoan(c *fiber.Ctx) error {
	var form loanForm
	if err := c.BodyParser(&form); err != nil {
		return bodyError()
	}
	loanDate, err := optionalDate(form.LoanDate)
	if err != nil {
		return err
	}
	receipt, err := s.mgr.CreateLoan(c.UserContext(), library.LoanRequest{
		StudentName: form.StudentName,
		ClassName:   form.ClassName,
		BookCode:    form.BookCode,
		LoanDate:    loanDate,
	})
	if err != nil {
		return err
	}
	return created(c, receipt)
}

type returnForm struct {
	ReturnDate string `json:"return_date" form:"return_date"`
}

func (s *Server) returnLoan(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var form returnForm
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&form); err != nil {
			return bodyError()
		}
	}
	returnDate, err := optionalDate(form.ReturnDate)
	if err != nil {
		return err
	}
	if err := s.mgr.ReturnLoan(c.UserContext(), id, returnDate); err != nil {
		return err
	}
	loan, err := s.mgr.GetLoan(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, loan)
}
