// Package web serves the library over HTTP as a JSON API. Operators log in
// with POST /login and every /api route runs with their session attached to
// the request context.
package web

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

const (
	SessionCookie = "library_session"
	localSession  = "session"
	localToken    = "token"
)

type Server struct {
	app       *fiber.App
	mgr       *library.LibraryManager
	sessions  *SessionStore
	logger    *slog.Logger
	accessLog io.Writer
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAccessLog enables the request log middleware, writing to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

func New(mgr *library.LibraryManager, sessions *SessionStore, opts ...Option) *Server {
	s := &Server{
		mgr:      mgr,
		sessions: sessions,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "library",
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	if s.accessLog != nil {
		s.app.Use(logger.New(logger.Config{Output: s.accessLog}))
	}
	s.routes()
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("http listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) routes() {
	s.app.Post("/login", s.login)
	s.app.Post("/logout", s.logout)

	api := s.app.Group("/api", s.requireSession)

	classes := api.Group("/classes")
	classes.Get("/", s.listClasses)
	classes.Post("/", s.createClass)
	classes.Get("/:id", s.getClass)
	classes.Delete("/:id", s.deleteClass)

	students := api.Group("/students")
	students.Get("/", s.listStudents)
	students.Post("/", s.createStudent)
	students.Get("/:id", s.getStudent)
	students.Delete("/:id", s.deleteStudent)

	books := api.Group("/books")
	books.Get("/", s.listBooks)
	books.Post("/", s.createBook)
	books.Get("/:code", s.getBook)
	books.Put("/:code", s.upsertBook)
	books.Delete("/:code", s.deleteBook)

	loans := api.Group("/loans")
	loans.Get("/", s.listLoans)
	loans.Get("/active", s.listActiveLoans)
	loans.Post("/", s.createLoan)
	loans.Get("/:id", s.getLoan)
	loans.Post("/:id/return", s.returnLoan)
}

// requireSession resolves the session token from the cookie or a bearer
// header and attaches the operator to the request context.
func (s *Server) requireSession(c *fiber.Ctx) error {
	token := c.Cookies(SessionCookie)
	if token == "" {
		if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "login required")
	}
	sess, ok := s.sessions.Get(token)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "session expired")
	}
	c.Locals(localSession, sess)
	c.Locals(localToken, token)
	c.SetUserContext(library.WithSession(c.UserContext(), sess))
	return c.Next()
}

// errorHandler renders every failure as {"success":false,"error":...}.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, library.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, library.ErrDuplicate):
		return fiber.StatusConflict
	case errors.Is(err, library.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, library.ErrInvalidCredentials), errors.Is(err, library.ErrNoSession):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}
