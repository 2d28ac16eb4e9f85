package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // registers the sqlite3 dialect
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	logMsgSQL            = "executed sql"
	logMsgMutation       = "mutation"
	logMsgMigrated       = "schema migrated"
	logMsgSnapshot       = "database snapshot written"
	logAttrQuery         = "query"
	logAttrOp            = "op"
	logAttrID            = "id"
	logAttrOperator      = "operator_id"
	logAttrPath          = "path"
	logAttrSchemaVer     = "schema_version"
	dialectSQLite3       = "sqlite3"
	driverSQLite3        = "sqlite3"
	defaultBusyTimeoutMS = 5000
)

var dialect = goqu.Dialect(dialectSQLite3)

// Logger receives SQL at Debug and mutations at Info. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used for SQL tracing and mutation records.
func WithLogger(logger Logger) Option {
	return func(d *Database) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db     *sqlx.DB
	path   string
	logger Logger

	addClassStmt   *sqlx.Stmt
	addStudentStmt *sqlx.Stmt
	addBookStmt    *sqlx.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
//
// Every transaction starts with BEGIN IMMEDIATE, so a lookup followed by an
// insert in the same transaction cannot interleave with another writer.
// Foreign keys are declared but not enforced: deleting a class or book leaves
// the rows that reference it in place.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate", dbPath, defaultBusyTimeoutMS)
	db, err := sqlx.Open(driverSQLite3, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	database := &Database{db: db, path: dbPath, logger: nopLogger{}}
	for _, opt := range opts {
		opt(database)
	}

	if err := database.applyMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Path is the file the database was opened from.
func (d *Database) Path() string { return d.path }

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sqlx.Stmt{d.addClassStmt, d.addStudentStmt, d.addBookStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func (d *Database) applyMigrations() error {
	// WAL lets the web front end read while the shell writes.
	if _, err := d.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = d.db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS class (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_class_name ON class(name);`,
		`CREATE TABLE IF NOT EXISTS student (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            class_id INTEGER REFERENCES class(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_student_name_class ON student(name, class_id);`,
		`CREATE TABLE IF NOT EXISTS book (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS operator (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS loan (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            student_id INTEGER NOT NULL REFERENCES student(id),
            book_id INTEGER NOT NULL REFERENCES book(id),
            loan_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            return_date TEXT,
            status TEXT NOT NULL DEFAULT 'borrowed' CHECK (status IN ('borrowed','returned')),
            admin_id INTEGER REFERENCES operator(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_loan_status ON loan(status);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.logger.Info(logMsgMigrated, logAttrSchemaVer, schemaVersion)
	return nil
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addClassStmt, err = d.db.Preparex(`INSERT INTO class(name) VALUES(?)`); err != nil {
		return err
	}
	if d.addStudentStmt, err = d.db.Preparex(`INSERT INTO student(name,class_id) VALUES(?,?)`); err != nil {
		return err
	}
	if d.addBookStmt, err = d.db.Preparex(`INSERT INTO book(code,title) VALUES(?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// withTx runs fn in one transaction, committing only if fn succeeds.
func (d *Database) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// selectInto builds ds with placeholders and scans all rows into dest.
func (d *Database) selectInto(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	d.logger.Debug(logMsgSQL, logAttrQuery, query)
	return d.db.SelectContext(ctx, dest, query, args...)
}

// getInto is selectInto for a single row.
func (d *Database) getInto(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	d.logger.Debug(logMsgSQL, logAttrQuery, query)
	return d.db.GetContext(ctx, dest, query, args...)
}

// logMutation records a write together with the operator behind it, if any.
func (d *Database) logMutation(ctx context.Context, op string, id int64) {
	args := []any{logAttrOp, op, logAttrID, id}
	if s, ok := SessionFromContext(ctx); ok {
		args = append(args, logAttrOperator, s.OperatorID)
	}
	d.logger.Info(logMsgMutation, args...)
}

// deleteWhere removes rows from table matching ex and reports ErrNotFound when
// nothing matched.
func (d *Database) deleteWhere(ctx context.Context, table string, ex goqu.Ex) error {
	query, args, err := dialect.Delete(table).Where(ex).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	d.logger.Debug(logMsgSQL, logAttrQuery, query)
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func containsPattern(keyword string) string {
	return "%" + keyword + "%"
}

// Snapshot writes a consistent copy of the database to path with VACUUM INTO.
// An existing file at path is replaced.
func (d *Database) Snapshot(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old snapshot: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return classify("snapshot", err)
	}
	d.logger.Info(logMsgSnapshot, logAttrPath, path)
	return nil
}
