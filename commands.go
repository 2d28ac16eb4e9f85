package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/internal/backup"
	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/internal/web"
	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

func runShell(cmd *cobra.Command, a *app) error {
	mgr, err := a.manager()
	if err != nil {
		return err
	}
	sh := newShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), mgr)
	if cmd.InOrStdin() == os.Stdin && stdinIsTerminal() {
		sh.readPassword = readPassword
	}
	sh.run()
	return nil
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive operator shell (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, a)
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			srv := web.New(mgr, web.NewSessionStore(a.cfg.SessionTTL),
				web.WithLogger(a.logger),
				web.WithAccessLog(os.Stderr))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				if err := srv.Shutdown(); err != nil {
					a.logger.Error("http shutdown", "error", err)
				}
			}()
			return srv.Listen(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $LIBRARY_HTTP_ADDR or :8080)")
	return cmd
}

// ------------------ Backup ------------------

func newBackupCmd(a *app) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the database to or from the backup host over SFTP",
	}
	cmd.PersistentFlags().StringVar(&remote, "remote", "", "remote file path (default $BACKUP_REMOTE_PATH)")

	remotePath := func() (string, error) {
		if remote != "" {
			return remote, nil
		}
		if a.cfg.Backup.RemotePath == "" {
			return "", errors.New("no remote path: set BACKUP_REMOTE_PATH or --remote")
		}
		return a.cfg.Backup.RemotePath, nil
	}
	uploader := func() *backup.Uploader {
		return backup.NewUploader(a.cfg.Backup, backup.WithLogger(a.logger))
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload a snapshot of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := remotePath()
			if err != nil {
				return err
			}
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			dir, err := os.MkdirTemp("", "library-backup-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			snap := filepath.Join(dir, filepath.Base(a.cfg.DBPath))
			if err := mgr.Snapshot(cmd.Context(), snap); err != nil {
				return err
			}

			u := uploader()
			if err := u.Sync(cmd.Context(), snap, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s:%s (%s)\n",
				a.cfg.DBPath, a.cfg.Backup.Host, dst, u.Status())
			return nil
		},
	}

	var force bool
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the local database with the remote copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := remotePath()
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("restore overwrites %s; pass --force to continue", a.cfg.DBPath)
			}
			if !a.cfg.Backup.Configured() {
				return backup.ErrNotConfigured
			}
			// The local files stay untouched until the download has replaced
			// the database.
			if err := uploader().Restore(cmd.Context(), src, a.cfg.DBPath); err != nil {
				return err
			}
			// Stale WAL files would be replayed over the restored copy.
			for _, suffix := range []string{"-wal", "-shm"} {
				if err := os.Remove(a.cfg.DBPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s:%s\n", a.cfg.DBPath, a.cfg.Backup.Host, src)
			return nil
		},
	}
	restoreCmd.Flags().BoolVar(&force, "force", false, "overwrite the local database")

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Check that the backup host is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := uploader().TestConnection(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s. Home: %s\n",
				a.cfg.Backup.Addr(), strings.Join(names, ", "))
			return nil
		},
	}

	cmd.AddCommand(syncCmd, restoreCmd, testCmd)
	return cmd
}

// ------------------ Operators ------------------

func newOperatorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage librarian accounts",
	}
	var password string
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = promptPassword(cmd, fmt.Sprintf("Password for %s: ", args[0])); err != nil {
					return err
				}
			}
			id, err := mgr.AddOperator(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added operator '%s' with ID %d\n", args[0], id)
			return nil
		},
	}
	add.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	cmd.AddCommand(add)
	return cmd
}

// promptPassword reads a masked password from a terminal, or one line from
// the command input otherwise.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	if cmd.InOrStdin() == os.Stdin && stdinIsTerminal() {
		return readPassword(prompt)
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	sc := bufio.NewScanner(cmd.InOrStdin())
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password given")
	}
	return strings.TrimRight(sc.Text(), "\r"), nil
}

// ------------------ One-shot circulation ------------------

type operatorFlags struct {
	user     string
	password string
}

func (f *operatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "operator username")
	cmd.Flags().StringVar(&f.password, "password", "", "operator password (prompted when empty)")
	_ = cmd.MarkFlagRequired("user")
}

// login authenticates the operator and returns a context carrying the session.
func (f *operatorFlags) login(cmd *cobra.Command, mgr *library.LibraryManager) (context.Context, error) {
	password := f.password
	if password == "" {
		var err error
		if password, err = promptPassword(cmd, "Password: "); err != nil {
			return nil, err
		}
	}
	sess, err := mgr.Login(cmd.Context(), f.user, password)
	if err != nil {
		return nil, err
	}
	return library.WithSession(cmd.Context(), sess), nil
}

func parseDateFlag(s string) (library.Date, error) {
	if s == "" {
		return library.Date{}, nil
	}
	return library.ParseDate(s)
}

func newLoanCmd(a *app) *cobra.Command {
	var (
		op                   operatorFlags
		student, class, book string
		date                 string
	)
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Record a loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loanDate, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			ctx, err := op.login(cmd, mgr)
			if err != nil {
				return err
			}
			receipt, err := mgr.CreateLoan(ctx, library.LoanRequest{
				StudentName: student,
				ClassName:   class,
				BookCode:    book,
				LoanDate:    loanDate,
			})
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	op.register(cmd)
	cmd.Flags().StringVar(&student, "student", "", "student name")
	cmd.Flags().StringVar(&class, "class", "", "class name, e.g. 11 IPA 1")
	cmd.Flags().StringVar(&book, "book", "", "book code")
	cmd.Flags().StringVar(&date, "date", "", "loan date YYYY-MM-DD (default today)")
	return cmd
}

func newReturnCmd(a *app) *cobra.Command {
	var (
		op   operatorFlags
		date string
	)
	cmd := &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Mark a loan as returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid loan ID: %s", args[0])
			}
			returnDate, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			ctx, err := op.login(cmd, mgr)
			if err != nil {
				return err
			}
			if err := mgr.ReturnLoan(ctx, id, returnDate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loan %d marked as returned.\n", id)
			return nil
		},
	}
	op.register(cmd)
	cmd.Flags().StringVar(&date, "date", "", "return date YYYY-MM-DD (default today)")
	return cmd
}

func newLoansCmd(a *app) *cobra.Command {
	var (
		status string
		active bool
	)
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := library.ParseLoanStatus(status)
			if err != nil {
				return err
			}
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			var loans []*library.Loan
			if active {
				loans, err = mgr.ListActiveLoans(cmd.Context())
			} else {
				loans, err = mgr.ListLoans(cmd.Context(), st)
			}
			if err != nil {
				return err
			}
			printLoans(cmd.OutOrStdout(), loans)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "ALL", "ALL, borrowed or returned")
	cmd.Flags().BoolVar(&active, "active", false, "only loans still out")
	return cmd
}
