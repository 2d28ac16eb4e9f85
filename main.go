package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/internal/config"
	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

// app holds what every command shares. The database is opened lazily so
// commands that replace the file never hold it open.
type app struct {
	envFile  string
	dbPath   string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
	mgr    *library.LibraryManager
}

func (a *app) setup() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return nil
}

func (a *app) manager() (*library.LibraryManager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	mgr, err := library.NewLibraryManager(a.cfg.DBPath, library.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.DBPath, err)
	}
	a.mgr = mgr
	return mgr, nil
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
		a.mgr = nil
	}
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // newline after the masked input
	return strings.TrimRight(string(bytePassword), "\r\n"), nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "School library loan tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, a)
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database file (default $LIBRARY_DB_PATH or library.db)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newShellCmd(a),
		newServeCmd(a),
		newBackupCmd(a),
		newOperatorCmd(a),
		newLoanCmd(a),
		newReturnCmd(a),
		newLoansCmd(a),
	)
	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
