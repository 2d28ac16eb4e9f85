package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/internal/config"
	"github.com/perpustakaansman47-jakarta/perpustakaansman47jakarta/library"
)

// headers recognised on the first row and skipped.
var headers = map[string]bool{"code": true, "kode": true, "kode buku": true}

type result struct {
	imported int
	failed   int
}

// importBooks upserts every code,title row of r. A bad row is reported and
// skipped; only an unreadable file stops the import.
func importBooks(ctx context.Context, mgr *library.LibraryManager, r io.Reader, out io.Writer) (result, error) {
	var res result
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				fmt.Fprintf(out, "line %d: ERROR - %v\n", line, err)
				res.failed++
				continue
			}
			return res, err
		}
		if line == 1 && headers[strings.ToLower(strings.TrimSpace(rec[0]))] {
			continue
		}
		if len(rec) < 2 {
			fmt.Fprintf(out, "line %d: ERROR - want code,title\n", line)
			res.failed++
			continue
		}

		code, title := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		id, err := mgr.GetOrCreateBook(ctx, code, title)
		if err != nil {
			fmt.Fprintf(out, "line %d: ERROR - %v\n", line, err)
			res.failed++
			continue
		}
		fmt.Fprintf(out, "Importing: %s %s... SUCCESS (ID: %d)\n", code, title, id)
		res.imported++
	}
}

func removeDatabase(path string, out io.Writer) {
	fmt.Fprintln(out, "Cleaning up existing database files...")
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

func printBooks(ctx context.Context, mgr *library.LibraryManager, out io.Writer) {
	books, err := mgr.ListBooks(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error retrieving books: %v\n", err)
		return
	}
	fmt.Fprintf(out, "%-5s %-12s %-50s\n", "ID", "Code", "Title")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, b := range books {
		fmt.Fprintf(out, "%-5d %-12s %-50s\n", b.ID, truncateString(b.Code, 12), truncateString(b.Title, 50))
	}
}

func newImportCmd() *cobra.Command {
	var (
		dbPath  string
		envFile string
		reset   bool
	)
	cmd := &cobra.Command{
		Use:          "import_books FILE.csv",
		Short:        "Import books from a code,title CSV file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			out := cmd.OutOrStdout()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if reset {
				removeDatabase(dbPath, out)
			}
			mgr, err := library.NewLibraryManager(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer mgr.Close()

			fmt.Fprintf(out, "Importing books from %s...\n", args[0])
			res, err := importBooks(cmd.Context(), mgr, f, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Successfully imported: %d books\n", res.imported)
			fmt.Fprintf(out, "Errors: %d\n", res.failed)
			if res.imported > 0 {
				fmt.Fprintln(out, "\nBooks:")
				printBooks(cmd.Context(), mgr, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file (default $LIBRARY_DB_PATH or library.db)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing database first")
	return cmd
}

func main() {
	if err := newImportCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
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
