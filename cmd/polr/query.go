package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/classify"
	"github.com/politicsradar/polr/internal/export"
	"github.com/politicsradar/polr/internal/store"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		termID  string
		asJSON  bool
		withAll bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus counts, category counts and the category by phase matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := context.Background()

			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			counts, err := s.CategoryCounts(ctx, termID)
			if err != nil {
				return err
			}
			var exclude []string
			if !withAll {
				for _, c := range classify.StructuralCategories {
					exclude = append(exclude, c.String())
				}
			}
			matrix, err := s.PhaseMatrix(ctx, termID, exclude)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(map[string]interface{}{
					"stats":        stats,
					"term_id":      termID,
					"categories":   counts,
					"phase_matrix": matrix,
				})
			}

			a.printf("Terms:          %d\n", stats.TermCount)
			a.printf("Speeches:       %d\n", stats.SpeechCount)
			a.printf("Chunks:         %d\n", stats.ChunkCount)
			a.printf("Chunk metrics:  %d\n", stats.MetricCount)
			a.printf("Database size:  %s\n", formatBytes(stats.DBSizeBytes))
			if stats.MetricCount == 0 {
				return nil
			}

			a.printf("\nCategories")
			if termID != "" {
				a.printf(" (term %s)", termID)
			}
			a.printf(":\n")
			for _, c := range counts {
				a.printf("  %-24s %d\n", c.Category, c.Count)
			}

			a.printf("\nPhase matrix:\n  %-24s", "")
			for _, b := range matrix.Bins {
				a.printf(" %8s", b)
			}
			a.printf("\n")
			for _, c := range matrix.Categories {
				a.printf("  %-24s", c)
				for _, n := range matrix.Counts[c] {
					a.printf(" %8d", n)
				}
				a.printf("\n")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&termID, "term", "", "restrict category counts and the matrix to one term")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&withAll, "all", false, "keep heading and Q&A categories in the matrix")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var (
		table string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the first rows of each table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			tables := store.ShowTables
			if table != "" {
				tables = []string{table}
			}
			for i, t := range tables {
				dump, err := s.ShowTable(context.Background(), t, limit)
				if err != nil {
					return err
				}
				if i > 0 {
					a.printf("\n")
				}
				printTable(a.stdout, dump)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "one of "+strings.Join(store.ShowTables, ", ")+" (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "rows per table")
	return cmd
}

// showCellWidth bounds how much of a long cell (speech text) is printed.
const showCellWidth = 40

func printTable(w io.Writer, dump *store.TableDump) {
	fmt.Fprintf(w, "== %s (%d rows, showing %d) ==\n", dump.Table, dump.Total, len(dump.Rows))
	fmt.Fprintln(w, strings.Join(dump.Columns, " | "))
	for _, row := range dump.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = truncate(strings.ReplaceAll(c, "\n", " "), showCellWidth)
		}
		fmt.Fprintln(w, strings.Join(cells, " | "))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
		termID string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export chunk metrics as XLSX or JSON",
		Example: `  polr export --out metrics.xlsx
  polr export --format json --term ishiba_2 > ishiba_2.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "xlsx" && format != "json" {
				return fmt.Errorf("unknown format %q (want xlsx or json)", format)
			}
			if format == "xlsx" && (out == "" || out == "-") {
				return fmt.Errorf("xlsx export needs --out <file>")
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.ExportRows(context.Background(), termID)
			if err != nil {
				return err
			}

			var w io.Writer = a.stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "xlsx":
				err = export.WriteXLSX(w, rows)
			default:
				err = export.WriteJSON(w, rows)
			}
			if err != nil {
				return err
			}
			if w != a.stdout {
				a.printf("OK: exported %d rows to %s\n", len(rows), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (json defaults to stdout)")
	cmd.Flags().StringVar(&termID, "term", "", "restrict to one term")
	return cmd
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
