package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/ingest"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		opts    ingest.ImportOptions
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Import speech transcripts from files or directories",
		Long: `Ingest imports speeches and stores them with their chunks and metrics.

Supported formats: JSON, YAML, CSV/TSV, Markdown (with front matter),
saved HTML statement pages and plain text. Values missing from a document
are taken from the flags below. A speech whose source is already stored
is skipped.`,
		Example: `  polr ingest speeches.json
  polr ingest -r ./pages --term ishiba_2 --name "石破茂"
  polr ingest kaiken.txt --term ishiba_2 --dt "2025-07-02 18:00" --single-chunk`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxLen, err := a.maxLength()
			if err != nil {
				return err
			}
			opts.MaxLength = maxLen

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := a.newPipeline(s)
			if err != nil {
				return err
			}
			engine := ingest.NewEngine(p, a.log)
			ctx := context.Background()

			if opts.DryRun {
				a.printf("Dry run mode, no changes will be written\n\n")
			}
			if verbose {
				opts.ProgressFn = func(current, total int, file string) {
					a.printf("  [%d/%d] %s\n", current, total, file)
				}
			}

			total := &ingest.ImportResult{}
			failed := 0
			for _, path := range args {
				a.printf("Importing %s...\n", path)
				result, err := engine.ImportFile(ctx, path, opts)
				if err != nil {
					fmt.Fprintf(a.stderr, "  Error: %v\n", err)
					failed++
					continue
				}
				total.Add(result)
			}

			a.printf("\n%s", ingest.FormatImportResult(total))
			if failed == len(args) {
				return fmt.Errorf("nothing imported")
			}
			if total.FilesImported == 0 && len(total.Errors) > 0 {
				return fmt.Errorf("nothing imported (%d errors)", len(total.Errors))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.Recursive, "recursive", "r", false, "recurse into subdirectories")
	f.BoolVarP(&opts.DryRun, "dry-run", "n", false, "report what would be stored without writing")
	f.BoolVar(&opts.SingleChunk, "single-chunk", false, "store each speech as one whole-speech chunk")
	f.Int64Var(&opts.MaxFileSize, "max-file-size", ingest.DefaultMaxFileSize, "skip files larger than this many bytes")
	f.StringVar(&opts.TermID, "term", "", "term id for documents without one")
	f.StringVar(&opts.TermName, "term-name", "", "term holder name, used when the term is created")
	f.StringVar(&opts.TermStart, "term-start", "", "term start date, used when the term is created")
	f.StringVar(&opts.TermEnd, "term-end", "", "term end date, used when the term is created")
	f.StringVar(&opts.Name, "name", "", "speaker name for documents without one")
	f.StringVar(&opts.DT, "dt", "", "speech date/time (YYYY-MM-DD[ HH:MM]) for documents without one")
	f.StringVar(&opts.Context, "context", "", "speech context for documents without one")
	f.BoolVarP(&verbose, "verbose", "v", false, "print every file as it is imported")
	return cmd
}
