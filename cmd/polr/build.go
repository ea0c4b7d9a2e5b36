package main

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/pipeline"
)

func newChunksCmd(a *app) *cobra.Command {
	var opts pipeline.ChunkOptions
	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Split stored speeches into chunks",
		Long: `Chunks segments speeches into content fragments.

Without --rebuild only speeches that have no chunks yet are segmented.
With --rebuild every chunk and chunk metric is deleted and rebuilt; run
` + "`polr metrics`" + ` afterwards.`,
		Args: cobra.NoArgs,
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
			res, err := p.BuildChunks(context.Background(), opts)
			if err != nil {
				return err
			}

			a.printf("speeches segmented: %d (skipped: %d)\n", res.Speeches, res.SpeechesSkipped)
			if opts.Rebuild {
				a.printf("deleted: %d chunks, %d metrics\n", res.ChunksDeleted, res.MetricsDeleted)
			}
			a.printf("OK: chunks built: %d (dry_run=%t)\n", res.Chunks, res.DryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "delete all chunks and metrics first")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "report counts without writing")
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	var (
		opts    pipeline.MetricOptions
		chunkID int64
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Classify chunks and compute their term phase",
		Long: `Metrics derives one metric row per chunk: category, depth level and
origin phase.

Rows are upserted by chunk, so running without --rebuild refreshes every
row in place. With --chunk only that chunk's row is recomputed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := a.newPipeline(s)
			if err != nil {
				return err
			}
			ctx := context.Background()

			if cmd.Flags().Changed("chunk") {
				m, err := p.UpsertChunkMetric(ctx, chunkID, opts.DryRun)
				if err != nil {
					return err
				}
				a.printf("chunk %d: %s depth=%d phase=%.4f date=%s\n", m.ChunkID, m.Category, m.DepthLevel, m.OriginPhase, m.Date)
				a.printf("OK: metrics built: 1 (dry_run=%t)\n", opts.DryRun)
				return nil
			}

			res, err := p.BuildMetrics(ctx, opts)
			if err != nil {
				return err
			}
			printCategories(a, res.Categories)
			if opts.Rebuild {
				a.printf("deleted: %d metrics\n", res.MetricsDeleted)
			}
			a.printf("OK: metrics built: %d (dry_run=%t)\n", res.Metrics, res.DryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "delete all metrics first")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "compute without writing")
	cmd.Flags().Int64Var(&chunkID, "chunk", 0, "recompute the metric of one chunk only")
	return cmd
}

// printCategories prints per-category counts, largest first.
func printCategories(a *app, counts map[string]int) {
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	for _, c := range cats {
		a.printf("  %-24s %d\n", c, counts[c])
	}
}
