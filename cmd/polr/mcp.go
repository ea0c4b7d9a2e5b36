package main

import (
	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only corpus queries over MCP (stdio)",
		Long: `Mcp starts a Model Context Protocol server on stdin/stdout.

Tools: polr_terms, polr_category_counts, polr_phase_matrix, polr_chunk,
polr_classify, polr_stats. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			srv := mcp.NewServer(mcp.ServerConfig{
				Store:   s,
				Version: version,
				Logger:  a.log,
			})
			a.log.Component("mcp").Infof("serving %s over stdio", a.cfg.DBPath.Value)
			return mcp.ServeStdio(srv)
		},
	}
}
