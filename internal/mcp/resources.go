package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/politicsradar/polr/internal/store"
)

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"polr://stats",
		"Corpus Statistics",
		mcp.WithResourceDescription("Counts of terms, speeches, chunks and chunk metrics, and the database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}
		return jsonResource(req.Params.URI, stats)
	})
}

func registerTermsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"polr://terms",
		"Office Terms",
		mcp.WithResourceDescription("Every office term with its start and end date, oldest first."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		terms, err := st.ListTerms(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing terms: %w", err)
		}
		if terms == nil {
			terms = []*store.Term{}
		}
		return jsonResource(req.Params.URI, map[string]interface{}{
			"terms": terms,
			"count": len(terms),
		})
	})
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
