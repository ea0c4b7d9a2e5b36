// Package mcp provides a Model Context Protocol server for polr.
//
// It exposes read-only views of the speech corpus (terms, category counts,
// the category by phase matrix, single chunks with context, corpus stats)
// and an ad hoc classifier as MCP tools, plus corpus statistics and the
// term list as MCP resources. The server speaks stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/politicsradar/polr/internal/classify"
	"github.com/politicsradar/polr/internal/logging"
	"github.com/politicsradar/polr/internal/phase"
	"github.com/politicsradar/polr/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store      store.Store
	Version    string               // version string for MCP server info
	Classifier *classify.Classifier // optional, defaults to classify.Default()
	Clock      phase.Clock          // optional, defaults to the system clock
	Logger     *logging.Logger
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently and the store holds
// a single SQLite connection.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all polr tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = phase.SystemClock{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	resolver := phase.NewResolver(cfg.Store, phase.NewCalculator(clock), log.Component("mcp"))

	s := server.NewMCPServer(
		"polr",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerTermsTool(s, cfg.Store)
	registerCategoryCountsTool(s, cfg.Store)
	registerPhaseMatrixTool(s, cfg.Store)
	registerChunkTool(s, cfg.Store)
	registerClassifyTool(s, classifier, resolver)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)
	registerTermsResource(s, cfg.Store)

	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerTermsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("polr_terms",
		mcp.WithDescription("List office terms with their start and end dates. Ongoing terms have no end date."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		terms, err := st.ListTerms(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing terms: %v", err)), nil
		}
		if terms == nil {
			terms = []*store.Term{}
		}
		return jsonResult(terms), nil
	})
}

func registerCategoryCountsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("polr_category_counts",
		mcp.WithDescription("Count chunk metrics per topic category, most frequent first. Optionally scoped to one term."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("term_id",
			mcp.Description("Restrict to one term (pm_term_id). Empty = all terms."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		termID := optionalString(req, "term_id")
		counts, err := st.CategoryCounts(ctx, termID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("counting categories: %v", err)), nil
		}
		if counts == nil {
			counts = []store.CategoryCount{}
		}
		return jsonResult(map[string]interface{}{
			"term_id":    termID,
			"categories": counts,
		}), nil
	})
}

func registerPhaseMatrixTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("polr_phase_matrix",
		mcp.WithDescription("Count chunks per category and term phase bin (0-20% ... 80-100% of the term). Structural categories (headings, Q&A) are left out unless requested."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("term_id",
			mcp.Description("Restrict to one term (pm_term_id). Empty = all terms."),
		),
		mcp.WithBoolean("include_structural",
			mcp.Description("Keep heading and Q&A categories in the matrix (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		var exclude []string
		if !req.GetBool("include_structural", false) {
			for _, c := range classify.StructuralCategories {
				exclude = append(exclude, c.String())
			}
		}

		matrix, err := st.PhaseMatrix(ctx, optionalString(req, "term_id"), exclude)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("building phase matrix: %v", err)), nil
		}
		return jsonResult(matrix), nil
	})
}

func registerChunkTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("polr_chunk",
		mcp.WithDescription("Show one chunk with its metric, its speech and the neighbouring chunks of the same speech."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("chunk_id",
			mcp.Required(),
			mcp.Description("Chunk id"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireFloat("chunk_id")
		if err != nil {
			return mcp.NewToolResultError("chunk_id is required"), nil
		}
		detail, err := st.ChunkDetail(ctx, int64(id))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading chunk: %v", err)), nil
		}
		if detail == nil {
			return mcp.NewToolResultError(fmt.Sprintf("chunk %d not found", int64(id))), nil
		}
		if detail.Speech != nil {
			// The full transcript is large and not needed next to the chunk.
			sp := *detail.Speech
			sp.RawText = ""
			detail.Speech = &sp
		}
		return jsonResult(detail), nil
	})
}

type classifyResponse struct {
	Category string   `json:"category"`
	Depth    int      `json:"depth_level"`
	Rule     string   `json:"rule"`
	Phase    *float64 `json:"origin_phase,omitempty"`
}

func registerClassifyTool(s *server.MCPServer, classifier *classify.Classifier, resolver *phase.Resolver) {
	tool := mcp.NewTool("polr_classify",
		mcp.WithDescription("Classify a text fragment into a topic category and depth level using the corpus rules. With term_id and date, also report the term phase of that date."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Fragment text"),
		),
		mcp.WithString("term_id",
			mcp.Description("Term to compute the phase against"),
		),
		mcp.WithString("date",
			mcp.Description("Date of the fragment, YYYY-MM-DD"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		res := classifier.Classify(text)
		out := classifyResponse{Category: res.Category.String(), Depth: res.Depth, Rule: res.Rule}

		termID := optionalString(req, "term_id")
		date := optionalString(req, "date")
		if termID != "" && date != "" {
			dbMu.Lock()
			p, err := resolver.PhaseFor(ctx, termID, date)
			dbMu.Unlock()
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("computing phase: %v", err)), nil
			}
			out.Phase = &p
		}
		return jsonResult(out), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("polr_stats",
		mcp.WithDescription("Get corpus statistics: terms, speeches, chunks, chunk metrics and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		return jsonResult(stats), nil
	})
}

// --- Helpers ---

func optionalString(req mcp.CallToolRequest, key string) string {
	return strings.TrimSpace(req.GetString(key, ""))
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
