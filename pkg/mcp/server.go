// Package mcp provides a Model Context Protocol server for fieldmap.
//
// It exposes field extraction, normalization preview, profile detection and
// the profile list as MCP tools, and the profile list as an MCP resource.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Registry profile.Registry
	Store    store.Store    // optional; enables the store argument of fieldmap_extract
	Mapper   extract.Config // base mapper configuration, profiles override it
	Version  string         // version string for MCP server info
	Logger   *slog.Logger
}

// dbMu serializes tool calls that write to the store. mcp-go dispatches
// handlers concurrently.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all fieldmap tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	if cfg.Registry == nil {
		cfg.Registry = profile.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := server.NewMCPServer(
		"fieldmap",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	h := &handlers{cfg: cfg, detector: profile.NewDetector(cfg.Registry)}

	registerExtractTool(s, h)
	registerPreviewTool(s, h)
	registerDetectTool(s, h)
	registerProfilesTool(s, h)

	registerProfilesResource(s, h)

	return s
}

// ServeStdio serves the MCP protocol over stdin/stdout until the client
// disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type handlers struct {
	cfg      ServerConfig
	detector *profile.Detector
}

// target is the key set and mapper a request resolves to.
type target struct {
	profile *profile.FormProfile
	keys    []string
	config  extract.Config
}

var errNoKeys = errors.New("keys or profile is required (or set detect to true)")

// resolve picks the keys and mapper configuration for a request. Explicit
// keys win over a profile's keys; the profile still supplies its options.
func (h *handlers) resolve(req mcp.CallToolRequest, content string) (*target, error) {
	t := &target{config: h.cfg.Mapper}

	if id, err := req.RequireString("profile"); err == nil && strings.TrimSpace(id) != "" {
		p, ok := h.cfg.Registry.Get(strings.TrimSpace(id))
		if !ok {
			return nil, fmt.Errorf("profile %q not found", id)
		}
		t.profile = p
	} else if detect, err := req.RequireBool("detect"); err == nil && detect {
		best := h.detector.DetectBest(content)
		if best == nil {
			return nil, fmt.Errorf("no profile matches the content")
		}
		t.profile = best.Profile
	}

	if t.profile != nil {
		t.keys = t.profile.Keys
		t.config = t.profile.Config(h.cfg.Mapper)
	}

	if raw, err := req.RequireString("keys"); err == nil && strings.TrimSpace(raw) != "" {
		keys, err := profile.ParseKeyList(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid keys: %w", err)
		}
		t.keys = keys
	}

	if len(t.keys) == 0 {
		return nil, errNoKeys
	}
	return t, nil
}

func (t *target) profileID() string {
	if t.profile == nil {
		return ""
	}
	return t.profile.ProfileID
}

func (h *handlers) mapper(t *target) *extract.Mapper {
	return extract.NewMapper(t.config, extract.WithLogger(h.cfg.Logger))
}

// --- Tools ---

func withTargetArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The email body (plain text or HTML)"),
		),
		mcp.WithString("keys",
			mcp.Description("Field labels to extract: a JSON array of strings or one label per line. Overrides the profile's keys."),
		),
		mcp.WithString("profile",
			mcp.Description("ID of a form profile supplying keys and pre-processing options (see fieldmap_profiles)"),
		),
		mcp.WithBoolean("detect",
			mcp.Description("Pick the best matching profile automatically when no profile is given (default: false)"),
		),
	}
}

func registerExtractTool(s *server.MCPServer, h *handlers) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Extract field values from a form-submission email. Each key maps to the text that follows it; keys that do not occur are omitted."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
	}, withTargetArgs()...)
	opts = append(opts,
		mcp.WithBoolean("store",
			mcp.Description("Save the submission and its fields to the submission store (default: false)"),
		),
		mcp.WithString("source",
			mcp.Description("Source identifier recorded with a stored submission (e.g. message ID). Defaults to 'mcp'."),
		),
	)
	tool := mcp.NewTool("fieldmap_extract", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}

		t, err := h.resolve(req, content)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := h.mapper(t).Map(content, t.keys)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extract error: %v", err)), nil
		}

		output := struct {
			ProfileID    string          `json:"profile_id,omitempty"`
			Fields       []extract.Field `json:"fields"`
			Missing      []string        `json:"missing,omitempty"`
			SubmissionID int64           `json:"submission_id,omitempty"`
			Duplicate    bool            `json:"duplicate,omitempty"`
		}{
			ProfileID: t.profileID(),
			Fields:    extract.Ordered(result, t.keys),
		}
		for _, key := range t.keys {
			if _, ok := result[key]; !ok {
				output.Missing = append(output.Missing, key)
			}
		}

		if save, err := req.RequireBool("store"); err == nil && save {
			if h.cfg.Store == nil {
				return mcp.NewToolResultError("no submission store configured"), nil
			}

			source := "mcp"
			if s, err := req.RequireString("source"); err == nil && strings.TrimSpace(s) != "" {
				source = strings.TrimSpace(s)
			}

			dbMu.Lock()
			id, err := h.cfg.Store.Save(ctx, &store.Submission{
				ProfileID: t.profileID(),
				Source:    source,
				Content:   content,
				Fields:    output.Fields,
			})
			dbMu.Unlock()

			switch {
			case errors.Is(err, store.ErrDuplicate):
				output.Duplicate = true
			case err != nil:
				return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
			}
			output.SubmissionID = id
		}

		data, _ := json.MarshalIndent(output, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerPreviewTool(s *server.MCPServer, h *handlers) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Show the normalized text fieldmap_extract scans: pre-processed content with every key starting its own line. Useful for debugging key sets."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	}, withTargetArgs()...)
	tool := mcp.NewTool("fieldmap_preview", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}

		t, err := h.resolve(req, content)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := h.mapper(t).Preview(content, t.keys)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("preview error: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

// detectResult is the JSON view of a profile match.
type detectResult struct {
	ProfileID  string                   `json:"profile_id"`
	Name       string                   `json:"name"`
	Confidence float64                  `json:"confidence"`
	Indicators []profile.IndicatorMatch `json:"indicators"`
}

func registerDetectTool(s *server.MCPServer, h *handlers) {
	tool := mcp.NewTool("fieldmap_detect",
		mcp.WithDescription("Rank the registered form profiles by how well their indicators match an email."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The email body (plain text or HTML)"),
		),
		mcp.WithString("explain",
			mcp.Description("Profile ID to explain indicator by indicator instead of ranking"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}

		if id, err := req.RequireString("explain"); err == nil && strings.TrimSpace(id) != "" {
			return mcp.NewToolResultText(h.detector.ExplainMatch(content, strings.TrimSpace(id))), nil
		}

		matches := h.detector.Detect(content)
		results := make([]detectResult, 0, len(matches))
		for _, m := range matches {
			results = append(results, detectResult{
				ProfileID:  m.ProfileID,
				Name:       m.Profile.Name,
				Confidence: m.Confidence,
				Indicators: m.Indicators,
			})
		}

		data, _ := json.MarshalIndent(results, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerProfilesTool(s *server.MCPServer, h *handlers) {
	tool := mcp.NewTool("fieldmap_profiles",
		mcp.WithDescription("List the registered form profiles with their keys."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, _ := json.MarshalIndent(h.cfg.Registry.List(), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
