package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerProfilesResource(s *server.MCPServer, h *handlers) {
	resource := mcp.NewResource(
		"fieldmap://profiles",
		"Form Profiles",
		mcp.WithResourceDescription("Registered form profiles: keys, detection indicators and pre-processing options."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles := h.cfg.Registry.List()
		payload := map[string]any{
			"profiles": profiles,
			"count":    len(profiles),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
