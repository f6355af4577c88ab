package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const reportURIPrefix = "reports://report/"

func (s *Server) registerResources() {
	// ── reports://report/{reportId} ────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			reportURIPrefix+"{reportId}",
			"Report status and files",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleReportResource,
	)
}

func (s *Server) handleReportResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := reportIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract reportId from URI: %s", uri)
	}

	details, err := s.reports.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// reportIDFromURI extracts the id from "reports://report/{id}".
func reportIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, reportURIPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
