// Package mcpserver exposes report generation and inspection as MCP tools so
// agents can run form reports and read their results.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"reports/internal/report"
	"reports/internal/service"
)

// Server is the MCP server for form reports.
type Server struct {
	mcp      *server.MCPServer
	reports  *service.ReportService
	defaults report.Config
	preview  int
	log      *zap.Logger
}

// Deps holds everything the MCP server needs from the app layer.
type Deps struct {
	Reports     *service.ReportService
	Defaults    report.Config // used when a tool call leaves locale/useChoiceNames out
	PreviewRows int           // default row limit of preview_report
	Logger      *zap.Logger
	Version     string
}

// New creates and configures a new MCP server with all tools, resources and
// prompts.
func New(deps Deps) *Server {
	s := &Server{
		reports:  deps.Reports,
		defaults: deps.Defaults,
		preview:  deps.PreviewRows,
		log:      deps.Logger,
	}
	if s.preview <= 0 {
		s.preview = 20
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		"form-reports",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerReportTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp stdio server starting")
	return server.ServeStdio(s.mcp)
}
