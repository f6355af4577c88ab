package mcpserver

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"reports/internal/domain"
	"reports/internal/report"
	"reports/internal/service"
)

func (s *Server) registerReportTools() {
	s.mcp.AddTool(mcp.NewTool("generate_form_report",
		mcp.WithDescription("Generate the CSV report (plus meta file and photo archive) of one form. Runs synchronously and returns the report status and its files."),
		mcp.WithString("formId", mcp.Description("Form ID"), mcp.Required()),
		mcp.WithString("reportId", mcp.Description("Report ID to use (optional, a UUID is generated)")),
		mcp.WithString("locale", mcp.Description("Locale for choice and geo names (optional)")),
		mcp.WithBoolean("useChoiceNames", mcp.Description("Write translated choice names instead of choice values")),
	), s.handleGenerateFormReport)

	s.mcp.AddTool(mcp.NewTool("make_reports",
		mcp.WithDescription("Generate reports for every published form of the given studies (all studies when none given), using choice names and each study's default locale."),
		mcp.WithArray("studyIds", mcp.Description("Study IDs (optional)"), mcp.WithStringItems()),
		mcp.WithString("formId", mcp.Description("Restrict the batch to one form (optional)")),
		mcp.WithString("locale", mcp.Description("Override the study default locale (optional)")),
	), s.handleMakeReports)

	s.mcp.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Get the status of a report and the files registered for it"),
		mcp.WithString("reportId", mcp.Description("Report ID"), mcp.Required()),
	), s.handleGetReport)

	s.mcp.AddTool(mcp.NewTool("preview_report",
		mcp.WithDescription("Read the header and first rows of a report's data file"),
		mcp.WithString("reportId", mcp.Description("Report ID"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of rows"), mcp.Min(1)),
	), s.handlePreviewReport)

	s.mcp.AddTool(mcp.NewTool("running_reports",
		mcp.WithDescription("List the forms with a report run in flight"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleRunningReports)
}

func (s *Server) handleGenerateFormReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	formID, err := req.RequireString("formId")
	if err != nil {
		return errorResult(err), nil
	}
	in := service.RunInput{
		FormID:   formID,
		ReportID: req.GetString("reportId", ""),
		Config: report.Config{
			Locale:         req.GetString("locale", s.defaults.Locale),
			UseChoiceNames: req.GetBool("useChoiceNames", s.defaults.UseChoiceNames),
		},
	}

	res, runErr := s.reports.RunForm(ctx, in)
	if res == nil {
		return errorResult(runErr), nil
	}
	if runErr == nil {
		return jsonResult(res)
	}
	out, err := jsonResult(map[string]any{"result": res, "error": runErr.Error()})
	if err != nil {
		return nil, err
	}
	out.IsError = true
	return out, nil
}

func (s *Server) handleMakeReports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := service.BatchInput{
		StudyIDs: req.GetStringSlice("studyIds", nil),
		FormID:   req.GetString("formId", ""),
		Locale:   req.GetString("locale", ""),
	}
	res, err := s.reports.RunStudies(ctx, in)
	if res == nil {
		return errorResult(err), nil
	}
	out, mErr := jsonResult(res)
	if mErr != nil {
		return nil, mErr
	}
	out.IsError = err != nil
	return out, nil
}

func (s *Server) handleGetReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("reportId")
	if err != nil {
		return errorResult(err), nil
	}
	details, err := s.reports.GetReport(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return errorResult(err), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(details)
}

func (s *Server) handlePreviewReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("reportId")
	if err != nil {
		return errorResult(err), nil
	}
	preview, err := s.reports.PreviewData(ctx, id, req.GetInt("limit", s.preview))
	if errors.Is(err, domain.ErrNotFound) {
		return errorResult(err), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(preview)
}

func (s *Server) handleRunningReports(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"running": s.reports.Running()})
}
