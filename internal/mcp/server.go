package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-form-editor/internal/config"
	"github.com/a3tai/pdf-form-editor/internal/descriptions"
	"github.com/a3tai/pdf-form-editor/internal/editor"
	"github.com/a3tai/pdf-form-editor/internal/pdf/forms"
	"github.com/a3tai/pdf-form-editor/internal/security"
)

// exportPerm is the mode of files written by pdf_form_export
const exportPerm = 0o644

// Server exposes one editor as MCP tools
type Server struct {
	config    *config.Config
	editor    *editor.Editor
	paths     *security.PathValidator
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, ed *editor.Editor) (*Server, error) {
	if ed == nil {
		return nil, fmt.Errorf("editor cannot be nil")
	}

	paths, err := security.NewPathValidator(cfg.PDFDirectory)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		editor:    ed,
		paths:     paths,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// tool summarises a registered tool for pdf_server_info
type tool struct {
	name        string
	description string
	parameters  string
}

var tools = []tool{
	{"pdf_form_load", "Load a PDF form from the configured directory", "path (required)"},
	{"pdf_form_fields", "List the form fields of the loaded document with their values", "none"},
	{"pdf_form_set_field", "Set the value of one form field", "name (required), value (required)"},
	{"pdf_form_page", "Move to the previous or next page, or to a page number", "direction (prev|next) or page"},
	{"pdf_form_page_text", "Extract the text of the current page", "none"},
	{"pdf_form_export", "Write the filled form to a file in the configured directory", "path (required)"},
	{"pdf_server_info", "Get server information, the loaded document and usage guidance", "none"},
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_form_load",
		mcp.WithDescription(descriptions.PDFFormLoadDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, relative to the configured directory or absolute inside it"),
		),
	), s.handleLoad)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_form_fields",
		mcp.WithDescription(descriptions.PDFFormFieldsDescription),
	), s.handleFields)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_form_set_field",
		mcp.WithDescription(descriptions.PDFFormSetFieldDescription),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Fully qualified field name as listed by pdf_form_fields"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("New value. Checkboxes take true or false, radio groups and dropdowns an option"),
		),
	), s.handleSetField)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_form_page",
		mcp.WithDescription(descriptions.PDFFormPageDescription),
		mcp.WithString("direction",
			mcp.Description("prev or next"),
			mcp.Enum("prev", "next"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number, clamped to the document"),
		),
	), s.handlePage)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_form_page_text",
		mcp.WithDescription(descriptions.PDFFormPageTextDescription),
	), s.handlePageText)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_form_export",
		mcp.WithDescription(descriptions.PDFFormExportDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Destination .pdf path inside the configured directory"),
		),
	), s.handleExport)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := s.paths.ResolvePDF(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot access file: %v", err)), nil
	}
	if info.Size() > s.config.MaxFileSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max: %d bytes)",
			info.Size(), s.config.MaxFileSize)), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read file: %v", err)), nil
	}
	if err := s.editor.LoadDocument(ctx, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state := s.editor.State()
	text := fmt.Sprintf("Loaded PDF form: %s\n", resolved)
	text += fmt.Sprintf("Size: %d bytes\n", state.Size)
	text += fmt.Sprintf("Pages: %d\n", state.TotalPages)
	text += "\n" + formatFields(state)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFields(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.editor.State()
	if !state.Loaded {
		return mcp.NewToolResultError(editor.ErrNoDocument.Error()), nil
	}
	return mcp.NewToolResultText(formatFields(state)), nil
}

func (s *Server) handleSetField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	raw, ok := args["value"]
	if !ok {
		return mcp.NewToolResultError(`required argument "value" not found`), nil
	}

	switch v := raw.(type) {
	case string:
		err = s.editor.SetFieldValueString(ctx, name, v)
	default:
		err = s.editor.SetFieldValueInterface(ctx, name, v)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	f, _ := s.editor.Field(name)
	return mcp.NewToolResultText(fmt.Sprintf("Set %s (%s) = %s", f.Name, f.Kind, f.Value.String())), nil
}

func (s *Server) handlePage(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var page int
	switch {
	case args["direction"] != nil:
		direction, _ := args["direction"].(string)
		switch direction {
		case "next":
			page = s.editor.ChangePage(editor.Next)
		case "prev", "previous":
			page = s.editor.ChangePage(editor.Previous)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown direction %q (use prev or next)", direction)), nil
		}
	case args["page"] != nil:
		n, ok := args["page"].(float64)
		if !ok {
			return mcp.NewToolResultError("page must be a number"), nil
		}
		page = s.editor.GoToPage(int(n))
	default:
		return mcp.NewToolResultError("direction or page is required"), nil
	}

	if page == 0 {
		return mcp.NewToolResultError(editor.ErrNoDocument.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Page %d of %d", page, s.editor.State().TotalPages)), nil
}

func (s *Server) handlePageText(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.editor.PageView(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Page %d of %d\n\n", view.Page, view.TotalPages)
	if strings.TrimSpace(view.Text) == "" {
		text += "(no extractable text on this page)"
	} else {
		text += view.Text
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleExport(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := s.paths.ResolvePDF(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	export, err := s.editor.Export()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), config.DefaultDirPerm); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create directory: %v", err)), nil
	}
	if err := os.WriteFile(resolved, export.Data, exportPerm); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write file: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Exported filled form to %s (%d bytes)", resolved, len(export.Data))), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// Formatting methods
func formatFields(state editor.State) string {
	if len(state.Fields) == 0 {
		return "No supported form fields found"
	}

	text := fmt.Sprintf("Form fields (%d):\n", len(state.Fields))
	for i, f := range state.Fields {
		text += fmt.Sprintf("%d. %s [%s] = %s", i+1, f.Name, f.Kind, formatValue(f))
		if len(f.Options) > 0 {
			text += fmt.Sprintf("  options: %s", strings.Join(f.Options, ", "))
		}
		if f.ReadOnly {
			text += "  (read-only)"
		}
		if f.Page > 0 {
			text += fmt.Sprintf("  page %d", f.Page)
		}
		text += "\n"
	}

	if len(state.Warnings) > 0 {
		text += "\nWarnings:\n"
		for _, w := range state.Warnings {
			text += fmt.Sprintf("- %s\n", w)
		}
	}
	return text
}

func formatValue(f forms.Field) string {
	if f.Kind == forms.KindCheckbox {
		return f.Value.String()
	}
	return fmt.Sprintf("%q", f.Value.String())
}

func (s *Server) formatServerInfo() string {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Directory: %s\n", s.paths.Directory())
	text += fmt.Sprintf("Max File Size: %d MB\n\n", s.config.MaxFileSize/(1024*1024))

	state := s.editor.State()
	if state.Loaded {
		text += fmt.Sprintf("Loaded document: %d bytes, page %d of %d, %d fields\n\n",
			state.Size, state.CurrentPage, state.TotalPages, len(state.Fields))
	} else {
		text += "Loaded document: none\n\n"
	}

	text += "Available Tools:\n"
	for _, t := range tools {
		text += fmt.Sprintf("\n- %s\n", t.name)
		text += fmt.Sprintf("  Description: %s\n", t.description)
		text += fmt.Sprintf("  Parameters: %s\n", t.parameters)
	}

	text += "\nUsage: load a form with pdf_form_load, inspect it with pdf_form_fields, " +
		"fill it with pdf_form_set_field and write it out with pdf_form_export. " +
		"Paths are confined to the configured directory.\n"
	return text
}

// Run serves the tools over stdio until the client disconnects
func (s *Server) Run(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF form MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.paths.Directory())
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
