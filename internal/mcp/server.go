package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ktimacloud/report-engine/internal/config"
	"github.com/ktimacloud/report-engine/internal/engine"
	"github.com/ktimacloud/report-engine/internal/registry"
	"github.com/ktimacloud/report-engine/internal/render"
	"github.com/ktimacloud/report-engine/internal/template"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *engine.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *engine.Service) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Register template import tool
	importTool := mcp.NewTool(
		"report_import_template",
		mcp.WithDescription("Import a DOCX document as a fillable report template"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the source DOCX file"),
		),
		mcp.WithString("name",
			mcp.Description("Template name (defaults to the file name)"),
		),
		mcp.WithString("description",
			mcp.Description("Optional template description"),
		),
		mcp.WithString("save",
			mcp.Description("Set to 'false' to build without saving to the registry"),
		),
	)
	s.mcpServer.AddTool(importTool, s.handleImportTemplate)

	// Register fill tool
	fillTool := mcp.NewTool(
		"report_fill",
		mcp.WithDescription("Fill a saved template with variable values and render the report text"),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("ID of a previously imported template"),
		),
		mcp.WithString("values",
			mcp.Description("JSON object of variable name to value, e.g. {\"owner_name\":\"K. Papadopoulos\"}"),
		),
		mcp.WithString("kml_path",
			mcp.Description("Optional KML file whose geo annotations pre-fill geo variables"),
		),
		mcp.WithString("instructions_path",
			mcp.Description("Optional assignment instructions PDF whose labeled fields pre-fill variables"),
		),
	)
	s.mcpServer.AddTool(fillTool, s.handleFill)

	// Register geo extraction tool
	extractGeoTool := mcp.NewTool(
		"report_extract_geo",
		mcp.WithDescription("Extract parcel annotations (plot number, zone, coordinates, ...) from a KML file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the KML file"),
		),
	)
	s.mcpServer.AddTool(extractGeoTool, s.handleExtractGeo)

	// Register instruction extraction tool
	extractInstructionsTool := mcp.NewTool(
		"report_extract_instructions",
		mcp.WithDescription("Extract labeled assignment fields (client, protocol number, ...) from an instructions PDF"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(extractInstructionsTool, s.handleExtractInstructions)

	// Register template listing tool
	listTool := mcp.NewTool(
		"report_list_templates",
		mcp.WithDescription("List saved templates, optionally filtered by name"),
		mcp.WithString("query",
			mcp.Description("Optional case-insensitive name filter"),
		),
		mcp.WithString("include_inactive",
			mcp.Description("Set to 'true' to include deactivated templates"),
		),
	)
	s.mcpServer.AddTool(listTool, s.handleListTemplates)

	// Register server info tool
	serverInfoTool := mcp.NewTool(
		"report_server_info",
		mcp.WithDescription("Get server information, available tools, and usage guidance"),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleImportTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if n, ok := args["name"].(string); ok && n != "" {
		name = n
	}

	description := ""
	if d, ok := args["description"].(string); ok {
		description = d
	}

	save := true
	if v, ok := args["save"].(string); ok && strings.EqualFold(v, "false") {
		save = false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	tpl, err := s.service.BuildTemplate(engine.BuildTemplateRequest{
		Name:        name,
		Description: description,
		SourcePath:  path,
		Raw:         raw,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if save {
		if _, err := s.service.SaveTemplate(ctx, tpl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return mcp.NewToolResultText(s.formatTemplateResult(tpl, save)), nil
}

func (s *Server) handleFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()

	req := engine.FillRequest{TemplateID: templateID}

	if raw, ok := args["values"].(string); ok && raw != "" {
		values := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("values must be a JSON object of strings: %v", err)), nil
		}
		req.UserValues = values
	}

	if kmlPath, ok := args["kml_path"].(string); ok && kmlPath != "" {
		raw, err := os.ReadFile(kmlPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", kmlPath, err)), nil
		}
		geo, err := s.service.ExtractGeo(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.GeoValues = geo
	}

	if pdfPath, ok := args["instructions_path"].(string); ok && pdfPath != "" {
		raw, err := os.ReadFile(pdfPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", pdfPath, err)), nil
		}
		fields, err := s.service.ExtractInstructions(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.InstructionValues = fields
	}

	doc, err := s.service.Fill(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatRenderedDocument(doc)), nil
}

func (s *Server) handleExtractGeo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	fields, err := s.service.ExtractGeo(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(fields) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No recognized parcel annotations found in %s", path)), nil
	}

	text := fmt.Sprintf("Extracted %d parcel annotation(s) from %s:\n", len(fields), path)
	for _, f := range template.AllGeoFields() {
		if v, ok := fields[f]; ok {
			text += fmt.Sprintf("  %s: %s\n", f, v)
		}
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleExtractInstructions(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	fields, err := s.service.ExtractInstructions(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(fields) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No labeled assignment fields found in %s", path)), nil
	}

	text := fmt.Sprintf("Extracted %d assignment field(s) from %s:\n", len(fields), path)
	for label, value := range fields {
		text += fmt.Sprintf("  %s: %s\n", label, value)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	filter := registry.Filter{ActiveOnly: true}
	if q, ok := args["query"].(string); ok {
		filter.NameContains = q
	}
	if v, ok := args["include_inactive"].(string); ok && strings.EqualFold(v, "true") {
		filter.ActiveOnly = false
	}

	summaries, err := s.service.ListTemplates(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(summaries) == 0 {
		text := "No templates found"
		if filter.NameContains != "" {
			text += fmt.Sprintf(" matching %q", filter.NameContains)
		}
		return mcp.NewToolResultText(text), nil
	}

	text := fmt.Sprintf("Found %d template(s):\n", len(summaries))
	for i, sum := range summaries {
		text += fmt.Sprintf("%d. %s\n", i+1, sum.Name)
		text += fmt.Sprintf("   ID: %s\n", sum.ID)
		if sum.Description != "" {
			text += fmt.Sprintf("   Description: %s\n", sum.Description)
		}
		text += fmt.Sprintf("   Requires KML: %t\n", sum.RequiresKML)
		text += fmt.Sprintf("   Active: %t\n", sum.IsActive)
		text += fmt.Sprintf("   Updated: %s\n", sum.UpdatedAt.Format("2006-01-02 15:04:05"))
		if i < len(summaries)-1 {
			text += "\n"
		}
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Templates directory: %s\n", s.config.TemplatesDirectory)
	text += fmt.Sprintf("Max file size: %d MB\n", s.service.MaxFileSize()/(1024*1024))
	if s.config.UseDatabase() {
		text += "Registry: postgres\n"
	} else {
		text += "Registry: in-memory\n"
	}

	text += "\nAvailable Tools:\n"
	for _, tool := range toolCatalog {
		text += fmt.Sprintf("\n• %s\n", tool.name)
		text += fmt.Sprintf("  Description: %s\n", tool.description)
		text += fmt.Sprintf("  Parameters: %s\n", tool.parameters)
	}

	text += "\nTypical workflow:\n"
	text += "  1. report_import_template to turn a DOCX report into a template\n"
	text += "  2. report_extract_geo / report_extract_instructions to pre-fill values\n"
	text += "  3. report_fill with the template ID and remaining values\n"

	return mcp.NewToolResultText(text), nil
}

type toolInfo struct {
	name        string
	description string
	parameters  string
}

var toolCatalog = []toolInfo{
	{
		name:        "report_import_template",
		description: "Import a DOCX document as a fillable report template",
		parameters:  "path (required), name, description, save",
	},
	{
		name:        "report_fill",
		description: "Fill a saved template with variable values and render the report text",
		parameters:  "template_id (required), values (JSON object), kml_path, instructions_path",
	},
	{
		name:        "report_extract_geo",
		description: "Extract parcel annotations from a KML file",
		parameters:  "path (required)",
	},
	{
		name:        "report_extract_instructions",
		description: "Extract labeled assignment fields from an instructions PDF",
		parameters:  "path (required)",
	},
	{
		name:        "report_list_templates",
		description: "List saved templates, optionally filtered by name",
		parameters:  "query, include_inactive",
	},
	{
		name:        "report_server_info",
		description: "Get server information, available tools, and usage guidance",
		parameters:  "none",
	},
}

// Formatting methods
func (s *Server) formatTemplateResult(tpl *template.Template, saved bool) string {
	text := fmt.Sprintf("Imported template: %s\n", tpl.Name)
	text += fmt.Sprintf("ID: %s\n", tpl.ID)
	text += fmt.Sprintf("Sections: %d\n", len(tpl.Sections))
	text += fmt.Sprintf("Variables: %d\n", len(tpl.Variables))
	text += fmt.Sprintf("Requires KML: %t\n", tpl.RequiresKML)
	text += fmt.Sprintf("Saved: %t\n", saved)

	if len(tpl.Variables) > 0 {
		text += "\nVariables:\n"
		for _, v := range tpl.Variables {
			text += fmt.Sprintf("  %s (%s", v.Name, v.Type)
			if v.IsRequired {
				text += ", required"
			}
			text += ")"
			if v.Expression != "" {
				text += fmt.Sprintf(" = %s", v.Expression)
			}
			text += "\n"
		}
	}
	return text
}

func (s *Server) formatRenderedDocument(doc *render.RenderedDocument) string {
	text := fmt.Sprintf("Filled template: %s (%s)\n", doc.TemplateName, doc.TemplateID)
	text += fmt.Sprintf("Sections: %d\n", len(doc.Sections))
	if len(doc.Images) > 0 {
		text += fmt.Sprintf("Placed images: %d\n", len(doc.Images))
		for _, img := range doc.Images {
			text += fmt.Sprintf("  %s at anchor %d", img.VariableName, img.AnchorIndex)
			if img.AssetPath != "" {
				text += fmt.Sprintf(" (%s)", img.AssetPath)
			}
			text += "\n"
		}
	}
	text += "\nDocument:\n"
	text += doc.Text()
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting report engine MCP server in stdio mode")
		log.Printf("Templates directory: %s", s.config.TemplatesDirectory)
	}

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	// For now, we'll just use stdio mode since the mark3labs library
	// handles the transport differently
	log.Printf("Server mode not yet implemented with mark3labs/mcp-go")
	log.Printf("Falling back to stdio mode")
	return s.runStdioMode(ctx)
}
