// Package mcp exposes the mapping engine and form filler as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/taxpilot/fieldmap/internal/cache"
	"github.com/taxpilot/fieldmap/internal/config"
	"github.com/taxpilot/fieldmap/internal/descriptions"
	"github.com/taxpilot/fieldmap/internal/fill"
	"github.com/taxpilot/fieldmap/internal/inventory"
	"github.com/taxpilot/fieldmap/internal/mapping"
	"github.com/taxpilot/fieldmap/internal/watcher"
)

// Server represents the MCP server instance.
type Server struct {
	config    *config.Config
	extractor *inventory.Extractor
	agent     *mapping.Agent
	store     cache.Store
	filler    *fill.Filler
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance.
func NewServer(cfg *config.Config, extractor *inventory.Extractor, agent *mapping.Agent, store cache.Store, filler *fill.Filler, logger *zap.Logger) (*Server, error) {
	if extractor == nil || agent == nil || store == nil || filler == nil {
		return nil, fmt.Errorf("all engine components are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		extractor: extractor,
		agent:     agent,
		store:     store,
		filler:    filler,
		logger:    logger,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	fieldInventoryTool := mcp.NewTool(
		"form_field_inventory",
		mcp.WithDescription(descriptions.FormFieldInventoryDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF form template"),
		),
	)
	s.mcpServer.AddTool(fieldInventoryTool, s.handleFieldInventory)

	generateMappingTool := mcp.NewTool(
		"form_generate_mapping",
		mcp.WithDescription(descriptions.FormGenerateMappingDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF form template"),
		),
		mcp.WithString("form_type",
			mcp.Description("Form type key (derived from the file name if empty)"),
		),
		mcp.WithString("form_version",
			mcp.Description("Form version key (derived from the file name if empty)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Regenerate even if a validated mapping is cached"),
		),
	)
	s.mcpServer.AddTool(generateMappingTool, s.handleGenerateMapping)

	mappingStatusTool := mcp.NewTool(
		"form_mapping_status",
		mcp.WithDescription(descriptions.FormMappingStatusDescription),
		mcp.WithString("form_type",
			mcp.Description("Form type key (omit to list all cached mappings)"),
		),
		mcp.WithString("form_version",
			mcp.Description("Form version key"),
		),
	)
	s.mcpServer.AddTool(mappingStatusTool, s.handleMappingStatus)

	fillTool := mcp.NewTool(
		"form_fill",
		mcp.WithDescription(descriptions.FormFillDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF form template"),
		),
		mcp.WithString("output_path",
			mcp.Required(),
			mcp.Description("Path for the filled PDF"),
		),
		mcp.WithString("form_type",
			mcp.Description("Form type key (derived from the file name if empty)"),
		),
		mcp.WithString("form_version",
			mcp.Description("Form version key (derived from the file name if empty)"),
		),
		mcp.WithString("values",
			mcp.Required(),
			mcp.Description("JSON object of semantic_name -> value"),
		),
	)
	s.mcpServer.AddTool(fillTool, s.handleFill)

	serverInfoTool := mcp.NewTool(
		"form_server_info",
		mcp.WithDescription(descriptions.FormServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions

func (s *Server) handleFieldInventory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	formType, formVersion := watcher.TemplateKey(path)
	inv, err := s.extractor.ExtractFile(path, formType, formVersion)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Field inventory for %s (%s/%s): %d fields\n\n",
		filepath.Base(path), inv.FormType, inv.FormVersion, len(inv.Fields))
	for _, f := range inv.Fields {
		label := f.NearbyLabel
		if label == "" {
			label = "-"
		}
		responseText += fmt.Sprintf("p%d %-8s %-9s label=%q\n    %s\n", f.Page, f.SimpleRef, f.Kind, label, f.FieldPath)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleGenerateMapping(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	formType, formVersion := templateKeyFromArgs(path, args)

	force := false
	if f, ok := args["force"].(bool); ok {
		force = f
	}

	if !force {
		if doc, err := s.store.Get(ctx, formType, formVersion); err == nil && doc.Validated {
			return mcp.NewToolResultText(fmt.Sprintf(
				"Mapping for %s/%s already cached and validated (coverage %.0f%%, generated %s). Pass force=true to regenerate.",
				formType, formVersion, doc.Coverage*100, doc.GeneratedAt.Format("2006-01-02"))), nil
		}
	}

	inv, err := s.extractor.ExtractFile(path, formType, formVersion)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.agent.Generate(ctx, inv)
	if err != nil && !errors.Is(err, mapping.ErrOracleUnavailable) {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Mapping generated for %s/%s\n", doc.FormType, doc.FormVersion)
	responseText += fmt.Sprintf("Fields: %d of %d mapped (coverage %.1f%%)\n", doc.EntryCount(), len(inv.Fields), doc.Coverage*100)
	responseText += fmt.Sprintf("Validated: %t\n", doc.Validated)
	responseText += fmt.Sprintf("Gap-filling rounds used: %d\n", doc.IterationsUsed)
	responseText += fmt.Sprintf("Sections: %s\n", strings.Join(doc.SectionNames(), ", "))
	if err != nil {
		responseText += fmt.Sprintf("\n⚠️  WARNING: %v - the persisted mapping is best-effort.\n", err)
	} else if !doc.Validated {
		responseText += "\n⚠️  WARNING: Coverage is below the validation threshold. The mapping was persisted unvalidated; fills will be partial.\n"
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleMappingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	formType, _ := args["form_type"].(string)
	formVersion, _ := args["form_version"].(string)

	if formType == "" {
		docs, err := s.store.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(docs) == 0 {
			return mcp.NewToolResultText("No cached mappings."), nil
		}
		responseText := fmt.Sprintf("Cached mappings: %d\n\n", len(docs))
		for _, doc := range docs {
			responseText += fmt.Sprintf("%-24s coverage %5.1f%%  validated=%-5t  generated %s\n",
				doc.Key(), doc.Coverage*100, doc.Validated, doc.GeneratedAt.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(responseText), nil
	}

	doc, err := s.store.Get(ctx, formType, formVersion)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf("No cached mapping for %s/%s. Run form_generate_mapping first.", formType, formVersion)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (s *Server) handleFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outputPath, err := request.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	valuesJSON, err := request.RequireString("values")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("values must be a JSON object: %v", err)), nil
	}

	args := request.GetArguments()
	formType, formVersion := templateKeyFromArgs(path, args)

	doc, err := s.store.Get(ctx, formType, formVersion)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no cached mapping for %s/%s - run form_generate_mapping first", formType, formVersion)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.filler.Fill(ctx, path, outputPath, doc, values)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Filled %s -> %s\n", filepath.Base(path), outputPath)
	responseText += fmt.Sprintf("Text fields written: %d\n", result.FilledText)
	responseText += fmt.Sprintf("Checkboxes set: %d\n", result.FilledCheckboxes)
	if len(result.SkippedUnmapped) > 0 {
		responseText += fmt.Sprintf("Skipped (no mapping entry): %s\n", strings.Join(result.SkippedUnmapped, ", "))
	}
	for _, w := range result.Warnings {
		responseText += fmt.Sprintf("⚠️  %s\n", w)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("%s v%s - semantic form-field mapping and filling\n\n", s.config.ServerName, s.config.Version)
	responseText += fmt.Sprintf("Forms directory: %s\n", s.config.FormsDirectory)
	responseText += fmt.Sprintf("Mapping cache: %s (%d cached)\n", s.config.CachePath, len(docs))
	responseText += fmt.Sprintf("Oracle model: %s\n", s.config.OracleModel)
	responseText += fmt.Sprintf("Coverage threshold: %.0f%%\n\n", s.config.CoverageThreshold*100)
	responseText += "Tools:\n"
	responseText += "  • form_field_inventory   - list a template's fillable fields\n"
	responseText += "  • form_generate_mapping  - run the mapping engine for a template\n"
	responseText += "  • form_mapping_status    - inspect cached mappings\n"
	responseText += "  • form_fill              - write semantic values into a PDF\n"
	responseText += "  • form_server_info       - this overview\n\n"
	responseText += "Workflow: form_generate_mapping once per template, then form_fill any number of times.\n"

	return mcp.NewToolResultText(responseText), nil
}

// templateKeyFromArgs resolves the cache key from explicit arguments,
// falling back to the template file name.
func templateKeyFromArgs(path string, args map[string]any) (string, string) {
	formType, formVersion := watcher.TemplateKey(path)
	if t, ok := args["form_type"].(string); ok && t != "" {
		formType = t
	}
	if v, ok := args["form_version"].(string); ok && v != "" {
		formVersion = v
	}
	return formType, formVersion
}

// Run starts the MCP server in the configured mode.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode.
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode",
		zap.String("forms_dir", s.config.FormsDirectory))

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode.
func (s *Server) runServerMode(ctx context.Context) error {
	sse := server.NewSSEServer(s.mcpServer)
	s.logger.Info("starting MCP server in HTTP mode", zap.String("address", s.config.Address()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(s.config.Address())
	}()

	select {
	case <-ctx.Done():
		return sse.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	}
}
