package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-waiver/internal/config"
	"github.com/a3tai/mcp-pdf-waiver/internal/descriptions"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver"
	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *waiver.Service
	mcpServer *server.MCPServer
	tools     []mcp.Tool
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *waiver.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("waiver service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools = append(s.tools, tool)
	s.mcpServer.AddTool(tool, handler)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(
		"waiver_describe_schema",
		mcp.WithDescription(descriptions.WaiverDescribeSchemaDescription),
	), s.handleDescribeSchema)

	s.addTool(mcp.NewTool(
		"waiver_template_info",
		mcp.WithDescription(descriptions.WaiverTemplateInfoDescription),
	), s.handleTemplateInfo)

	s.addTool(mcp.NewTool(
		"waiver_start_session",
		mcp.WithDescription(descriptions.WaiverStartSessionDescription),
	), s.handleStartSession)

	s.addTool(mcp.NewTool(
		"waiver_session_state",
		mcp.WithDescription(descriptions.WaiverSessionStateDescription),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier returned by waiver_start_session"),
		),
	), s.handleSessionState)

	s.addTool(mcp.NewTool(
		"waiver_update_field",
		mcp.WithDescription(descriptions.WaiverUpdateFieldDescription),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier"),
		),
		mcp.WithString("field_id",
			mcp.Required(),
			mcp.Description("Field identifier, e.g. full_name"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Raw value; an empty string clears the instance"),
		),
		mcp.WithNumber("index",
			mcp.Description("Instance index (default 0)"),
		),
	), s.handleUpdateField)

	s.addTool(mcp.NewTool(
		"waiver_add_instance",
		mcp.WithDescription(descriptions.WaiverAddInstanceDescription),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Collection or field identifier, e.g. minor"),
		),
	), s.handleAddInstance)

	s.addTool(mcp.NewTool(
		"waiver_remove_instance",
		mcp.WithDescription(descriptions.WaiverRemoveInstanceDescription),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Collection or field identifier"),
		),
		mcp.WithNumber("index",
			mcp.Required(),
			mcp.Description("Index of the instance to remove"),
		),
	), s.handleRemoveInstance)

	s.addTool(mcp.NewTool(
		"waiver_submit",
		mcp.WithDescription(descriptions.WaiverSubmitDescription),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier"),
		),
		mcp.WithString("output_name",
			mcp.Description("File name of the generated PDF inside the output directory"),
		),
		mcp.WithString("recipients",
			mcp.Description("Comma separated e-mail addresses the PDF is sent to"),
		),
	), s.handleSubmit)

	s.addTool(mcp.NewTool(
		"waiver_end_session",
		mcp.WithDescription(descriptions.WaiverEndSessionDescription),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier"),
		),
	), s.handleEndSession)
}

// Handler functions
func (s *Server) handleDescribeSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc := s.service.DescribeSchema()
	header := fmt.Sprintf("%s: %d field(s), %d collection(s), %d page(s)",
		desc.Title, len(desc.Fields), len(desc.Collections), desc.Pages)
	return jsonResult(header, desc)
}

func (s *Server) handleTemplateInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo(s.service.ServerInfo())), nil
}

func (s *Server) handleStartSession(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := s.service.StartSession()
	return jsonResult("Started session "+view.SessionID, view)
}

func (s *Server) handleSessionState(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.service.SessionView(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult("Session "+id, view)
}

func (s *Server) handleUpdateField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fieldID, err := request.RequireString("field_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := indexArgument(request.GetArguments(), "index", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.UpdateField(waiver.UpdateFieldRequest{
		SessionID: id,
		FieldID:   fieldID,
		Index:     index,
		Value:     value,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fmt.Sprintf("Set %s[%d] = %q", fieldID, index, result.Value), result)
}

func (s *Server) handleAddInstance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.AddInstance(waiver.InstanceRequest{SessionID: id, Target: target})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fmt.Sprintf("Added %s instance (%d total)", target, result.Count), result)
}

func (s *Server) handleRemoveInstance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := indexArgument(request.GetArguments(), "index", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.RemoveInstance(waiver.InstanceRequest{SessionID: id, Target: target, Index: index})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fmt.Sprintf("Removed %s instance %d (%d left)", target, index, result.Count), result)
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	req := waiver.SubmitRequest{SessionID: id}
	if name, ok := args["output_name"].(string); ok {
		req.OutputName = strings.TrimSpace(name)
	}
	if recipients, ok := args["recipients"].(string); ok {
		req.Recipients = splitRecipients(recipients)
	}

	result, err := s.service.Submit(ctx, req)
	if err != nil {
		if result != nil && result.Path != "" {
			return mcp.NewToolResultError(fmt.Sprintf("%s\nDocument written to: %s",
				toolErrorText(err), result.Path)), nil
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultText(s.formatSubmitResult(result)), nil
}

func (s *Server) handleEndSession(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.service.EndSession(id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Ended session " + id), nil
}

// Argument helpers
func indexArgument(args map[string]any, key string, required bool) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return 0, fmt.Errorf("required argument %q not found", key)
		}
		return 0, nil
	}

	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("argument %q must be a whole number", key)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func splitRecipients(raw string) []string {
	var out []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func toolErrorText(err error) string {
	text := werrors.UserMessage(err)
	var fe *werrors.FillError
	if errors.As(err, &fe) && len(fe.Fields) > 0 {
		text += fmt.Sprintf(" (fields: %s)", strings.Join(fe.Fields, ", "))
	}
	return text + "\n" + err.Error()
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(toolErrorText(err))
}

func jsonResult(header string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(header + "\n\n" + string(data)), nil
}

// Formatting methods
func (s *Server) formatSubmitResult(result *waiver.SubmitResult) string {
	text := fmt.Sprintf("Generated waiver for session %s\n", result.SessionID)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Values drawn: %d\n", result.Draws)
	if result.Path != "" {
		text += fmt.Sprintf("Written to: %s\n", result.Path)
	}
	if len(result.Skipped) > 0 {
		text += fmt.Sprintf("Skipped blank optional fields: %s\n", strings.Join(result.Skipped, ", "))
	}
	if len(result.Delivered) > 0 {
		text += fmt.Sprintf("E-mailed to: %s\n", strings.Join(result.Delivered, ", "))
	}
	return text
}

func (s *Server) formatServerInfo(info *waiver.ServerInfo) string {
	text := fmt.Sprintf("%s v%s - %s\n", s.config.ServerName, s.config.Version, info.Title)
	text += fmt.Sprintf("Output Directory: %s\n", info.OutputDirectory)
	text += fmt.Sprintf("Active Sessions: %d\n", info.ActiveSessions)
	text += fmt.Sprintf("E-mail Delivery: %t\n", info.Delivery)

	if t := info.Template; t != nil {
		text += fmt.Sprintf("\nTemplate: %d page(s), %d bytes\n", t.Pages, t.Size)
		if t.Title != "" {
			text += fmt.Sprintf("Title: %s\n", t.Title)
		}
		for i, size := range t.Sizes {
			text += fmt.Sprintf("   %d. %.0f x %.0f pt\n", i+1, size.Width, size.Height)
		}
	}

	text += "\nAvailable Tools:\n"
	for _, tool := range s.tools {
		text += fmt.Sprintf("• %s\n", tool.Name)
	}
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch s.config.Mode {
	case config.ModeServer:
		return s.runServerMode(ctx)
	case config.ModeStdio:
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode runs the server over standard I/O
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting waiver MCP server in stdio mode")
		log.Printf("Output directory: %s", s.config.OutputDirectory)
	}
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks the MCP stdio protocol on the given streams until the input ends or ctx is
// cancelled
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.Default())

	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Printf("Waiver MCP server listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve sse: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSE server shutdown: %v", err)
		}
		return nil
	}
}
