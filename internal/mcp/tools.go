package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/logger"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// NoResultsText is the text content returned when a search finds nothing
const NoResultsText = "No results found"

// SearchOutput is the structured content of a search tool result
type SearchOutput struct {
	Results  []string `json:"results"`
	Mode     string   `json:"mode"`
	Warnings []string `json:"warnings,omitempty"`
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := s.requestLogger(ctx).With(zap.String("tool", SearchToolName))
	ctx = logger.ContextWithLogger(ctx, log)

	query, err := request.RequireString("query")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": err.Error(),
		})
	}

	resp, err := s.searcher.Search(ctx, query)
	if err != nil {
		return toolError(err, log)
	}

	output := SearchOutput{
		Results:  resp.Results,
		Mode:     resp.Mode.String(),
		Warnings: resp.Warnings,
	}
	return mcp.NewToolResultStructured(output, formatResults(resp.Results, resp.Warnings)), nil
}

// handleSearchPrompt returns the configured search tool prompt
func (s *Server) handleSearchPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if request.Params.Name != SearchPromptName {
		msg := fmt.Sprintf("prompt not found: %s", request.Params.Name)
		s.requestLogger(ctx).Error(msg)
		return nil, newMCPError(ErrorCodeInvalidParams, msg, nil)
	}

	return mcp.NewGetPromptResult(
		"",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(s.toolPrompt)),
		},
	), nil
}

// toolError maps a search failure onto the protocol. Backend failures and
// timeouts become tool results flagged as errors so the client model can
// read them; anything else is a protocol error.
func toolError(err error, log *zap.Logger) (*mcp.CallToolResult, error) {
	switch {
	case types.IsBackendFailure(err):
		log.Error("search backend failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("search timed out", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("search timed out: %v", err)), nil
	case errors.Is(err, context.Canceled):
		log.Info("search canceled")
		return mcp.NewToolResultError("search canceled"), nil
	case errors.Is(err, types.ErrUnconfigured):
		log.Error("search called without a configured backend")
		return nil, newMCPError(ErrorCodeInternalError, err.Error(), nil)
	default:
		log.Error("search failed", zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// formatResults joins the source texts with newlines, followed by any warnings
func formatResults(results, warnings []string) string {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString(NoResultsText)
	} else {
		b.WriteString(strings.Join(results, "\n"))
	}
	for _, w := range warnings {
		b.WriteString("\n\nwarning: ")
		b.WriteString(w)
	}
	return b.String()
}

// requestLogger returns the logger attached by the transport, tagged with
// the client session when there is one.
func (s *Server) requestLogger(ctx context.Context) *zap.Logger {
	log := logger.FromContext(ctx)
	if !log.Core().Enabled(zap.FatalLevel) {
		log = s.logger
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		log = log.With(zap.String("session_id", session.SessionID()))
	}
	return log
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}
