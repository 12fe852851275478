package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopdesk/shopdesk/internal/console"
	"github.com/shopdesk/shopdesk/internal/guard"
)

// Version is reported in the initialize handshake.
const Version = "0.1.0"

// Server exposes console operations as MCP tools over line-delimited
// JSON-RPC 2.0. Each tool is guarded like the matching CLI command.
type Server struct {
	console *console.Console
	session guard.Waiter
	logger  *slog.Logger
	tools   []toolEntry
	stdin   io.Reader
	stdout  io.Writer
}

// NewServer creates a server reading requests from in and writing responses
// to out.
func NewServer(c *console.Console, sess guard.Waiter, logger *slog.Logger, in io.Reader, out io.Writer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		console: c,
		session: sess,
		logger:  logger,
		tools:   allTools(),
		stdin:   in,
		stdout:  out,
	}
}

// Serve reads JSON-RPC messages line by line until the input is closed.
func (s *Server) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.stdin)
	// Allow up to 1MB per line for large tool arguments
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(newErrorResponse(nil, ErrCodeParse, "parse error: "+err.Error()))
			continue
		}

		resp, shouldReply := s.dispatch(ctx, &req)
		if shouldReply {
			s.writeResponse(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

// dispatch routes a request. The bool is false for notifications.
func (s *Server) dispatch(ctx context.Context, req *Request) (Response, bool) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req), true
	case "notifications/initialized":
		return Response{}, false
	case "tools/list":
		return s.handleToolsList(req), true
	case "tools/call":
		return s.handleToolsCall(ctx, req), true
	default:
		if req.IsNotification() {
			return Response{}, false
		}
		return newErrorResponse(req.ID, ErrCodeNoMethod, "method not found: "+req.Method), true
	}
}

func (s *Server) handleInitialize(req *Request) Response {
	return newResponse(req.ID, map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "shopdesk-mcp",
			"version": Version,
		},
	})
}

func (s *Server) handleToolsList(req *Request) Response {
	tools := make([]Tool, len(s.tools))
	for i, t := range s.tools {
		tools[i] = t.Tool
	}
	return newResponse(req.ID, map[string]any{"tools": tools})
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall runs a tool after its guards allow it. Guard denials and
// tool failures are tool results with isError set, not protocol errors.
func (s *Server) handleToolsCall(ctx context.Context, req *Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newErrorResponse(req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
	}

	for _, t := range s.tools {
		if t.Tool.Name != params.Name {
			continue
		}
		d, err := guard.Await(ctx, s.session, nil, t.Guards...)
		if err != nil {
			return newResponse(req.ID, errorResult(err))
		}
		if err := d.Err(); err != nil {
			return newResponse(req.ID, errorResult(err))
		}
		out, err := t.Handler(ctx, s, params.Arguments)
		if err != nil {
			s.logger.Debug("tool failed", "tool", t.Tool.Name, "err", err)
			return newResponse(req.ID, errorResult(err))
		}
		return newResponse(req.ID, jsonResult(out))
	}

	return newErrorResponse(req.ID, ErrCodeNoMethod, "unknown tool: "+params.Name)
}

// writeResponse writes resp as a single line.
func (s *Server) writeResponse(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintf(s.stdout, `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal marshal error"}}`+"\n")
		return
	}
	fmt.Fprintf(s.stdout, "%s\n", data)
}
