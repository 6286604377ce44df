// Package mcp exposes the tool surface consumed by MCP clients: search,
// fetch and do, backed by the dispatcher. Framing is JSON-RPC 2.0 over
// stdio, one message per line.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/runshield/bashx/internal/audit"
	"github.com/runshield/bashx/internal/auth"
	"github.com/runshield/bashx/internal/dispatch"
	"github.com/runshield/bashx/internal/kernel"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Tool describes one exposed tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Server serves the tool surface for one authenticated principal.
type Server struct {
	Dispatcher *dispatch.Dispatcher
	Auth       *auth.Context
	HTTP       kernel.HTTPDoer
	// History receives every executed command for the search tool.
	History *audit.Memory
}

func (s *Server) tools() []Tool {
	obj := func(props map[string]any, required ...string) map[string]any {
		return map[string]any{"type": "object", "properties": props, "required": required}
	}
	return []Tool{
		{
			Name:        "search",
			Description: "Search available commands and execution history",
			InputSchema: obj(map[string]any{"query": map[string]any{"type": "string"}}, "query"),
		},
		{
			Name:        "fetch",
			Description: "Fetch a resource: a bound file path or an http(s) URL",
			InputSchema: obj(map[string]any{"resource": map[string]any{"type": "string"}}, "resource"),
		},
		{
			Name:        "do",
			Description: "Run a short script; each bash.exec(...) line executes through the dispatcher",
			InputSchema: obj(map[string]any{"code": map[string]any{"type": "string"}}, "code"),
		},
	}
}

// Serve reads JSON-RPC requests line by line until EOF.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)
	enc := json.NewEncoder(w)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			_ = enc.Encode(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
			continue
		}
		resp := s.handle(ctx, &req)
		if resp != nil {
			if err := enc.Encode(resp); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req *rpcRequest) *rpcResponse {
	resp := &rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "bashx", "version": "1.0.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		}
	case "notifications/initialized":
		return nil
	case "tools/list":
		resp.Result = map[string]any{"tools": s.tools()}
	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: -32602, Message: "invalid params"}
			return resp
		}
		result, err := s.callTool(ctx, params.Name, params.Arguments)
		if err != nil {
			resp.Error = &rpcError{Code: -32000, Message: err.Error()}
			return resp
		}
		data, _ := json.Marshal(result)
		resp.Result = map[string]any{
			"content": []map[string]any{{"type": "text", "text": string(data)}},
		}
	default:
		if req.ID == nil {
			return nil
		}
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}
	return resp
}

func (s *Server) callTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		query, _ := args["query"].(string)
		return s.search(query), nil
	case "fetch":
		resource, _ := args["resource"].(string)
		return s.fetch(ctx, resource)
	case "do":
		code, _ := args["code"].(string)
		return s.do(ctx, code), nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

type searchResult struct {
	Kind  string `json:"kind"` // "command" or "history"
	Value string `json:"value"`
}

func (s *Server) search(query string) map[string]any {
	var results []searchResult
	q := strings.ToLower(query)
	for _, c := range kernel.Commands() {
		if strings.Contains(strings.ToLower(c), q) {
			results = append(results, searchResult{Kind: "command", Value: c})
		}
	}
	if s.History != nil {
		for _, rec := range s.History.Records() {
			if strings.Contains(strings.ToLower(rec.Command), q) {
				results = append(results, searchResult{Kind: "history", Value: rec.Command})
			}
		}
	}
	if results == nil {
		results = []searchResult{}
	}
	return map[string]any{"query": query, "results": results}
}

func (s *Server) fetch(ctx context.Context, resource string) (any, error) {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		if s.HTTP == nil {
			return nil, fmt.Errorf("no http capability bound")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resource, nil)
		if err != nil {
			return nil, err
		}
		httpResp, err := s.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		return map[string]any{"resource": resource, "content": string(data)}, nil
	}
	if s.Dispatcher.FS == nil {
		return nil, fmt.Errorf("no filesystem bound")
	}
	data, err := s.Dispatcher.FS.Read(resource)
	if err != nil {
		return nil, err
	}
	return map[string]any{"resource": resource, "content": string(data)}, nil
}

// do runs a restricted script shape: each bash.exec("...") call (or bare
// command line) executes through the dispatcher in order; execution stops
// at the first failed line.
func (s *Server) do(ctx context.Context, code string) map[string]any {
	var outputs []map[string]any
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		command := line
		if extracted, okE := extractBashExec(line); okE {
			command = extracted
		}
		res := s.Dispatcher.Exec(ctx, command, s.Auth, "")
		if s.History != nil && !res.Blocked {
			s.History.Record(audit.NewRecord(s.Auth.UserID, command, false, "mcp do"))
		}
		outputs = append(outputs, map[string]any{
			"command":  command,
			"stdout":   res.Stdout,
			"stderr":   res.Stderr,
			"exitCode": res.ExitCode,
			"blocked":  res.Blocked,
		})
		if res.Blocked || res.ExitCode != 0 {
			break
		}
	}
	if outputs == nil {
		outputs = []map[string]any{}
	}
	return map[string]any{"results": outputs}
}

// extractBashExec pulls the command out of a bash.exec("...") call.
func extractBashExec(line string) (string, bool) {
	const prefix = "bash.exec("
	idx := strings.Index(line, prefix)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(prefix):]
	end := strings.LastIndexByte(rest, ')')
	if end < 0 {
		return "", false
	}
	arg := strings.TrimSpace(rest[:end])
	arg = strings.TrimSuffix(arg, ";")
	if len(arg) >= 2 && (arg[0] == '"' || arg[0] == '\'' || arg[0] == '`') && arg[len(arg)-1] == arg[0] {
		return arg[1 : len(arg)-1], true
	}
	return "", false
}
