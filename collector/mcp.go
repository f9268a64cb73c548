package collector

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/induslabs/pulse/collector/internal/timefmt"
	"github.com/induslabs/pulse/kit"
)

// RegisterMCP registers all collector tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerCollect(srv)
	svc.registerListFeedback(srv)
	svc.registerStats(srv)
	svc.registerRunHistory(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (svc *Service) registerCollect(srv *mcp.Server) {
	type req struct {
		Since string `json:"since"`
	}
	type resp struct {
		NewItems int     `json:"new_items"`
		Items    []*Item `json:"items"`
	}

	tool := &mcp.Tool{
		Name:        "pulse_collect",
		Description: "Run a feedback collection pass and return the newly stored items",
		InputSchema: inputSchema(map[string]any{
			"since": map[string]any{"type": "string",
				"description": `Window expression: "12h", "3d", "2w", "2026-02-25", or empty for last 24h`},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		items, err := svc.Run(ctx, p.Since, nil)
		if err != nil {
			return nil, err
		}
		return &resp{NewItems: len(items), Items: items}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (svc *Service) registerListFeedback(srv *mcp.Server) {
	type req struct {
		Window string `json:"window"`
		Limit  int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "pulse_list_feedback",
		Description: "List stored feedback items in a time window, newest first",
		InputSchema: inputSchema(map[string]any{
			"window": map[string]any{"type": "string",
				"description": `Window expression: "12h", "7d", "2026-02-25", or empty for last 24h`},
			"limit": map[string]any{"type": "integer", "description": "Max items (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		sinceT, _ := ResolveSince(p.Window)
		items, err := svc.List(ctx, timefmt.Format(sinceT), "")
		if err != nil {
			return nil, err
		}
		limit := p.Limit
		if limit <= 0 {
			limit = 50
		}
		if len(items) > limit {
			items = items[:limit]
		}
		return items, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (svc *Service) registerStats(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "pulse_stats",
		Description: "Get aggregate feedback counters (totals per source type and category)",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return svc.Stats(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &req{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (svc *Service) registerRunHistory(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "pulse_run_history",
		Description: "List recent collection runs with their outcomes",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max runs (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.RunHistory(ctx, p.Limit)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
