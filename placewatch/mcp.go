package placewatch

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/reviewbuddy/kit"
)

// MCPServer returns an MCP server exposing the watcher's tools.
func (w *Watcher) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "reviewbuddy", Version: "0.1.0"}, nil)
	w.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers the watcher tools on an MCP server.
func (w *Watcher) RegisterMCP(srv *mcp.Server) {
	w.registerCurrentTool(srv)
	w.registerScoreTool(srv)
	w.registerPanelTool(srv)
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

func noArgs(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{}, nil
}

// --- current ---

func (w *Watcher) registerCurrentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "reviewbuddy_current",
		Description: "Return the place currently shown in the watched tab, its review score and the panel state.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, w.endpoint("current", w.currentEndpoint), noArgs)
}

// --- score ---

func (w *Watcher) registerScoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "reviewbuddy_score",
		Description: "Resolve the review score of a place from its name and full address. Addresses without a city yield an unavailable score.",
		InputSchema: inputSchema(map[string]any{
			"name":    map[string]any{"type": "string", "description": "Place name"},
			"address": map[string]any{"type": "string", "description": "Full address, comma separated (street, city, ...)"},
		}, []string{"name", "address"}),
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scoreReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}
	kit.RegisterMCPTool(srv, tool, w.endpoint("score", w.scoreEndpoint), decode)
}

// --- panel ---

type panelResp struct {
	Markdown string      `json:"markdown"`
	Panel    PanelStatus `json:"panel"`
}

func (w *Watcher) registerPanelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "reviewbuddy_panel",
		Description: "Return the injected panel content as markdown.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		md, err := w.PanelMarkdown()
		if err != nil {
			return nil, err
		}
		return panelResp{Markdown: md, Panel: w.Status().Panel}, nil
	}
	kit.RegisterMCPTool(srv, tool, w.endpoint("panel", endpoint), noArgs)
}
