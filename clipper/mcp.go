package clipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/webclip/clipd/capture"
	"github.com/webclip/clipd/llm"
)

// RegisterMCP registers all clipper tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerSavePage(srv)
	s.registerCheckPage(srv)
	s.registerAskAI(srv)
	s.registerAddComment(srv)
	s.registerAppendImages(srv)
	s.registerAppendText(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// registerTool wires a decode-then-call handler as an MCP tool. Handler
// errors become tool errors, never protocol failures.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, handler func(ctx context.Context, req *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, r *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req Req
		if err := json.Unmarshal(r.Params.Arguments, &req); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		resp, err := handler(ctx, &req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (s *Service) registerSavePage(srv *mcp.Server) {
	type req struct {
		Page      *capture.Page `json:"page"`
		Note      string        `json:"note"`
		PageID    string        `json:"page_id"`
		SessionID string        `json:"session_id"`
		ForceNew  bool          `json:"force_new"`
	}

	tool := &mcp.Tool{
		Name:        "clip_save_page",
		Description: "Save a captured page to the Notion database, deduplicating by URL",
		InputSchema: inputSchema(map[string]any{
			"page":       map[string]any{"type": "object", "description": "Captured page (url, title, description, images...)"},
			"note":       map[string]any{"type": "string", "description": "User note prefixed to the description"},
			"page_id":    map[string]any{"type": "string", "description": "Known record ID to update"},
			"session_id": map[string]any{"type": "string", "description": "Browsing session grouping tag"},
			"force_new":  map[string]any{"type": "boolean", "description": "Create a new record even if one exists"},
		}, []string{"page"}),
	}

	registerTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.SavePage(ctx, SaveRequest{
			Page:      p.Page,
			Note:      p.Note,
			PageID:    p.PageID,
			SessionID: p.SessionID,
			ForceNew:  p.ForceNew,
		})
	})
}

func (s *Service) registerCheckPage(srv *mcp.Server) {
	type req struct {
		URL string `json:"url"`
	}

	tool := &mcp.Tool{
		Name:        "clip_check_page",
		Description: "Check whether a URL is already saved in the Notion database",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL"},
		}, []string{"url"}),
	}

	registerTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.CheckPage(ctx, p.URL)
	})
}

func (s *Service) registerAskAI(srv *mcp.Server) {
	type req struct {
		Page     *capture.Page `json:"page"`
		PageID   string        `json:"page_id"`
		Messages []llm.Turn    `json:"messages"`
	}

	tool := &mcp.Tool{
		Name:        "clip_ask_ai",
		Description: "Converse with the AI about a captured page; the reply may append content to Notion",
		InputSchema: inputSchema(map[string]any{
			"page":     map[string]any{"type": "object", "description": "Captured page for context"},
			"page_id":  map[string]any{"type": "string", "description": "Synced record ID, required for append actions"},
			"messages": map[string]any{"type": "array", "description": "Conversation turns ({role, content})"},
		}, []string{"messages"}),
	}

	registerTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.Converse(ctx, p.Page, p.PageID, p.Messages)
	})
}

func (s *Service) registerAddComment(srv *mcp.Server) {
	type req struct {
		PageID string `json:"page_id"`
		Text   string `json:"text"`
	}

	tool := &mcp.Tool{
		Name:        "clip_add_comment",
		Description: "Add a comment to a saved Notion page",
		InputSchema: inputSchema(map[string]any{
			"page_id": map[string]any{"type": "string"},
			"text":    map[string]any{"type": "string"},
		}, []string{"page_id", "text"}),
	}

	registerTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		if err := s.AddComment(ctx, p.PageID, p.Text); err != nil {
			return nil, err
		}
		return map[string]string{"status": "commented"}, nil
	})
}

func (s *Service) registerAppendImages(srv *mcp.Server) {
	type req struct {
		PageID string   `json:"page_id"`
		URLs   []string `json:"urls"`
	}

	tool := &mcp.Tool{
		Name:        "clip_append_images",
		Description: "Append external image blocks to a saved Notion page",
		InputSchema: inputSchema(map[string]any{
			"page_id": map[string]any{"type": "string"},
			"urls":    map[string]any{"type": "array", "description": "Image URLs, appended in order"},
		}, []string{"page_id", "urls"}),
	}

	registerTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		if err := s.AppendImages(ctx, p.PageID, p.URLs); err != nil {
			return nil, err
		}
		return map[string]any{"status": "appended", "count": len(p.URLs)}, nil
	})
}

func (s *Service) registerAppendText(srv *mcp.Server) {
	type req struct {
		PageID string `json:"page_id"`
		Text   string `json:"text"`
	}

	tool := &mcp.Tool{
		Name:        "clip_append_text",
		Description: "Append paragraph blocks to a saved Notion page, one per non-blank line",
		InputSchema: inputSchema(map[string]any{
			"page_id": map[string]any{"type": "string"},
			"text":    map[string]any{"type": "string"},
		}, []string{"page_id", "text"}),
	}

	registerTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		n, err := s.AppendText(ctx, p.PageID, p.Text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "appended", "count": n}, nil
	})
}
