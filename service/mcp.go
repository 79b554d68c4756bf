package service

import (
	"context"
	"encoding/json"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexforge/scrivener/extract"
	"github.com/lexforge/scrivener/kit"
	"github.com/lexforge/scrivener/pdfops"
)

// RegisterMCP registers conversion tools on an MCP server. The tools
// operate on local file paths rather than uploads, which is the natural
// shape for agent callers running next to the service.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerExtractTool(srv)
	s.registerPageCountTool(srv)
	s.registerExtensionTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func mcpCtx(ctx context.Context) context.Context {
	return kit.WithTransport(ctx, "mcp")
}

// --- extract ---

type extractToolReq struct {
	Path         string `json:"path"`
	OCRAvailable bool   `json:"ocr_available"`
}

func (s *Service) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrivener_extract",
		Description: "Extract text from a document file (pdf, doc, docx, wpd, html, txt). Set ocr_available to allow OCR fallback on image-only PDFs.",
		InputSchema: inputSchema(map[string]any{
			"path":          map[string]any{"type": "string", "description": "File path to extract"},
			"ocr_available": map[string]any{"type": "boolean", "description": "Allow OCR fallback for image-only PDFs"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractToolReq)
		return s.engine.Document(ctx, extract.Request{
			Path:       r.Path,
			OCRAllowed: r.OCRAvailable,
		})
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- page count ---

type pageCountToolReq struct {
	Path string `json:"path"`
}

func (s *Service) registerPageCountTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrivener_page_count",
		Description: "Count the pages of a PDF file.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "PDF file path"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*pageCountToolReq)
		n, err := pdfops.PageCount(r.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pg_count": n}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r pageCountToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- file extension ---

type extensionToolReq struct {
	Path string `json:"path"`
}

func (s *Service) registerExtensionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrivener_file_extension",
		Description: "Determine a file's MIME type and canonical extension from its content.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to inspect"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extensionToolReq)
		content, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, err
		}
		res := s.sniffer.Resolve(ctx, content)
		return map[string]any{"mime": res.MIME, "extension": res.Extension}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extensionToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
