package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/docpipe"
	"github.com/hazyhaar/policyvet/kit"
)

// RegisterMCP registers the ingestion tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerIngestTool(srv)
	s.registerFormatsTool(srv)
}

var mcpTag = kit.Chain(kit.WithTransportTag("mcp"))

// --- ingest ---

type ingestArgs struct {
	URL           string `json:"url,omitempty"`
	Text          string `json:"text,omitempty"`
	Filename      string `json:"filename,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

// request maps tool arguments onto exactly one Request variant.
func (a *ingestArgs) request() (Request, error) {
	n := 0
	for _, set := range []bool{a.URL != "", a.Text != "", a.ContentBase64 != "" || a.Filename != ""} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return Request{}, apperr.New(apperr.ErrInvalidInput, errMissing)
	case n > 1:
		return Request{}, apperr.New(apperr.ErrInvalidInput, "Provide exactly one of url, text or file")
	case a.URL != "":
		return URL(a.URL), nil
	case a.Text != "":
		return Text(a.Text), nil
	}
	data, err := base64.StdEncoding.DecodeString(a.ContentBase64)
	if err != nil {
		return Request{}, apperr.Wrap(apperr.ErrInvalidInput, err, "content_base64 is not valid base64")
	}
	return Upload(a.Filename, a.ContentType, data), nil
}

func (s *Service) registerIngestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "policy_ingest",
		Description: fmt.Sprintf("Extract the plain text of a policy document from a URL, pasted text, "+
			"or a base64-encoded file (%v). Provide exactly one input.", docpipe.SupportedUploadExtensions()),
		InputSchema: kit.InputSchema(map[string]any{
			"url":            map[string]any{"type": "string", "description": "http(s) URL of the document"},
			"text":           map[string]any{"type": "string", "description": "Pasted policy text"},
			"filename":       map[string]any{"type": "string", "description": "Name of the uploaded file, extension included"},
			"content_type":   map[string]any{"type": "string", "description": "Declared MIME type of the file"},
			"content_base64": map[string]any{"type": "string", "description": "File bytes, base64 encoded"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r, err := req.(*ingestArgs).request()
		if err != nil {
			return nil, err
		}
		return s.Ingest(ctx, r)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var a ingestArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &a); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &a}, nil
	}

	kit.RegisterMCPTool(srv, tool, mcpTag(endpoint), decode)
}

// --- formats ---

func (s *Service) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "policy_formats",
		Description: "List the accepted upload extensions and the upload size ceiling.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"extensions": docpipe.SupportedUploadExtensions(),
			"max_bytes":  s.MaxUploadBytes(),
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, mcpTag(endpoint), decode)
}
