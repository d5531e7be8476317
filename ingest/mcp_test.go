package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "ingest-test", Version: "0.1.0"}

func mcpSession(t *testing.T, s *Service) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// mcpCall returns the text content of the tool answer and whether it is a tool error.
func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestMCP_IngestText(t *testing.T) {
	session := mcpSession(t, newService(t, Config{}))

	text, isErr := mcpCall(t, session, "policy_ingest", map[string]any{"text": "  " + policyText + "  "})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Content != policyText || res.Source != "Pasted text" {
		t.Errorf("result = %+v", res)
	}
}

func TestMCP_IngestFile(t *testing.T) {
	session := mcpSession(t, newService(t, Config{}))

	sentence := "Our AI policy requires human review of all automated decisions."
	data := buildDocx(t, `<w:p><w:r><w:t>`+sentence+`</w:t></w:r></w:p>`)
	text, isErr := mcpCall(t, session, "policy_ingest", map[string]any{
		"filename":       "policy.docx",
		"content_base64": base64.StdEncoding.EncodeToString(data),
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Content != sentence || res.Source != "policy.docx" {
		t.Errorf("result = %+v", res)
	}
}

func TestMCP_IngestURL404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	session := mcpSession(t, newService(t, Config{}))

	text, isErr := mcpCall(t, session, "policy_ingest", map[string]any{"url": srv.URL})
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
	if text != "transport_failure: Failed to fetch URL: 404 Not Found" {
		t.Errorf("error text = %q", text)
	}
}

func TestMCP_IngestURLHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<p>"+policyText+"</p>")
	}))
	defer srv.Close()
	session := mcpSession(t, newService(t, Config{}))

	text, isErr := mcpCall(t, session, "policy_ingest", map[string]any{"url": srv.URL})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if !strings.Contains(text, `"source":"`+srv.URL+`"`) {
		t.Errorf("answer = %s", text)
	}
}

func TestMCP_IngestInvalid(t *testing.T) {
	session := mcpSession(t, newService(t, Config{}))

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty", map[string]any{}, "invalid_input: Missing url or text"},
		{"two inputs", map[string]any{"url": "https://example.com", "text": policyText},
			"invalid_input: Provide exactly one of url, text or file"},
		{"bad base64", map[string]any{"filename": "a.txt", "content_base64": "%%%"},
			"invalid_input: content_base64 is not valid base64"},
		{"bad extension", map[string]any{"filename": "a.exe", "content_base64": base64.StdEncoding.EncodeToString([]byte(policyText))},
			"invalid_input: Unsupported file type: .exe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, isErr := mcpCall(t, session, "policy_ingest", tc.args)
			if !isErr {
				t.Fatalf("expected tool error, got %s", text)
			}
			if text != tc.want {
				t.Errorf("error text = %q, want %q", text, tc.want)
			}
		})
	}
}

func TestMCP_Formats(t *testing.T) {
	session := mcpSession(t, newService(t, Config{MaxUploadBytes: 2 << 20}))

	text, isErr := mcpCall(t, session, "policy_formats", map[string]any{})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp struct {
		Extensions []string `json:"extensions"`
		MaxBytes   int64    `json:"max_bytes"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if strings.Join(resp.Extensions, ",") != "pdf,docx,doc,txt,md" {
		t.Errorf("extensions = %v", resp.Extensions)
	}
	if resp.MaxBytes != 2<<20 {
		t.Errorf("max_bytes = %d", resp.MaxBytes)
	}
}
