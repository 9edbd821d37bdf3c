package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/store"
)

const contactForm7Email = "From: Test Name <test@email.com>\nSubject: This is a test subject\n\n" +
	"Message Body:\nTest message\n\n-- \nThis e-mail was sent from a contact form on Test (http://localhost/test)"

func setupRegistry(t *testing.T) *profile.DefaultRegistry {
	t.Helper()
	reg := profile.NewRegistry()
	if err := reg.LoadBuiltins(); err != nil {
		t.Fatalf("loading builtin profiles: %v", err)
	}
	return reg
}

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestServer(t *testing.T, st store.Store) *server.MCPServer {
	t.Helper()
	return NewServer(ServerConfig{
		Registry: setupRegistry(t),
		Store:    st,
		Mapper:   extract.DefaultConfig(),
		Version:  "test",
	})
}

func TestNewServer(t *testing.T) {
	srv := NewServer(ServerConfig{})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the JSON-RPC handler.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}

	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{
		IsError: resp.Result.IsError,
	}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}

	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

type extractOutput struct {
	ProfileID    string          `json:"profile_id"`
	Fields       []extract.Field `json:"fields"`
	Missing      []string        `json:"missing"`
	SubmissionID int64           `json:"submission_id"`
	Duplicate    bool            `json:"duplicate"`
}

func decodeExtract(t *testing.T, result *mcplib.CallToolResult) extractOutput {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected error result: %s", getTextContent(t, result))
	}
	var out extractOutput
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &out); err != nil {
		t.Fatalf("parsing extract output: %v", err)
	}
	return out
}

func TestExtractTool_ExplicitKeys(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_extract", map[string]interface{}{
		"content": "First Name: Joe Last Name: Smith",
		"keys":    `["First Name:", "Last Name:", "Phone:"]`,
	})
	out := decodeExtract(t, result)

	want := []extract.Field{{Key: "First Name:", Value: "Joe"}, {Key: "Last Name:", Value: "Smith"}}
	if len(out.Fields) != len(want) {
		t.Fatalf("fields = %+v, want %+v", out.Fields, want)
	}
	for i := range want {
		if out.Fields[i] != want[i] {
			t.Errorf("fields[%d] = %+v, want %+v", i, out.Fields[i], want[i])
		}
	}
	if len(out.Missing) != 1 || out.Missing[0] != "Phone:" {
		t.Errorf("missing = %v, want [Phone:]", out.Missing)
	}
	if out.ProfileID != "" {
		t.Errorf("profile_id = %q, want empty", out.ProfileID)
	}
}

func TestExtractTool_LineSeparatedKeys(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_extract", map[string]interface{}{
		"content": "Name Joe Phone 555",
		"keys":    "Name\nPhone\n",
	})
	out := decodeExtract(t, result)
	if len(out.Fields) != 2 || out.Fields[1].Value != "555" {
		t.Errorf("fields = %+v, want Name and Phone", out.Fields)
	}
}

func TestExtractTool_Profile(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_extract", map[string]interface{}{
		"content": contactForm7Email,
		"profile": "contact-form-7",
	})
	out := decodeExtract(t, result)

	if out.ProfileID != "contact-form-7" {
		t.Errorf("profile_id = %q, want contact-form-7", out.ProfileID)
	}
	values := map[string]string{}
	for _, f := range out.Fields {
		values[f.Key] = f.Value
	}
	if values["From:"] != "Test Name <test@email.com>" {
		t.Errorf("From: = %q, want address kept", values["From:"])
	}
	if values["Message Body:"] != "Test message" {
		t.Errorf("Message Body: = %q, want %q", values["Message Body:"], "Test message")
	}
}

func TestExtractTool_Detect(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_extract", map[string]interface{}{
		"content": contactForm7Email,
		"detect":  true,
	})
	out := decodeExtract(t, result)
	if out.ProfileID != "contact-form-7" {
		t.Errorf("profile_id = %q, want contact-form-7", out.ProfileID)
	}
}

func TestExtractTool_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantMsg string
	}{
		{name: "missing content", args: map[string]interface{}{"keys": "Name"}, wantMsg: "content is required"},
		{name: "no keys", args: map[string]interface{}{"content": "Name Joe"}, wantMsg: "keys or profile is required"},
		{name: "unknown profile", args: map[string]interface{}{"content": "Name Joe", "profile": "nope"}, wantMsg: `profile "nope" not found`},
		{name: "empty content", args: map[string]interface{}{"content": "   ", "keys": "Name"}, wantMsg: "extract error"},
		{name: "duplicate keys", args: map[string]interface{}{"content": "Name Joe", "keys": `["Name","Name"]`}, wantMsg: "duplicate key"},
		{name: "no detection match", args: map[string]interface{}{"content": "Name Joe", "detect": true}, wantMsg: "no profile matches"},
		{name: "store without store", args: map[string]interface{}{"content": "Name Joe", "keys": "Name", "store": true}, wantMsg: "no submission store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, srv, "fieldmap_extract", tt.args)
			if !result.IsError {
				t.Fatalf("expected error result, got %s", getTextContent(t, result))
			}
			if text := getTextContent(t, result); !strings.Contains(text, tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", text, tt.wantMsg)
			}
		})
	}
}

func TestExtractTool_Store(t *testing.T) {
	st := setupTestStore(t)
	srv := newTestServer(t, st)

	args := map[string]interface{}{
		"content": contactForm7Email,
		"profile": "contact-form-7",
		"store":   true,
		"source":  "msg-1",
	}

	first := decodeExtract(t, callTool(t, srv, "fieldmap_extract", args))
	if first.SubmissionID == 0 {
		t.Fatal("expected a submission id")
	}
	if first.Duplicate {
		t.Error("first save reported duplicate")
	}

	second := decodeExtract(t, callTool(t, srv, "fieldmap_extract", args))
	if !second.Duplicate {
		t.Error("second save should report duplicate")
	}
	if second.SubmissionID != first.SubmissionID {
		t.Errorf("duplicate id = %d, want %d", second.SubmissionID, first.SubmissionID)
	}

	sub, err := st.Get(context.Background(), first.SubmissionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sub.Source != "msg-1" || sub.ProfileID != "contact-form-7" {
		t.Errorf("stored submission = %+v", sub)
	}
	if subject, _ := sub.Value("Subject:"); subject != "This is a test subject" {
		t.Errorf("stored Subject: = %q", subject)
	}
}

func TestPreviewTool(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_preview", map[string]interface{}{
		"content": "First Name: Joe Last Name: Smith",
		"keys":    "First Name:\nLast Name:",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	if got := getTextContent(t, result); got != "First Name: Joe\nLast Name: Smith" {
		t.Errorf("preview = %q", got)
	}
}

func TestDetectTool(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_detect", map[string]interface{}{
		"content": contactForm7Email,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}

	var matches []detectResult
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &matches); err != nil {
		t.Fatalf("parsing detect output: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].ProfileID != "contact-form-7" {
		t.Errorf("best match = %q, want contact-form-7", matches[0].ProfileID)
	}
	if matches[0].Confidence <= 0 {
		t.Errorf("confidence = %v, want > 0", matches[0].Confidence)
	}
}

func TestDetectTool_Explain(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_detect", map[string]interface{}{
		"content": contactForm7Email,
		"explain": "contact-form-7",
	})
	if got := getTextContent(t, result); !strings.Contains(got, "MATCHES") {
		t.Errorf("explain = %q, want it to report a match", got)
	}
}

func TestProfilesTool(t *testing.T) {
	srv := newTestServer(t, nil)

	result := callTool(t, srv, "fieldmap_profiles", map[string]interface{}{})
	text := getTextContent(t, result)

	var profiles []struct {
		ProfileID string   `json:"profile_id"`
		Keys      []string `json:"keys"`
	}
	if err := json.Unmarshal([]byte(text), &profiles); err != nil {
		t.Fatalf("parsing profiles output: %v", err)
	}
	ids := map[string]bool{}
	for _, p := range profiles {
		ids[p.ProfileID] = true
		if len(p.Keys) == 0 {
			t.Errorf("profile %s has no keys", p.ProfileID)
		}
	}
	for _, id := range []string{"contact-form-7", "wpforms", "wpforms-html"} {
		if !ids[id] {
			t.Errorf("missing builtin profile %s", id)
		}
	}
}

func TestProfilesResource(t *testing.T) {
	srv := newTestServer(t, nil)

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params": map[string]interface{}{
			"uri": "fieldmap://profiles",
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Contents []struct {
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result.Contents) == 0 {
		t.Fatal("no resource contents")
	}

	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resp.Result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("parsing resource payload: %v", err)
	}
	if payload.Count != 3 {
		t.Errorf("count = %d, want 3", payload.Count)
	}
}
