package collector

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/induslabs/pulse/collector/internal/extract"
	"github.com/induslabs/pulse/collector/internal/timeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "modernc.org/sqlite"
)

var testImpl = &mcp.Implementation{Name: "pulse-test", Version: "0.1.0"}

// mcpSession builds a Service whose fake run yields two fresh replies, and
// returns a connected client session that can call tools end-to-end.
func mcpSession(t *testing.T) (*Service, *mcp.ClientSession) {
	t.Helper()

	items := fakeItems("901", "902")
	items[0].CreatedAt = time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	items[1].CreatedAt = time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	fx := &fakeExtractor{
		replies: map[string]*extract.Result{"p1": {Items: items}},
	}
	cfg := &Config{Monitor: MonitorConfig{Handle: "acmeai"}}
	posts := []timeline.Post{{ID: "p1", Handle: "acmeai", Preview: "post"}}
	svc := testService(t, cfg, fx, posts)

	srv := mcp.NewServer(testImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return svc, session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_Collect(t *testing.T) {
	_, session := mcpSession(t)

	text := callTool(t, session, "pulse_collect", map[string]any{"since": "24h"})

	var resp struct {
		NewItems int     `json:"new_items"`
		Items    []*Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.NewItems != 2 {
		t.Fatalf("new_items = %d, want 2", resp.NewItems)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].Category == "" {
		t.Error("collected items must carry a category")
	}

	// Second pass: everything already stored.
	text = callTool(t, session, "pulse_collect", map[string]any{})
	json.Unmarshal([]byte(text), &resp)
	if resp.NewItems != 0 {
		t.Errorf("second collect new_items = %d, want 0", resp.NewItems)
	}
}

func TestMCP_ListFeedback(t *testing.T) {
	svc, session := mcpSession(t)

	if _, err := svc.Run(context.Background(), "", nil); err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "pulse_list_feedback", map[string]any{})
	var items []*Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	// Newest first.
	if items[0].ID != "901" {
		t.Errorf("items[0].ID = %q, want 901", items[0].ID)
	}

	text = callTool(t, session, "pulse_list_feedback", map[string]any{"limit": 1})
	json.Unmarshal([]byte(text), &items)
	if len(items) != 1 {
		t.Fatalf("limited items = %d, want 1", len(items))
	}
}

func TestMCP_Stats(t *testing.T) {
	svc, session := mcpSession(t)

	// Empty store first.
	text := callTool(t, session, "pulse_stats", map[string]any{})
	var stats Stats
	if err := json.Unmarshal([]byte(text), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("empty store total = %d", stats.Total)
	}

	if _, err := svc.Run(context.Background(), "", nil); err != nil {
		t.Fatal(err)
	}

	text = callTool(t, session, "pulse_stats", map[string]any{})
	json.Unmarshal([]byte(text), &stats)
	if stats.Total != 2 || stats.TimelineReplies != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.FeatureRequests != 2 {
		t.Errorf("FeatureRequests = %d, want 2", stats.FeatureRequests)
	}
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
}

func TestMCP_RunHistory(t *testing.T) {
	svc, session := mcpSession(t)

	if _, err := svc.Run(context.Background(), "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Run(context.Background(), "", nil); err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "pulse_run_history", map[string]any{})
	var runs []*RunRecord
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Status != RunStatusOK {
		t.Errorf("latest run status = %q", runs[0].Status)
	}
	if runs[0].StartedAt < runs[1].StartedAt {
		t.Error("runs are not newest first")
	}

	text = callTool(t, session, "pulse_run_history", map[string]any{"limit": 1})
	json.Unmarshal([]byte(text), &runs)
	if len(runs) != 1 {
		t.Fatalf("limited runs = %d, want 1", len(runs))
	}
}
