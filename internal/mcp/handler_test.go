package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chatimitate/feishu-chatimitate/internal/api"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

type fakeRelay struct {
	banReq   api.BanRequest
	syncs    int
	globals  int
	syncErr  error
	lastSave time.Time
}

func (f *fakeRelay) Ban(ctx context.Context, req api.BanRequest) (bool, error) {
	f.banReq = req
	return true, nil
}

func (f *fakeRelay) Sync(ctx context.Context) error {
	f.syncs++
	return f.syncErr
}

func (f *fakeRelay) Clearup(ctx context.Context) (*api.ClearupResponse, error) {
	return &api.ClearupResponse{ContextsDeleted: 4}, nil
}

func (f *fakeRelay) UpdateGlobalBlacklist(ctx context.Context) error {
	f.globals++
	return nil
}

func (f *fakeRelay) Stats(ctx context.Context) (*usecase.Stats, error) {
	return &usecase.Stats{Groups: 2, CachedMessages: 7, LastSave: f.lastSave}, nil
}

func (f *fakeRelay) Samples(ctx context.Context) (map[string]api.Message, error) {
	return map[string]api.Message{
		"oc_g": {GroupID: "oc_g", UserID: "ou_a", PlainText: "早", Time: time.Unix(1700000000, 0).UTC()},
	}, nil
}

var testImpl = &mcp.Implementation{Name: "chatimitate-test", Version: "0.1.0"}

func newSession(t *testing.T, relay Relay) *mcp.ClientSession {
	t.Helper()
	srv := NewServer(relay)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("Expected TextContent")
	}
	return tc.Text
}

func TestTools_Listed(t *testing.T) {
	session := newSession(t, &fakeRelay{})

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	want := map[string]bool{
		"chatimitate_ban":                     false,
		"chatimitate_sync":                    false,
		"chatimitate_clearup":                 false,
		"chatimitate_update_global_blacklist": false,
		"chatimitate_stats":                   false,
		"chatimitate_samples":                 false,
	}
	for _, tool := range res.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("Expected tool %s to be registered", name)
		}
	}
}

func TestTool_Ban(t *testing.T) {
	relay := &fakeRelay{}
	session := newSession(t, relay)

	result := callTool(t, session, "chatimitate_ban", map[string]any{
		"group_id": "oc_g",
		"bot_id":   "ou_bot",
		"target":   "晴天",
	})
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", textOf(t, result))
	}

	var out BanOutput
	if err := json.Unmarshal([]byte(textOf(t, result)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Banned {
		t.Error("Expected banned=true")
	}
	if relay.banReq.Target != "晴天" || relay.banReq.GroupID != "oc_g" {
		t.Errorf("Expected request relayed, got %+v", relay.banReq)
	}
}

func TestTool_BanRequiresIDs(t *testing.T) {
	session := newSession(t, &fakeRelay{})

	result := callTool(t, session, "chatimitate_ban", map[string]any{"group_id": "", "bot_id": ""})
	if !result.IsError {
		t.Error("Expected tool error for missing ids")
	}
}

func TestTool_SyncError(t *testing.T) {
	relay := &fakeRelay{syncErr: errors.New("api down")}
	session := newSession(t, relay)

	result := callTool(t, session, "chatimitate_sync", map[string]any{})
	if !result.IsError {
		t.Error("Expected tool error when relay fails")
	}
	if relay.syncs != 1 {
		t.Errorf("Expected 1 sync attempt, got %d", relay.syncs)
	}
}

func TestTool_Stats(t *testing.T) {
	session := newSession(t, &fakeRelay{lastSave: time.Unix(1700000000, 0).UTC()})

	result := callTool(t, session, "chatimitate_stats", map[string]any{})
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", textOf(t, result))
	}
	var out StatsOutput
	if err := json.Unmarshal([]byte(textOf(t, result)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.CachedMessages != 7 {
		t.Errorf("Expected 7 cached messages, got %d", out.CachedMessages)
	}
	if out.LastSave != "2023-11-14T22:13:20Z" {
		t.Errorf("Expected RFC 3339 last save, got %q", out.LastSave)
	}
}

func TestTool_Samples(t *testing.T) {
	session := newSession(t, &fakeRelay{})

	result := callTool(t, session, "chatimitate_samples", map[string]any{})
	var out SamplesOutput
	if err := json.Unmarshal([]byte(textOf(t, result)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Samples["oc_g"].PlainText != "早" {
		t.Errorf("Expected sample 早, got %+v", out.Samples)
	}
}

func TestTool_UpdateGlobalBlacklist(t *testing.T) {
	relay := &fakeRelay{}
	session := newSession(t, relay)

	result := callTool(t, session, "chatimitate_update_global_blacklist", map[string]any{})
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", textOf(t, result))
	}
	if relay.globals != 1 {
		t.Errorf("Expected 1 update, got %d", relay.globals)
	}
}
