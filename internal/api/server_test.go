package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// MockEngine implements Engine for testing
type MockEngine struct {
	banArgs    []string
	banResult  bool
	syncs      int
	globals    int
	clearupErr error
	samples    map[string]*domain.Message
}

func (m *MockEngine) Ban(ctx context.Context, groupID, botID, target, reason string) bool {
	m.banArgs = []string{groupID, botID, target, reason}
	return m.banResult
}

func (m *MockEngine) Sync(ctx context.Context) { m.syncs++ }

func (m *MockEngine) ClearupContext(ctx context.Context) (*domain.PruneResult, error) {
	if m.clearupErr != nil {
		return nil, m.clearupErr
	}
	return &domain.PruneResult{ContextsDeleted: 2, AnswersDeleted: 5, ContextsCleared: 1}, nil
}

func (m *MockEngine) UpdateGlobalBlacklist(ctx context.Context) { m.globals++ }

func (m *MockEngine) Stats(ctx context.Context) usecase.Stats {
	return usecase.Stats{Groups: 3, CachedMessages: 42}
}

func (m *MockEngine) SampleMessages() map[string]*domain.Message {
	return m.samples
}

func TestHandleBan(t *testing.T) {
	engine := &MockEngine{banResult: true}
	server := NewServer(engine, 0)

	body, _ := json.Marshal(BanRequest{GroupID: "oc_g", BotID: "ou_bot", Target: "晴天"})
	req := httptest.NewRequest(http.MethodPost, "/api/ban", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var result BanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !result.Banned {
		t.Error("Expected banned=true")
	}
	if engine.banArgs[2] != "晴天" {
		t.Errorf("Expected target 晴天, got %q", engine.banArgs[2])
	}
	if engine.banArgs[3] != "ApiBan" {
		t.Errorf("Expected default reason ApiBan, got %q", engine.banArgs[3])
	}
}

func TestHandleBan_MissingFields(t *testing.T) {
	server := NewServer(&MockEngine{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/ban", bytes.NewReader([]byte(`{"group_id":"oc_g"}`)))
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleBan_MethodNotAllowed(t *testing.T) {
	server := NewServer(&MockEngine{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/ban", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHandleClearup_Error(t *testing.T) {
	server := NewServer(&MockEngine{clearupErr: errors.New("failed to clear up contexts: locked")}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/clearup", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	server := NewServer(&MockEngine{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("Expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestClient_RoundTrip(t *testing.T) {
	engine := &MockEngine{
		banResult: true,
		samples: map[string]*domain.Message{
			"oc_g": {GroupID: "oc_g", UserID: "ou_a", PlainText: "早", Time: time.Unix(1700000000, 0)},
		},
	}
	ts := httptest.NewServer(NewServer(engine, 0).Router())
	defer ts.Close()

	ctx := context.Background()
	client := NewClient(ts.URL)

	banned, err := client.Ban(ctx, BanRequest{GroupID: "oc_g", BotID: "ou_bot"})
	if err != nil {
		t.Fatalf("ban: %v", err)
	}
	if !banned {
		t.Error("Expected ban to succeed")
	}

	if err := client.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if engine.syncs != 1 {
		t.Errorf("Expected 1 sync, got %d", engine.syncs)
	}

	if err := client.UpdateGlobalBlacklist(ctx); err != nil {
		t.Fatalf("global blacklist: %v", err)
	}
	if engine.globals != 1 {
		t.Errorf("Expected 1 global update, got %d", engine.globals)
	}

	res, err := client.Clearup(ctx)
	if err != nil {
		t.Fatalf("clearup: %v", err)
	}
	if res.ContextsDeleted != 2 || res.AnswersDeleted != 5 {
		t.Errorf("Expected 2/5 deleted, got %+v", res)
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CachedMessages != 42 {
		t.Errorf("Expected 42 cached messages, got %d", stats.CachedMessages)
	}

	samples, err := client.Samples(ctx)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if samples["oc_g"].PlainText != "早" {
		t.Errorf("Expected sample 早, got %q", samples["oc_g"].PlainText)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(NewServer(&MockEngine{clearupErr: errors.New("boom")}, 0).Router())
	defer ts.Close()

	if _, err := NewClient(ts.URL).Clearup(context.Background()); err == nil {
		t.Error("Expected error for 500 response")
	}
}
