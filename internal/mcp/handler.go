package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chatimitate/feishu-chatimitate/internal/api"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// Relay is the operator API as seen by the MCP tools
type Relay interface {
	Ban(ctx context.Context, req api.BanRequest) (bool, error)
	Sync(ctx context.Context) error
	Clearup(ctx context.Context) (*api.ClearupResponse, error)
	UpdateGlobalBlacklist(ctx context.Context) error
	Stats(ctx context.Context) (*usecase.Stats, error)
	Samples(ctx context.Context) (map[string]api.Message, error)
}

// Handler handles MCP tool calls by relaying them to the local API
type Handler struct {
	client Relay
}

// NewHandler creates a new MCP handler
func NewHandler(client Relay) *Handler {
	return &Handler{client: client}
}

// NewServer creates an MCP server exposing the operator tools
func NewServer(client Relay) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "chatimitate",
		Version: "v1.0.0",
	}, nil)
	registerTools(srv, NewHandler(client))
	return srv
}

// Run serves the operator tools over stdio until ctx is done
func Run(ctx context.Context, client Relay) error {
	return NewServer(client).Run(ctx, &mcp.StdioTransport{})
}

func (h *Handler) handleBan(ctx context.Context, req *mcp.CallToolRequest, input BanInput) (*mcp.CallToolResult, BanOutput, error) {
	if input.GroupID == "" || input.BotID == "" {
		return nil, BanOutput{}, fmt.Errorf("group_id and bot_id are required")
	}
	banned, err := h.client.Ban(ctx, api.BanRequest{
		GroupID: input.GroupID,
		BotID:   input.BotID,
		Target:  input.Target,
		Reason:  input.Reason,
	})
	if err != nil {
		return nil, BanOutput{}, err
	}
	return nil, BanOutput{Banned: banned}, nil
}

func (h *Handler) handleSync(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatusOutput, error) {
	if err := h.client.Sync(ctx); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Success: true, Message: "caches flushed"}, nil
}

func (h *Handler) handleClearup(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, api.ClearupResponse, error) {
	res, err := h.client.Clearup(ctx)
	if err != nil {
		return nil, api.ClearupResponse{}, err
	}
	return nil, *res, nil
}

func (h *Handler) handleUpdateGlobalBlacklist(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatusOutput, error) {
	if err := h.client.UpdateGlobalBlacklist(ctx); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Success: true, Message: "global blacklist updated"}, nil
}

func (h *Handler) handleStats(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := h.client.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, toStatsOutput(stats), nil
}

func (h *Handler) handleSamples(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, SamplesOutput, error) {
	samples, err := h.client.Samples(ctx)
	if err != nil {
		return nil, SamplesOutput{}, err
	}
	out := SamplesOutput{Samples: make(map[string]SampleMessage, len(samples))}
	for g, m := range samples {
		out.Samples[g] = toSampleMessage(m)
	}
	return nil, out, nil
}
