package mcp

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chatimitate/feishu-chatimitate/internal/api"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// BanInput is the input for chatimitate_ban
type BanInput struct {
	GroupID string `json:"group_id" jsonschema:"the group chat id the reply was sent to"`
	BotID   string `json:"bot_id" jsonschema:"the open_id of the bot that sent the reply"`
	Target  string `json:"target,omitempty" jsonschema:"substring of the reply to ban; empty bans the latest reply"`
	Reason  string `json:"reason,omitempty" jsonschema:"why the reply is banned"`
}

// BanOutput is the output for chatimitate_ban
type BanOutput struct {
	Banned bool `json:"banned"`
}

// EmptyInput is used by tools that take no arguments
type EmptyInput struct{}

// StatusOutput reports a completed maintenance action
type StatusOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StatsOutput is the output for chatimitate_stats
type StatsOutput struct {
	Groups         int    `json:"groups"`
	CachedMessages int    `json:"cached_messages"`
	LedgerEntries  int    `json:"ledger_entries"`
	ActiveBans     int    `json:"active_bans"`
	ReserveBans    int    `json:"reserve_bans"`
	GlobalBans     int    `json:"global_bans"`
	StoredContexts int    `json:"stored_contexts"`
	LastSave       string `json:"last_save,omitempty"`
}

// SampleMessage is one sampled message; times are RFC 3339
type SampleMessage struct {
	UserID     string `json:"user_id"`
	RawMessage string `json:"raw_message"`
	PlainText  string `json:"plain_text"`
	Keywords   string `json:"keywords"`
	Time       string `json:"time"`
}

// SamplesOutput is the output for chatimitate_samples
type SamplesOutput struct {
	Samples map[string]SampleMessage `json:"samples"`
}

func toStatsOutput(s *usecase.Stats) StatsOutput {
	out := StatsOutput{
		Groups:         s.Groups,
		CachedMessages: s.CachedMessages,
		LedgerEntries:  s.LedgerEntries,
		ActiveBans:     s.ActiveBans,
		ReserveBans:    s.ReserveBans,
		GlobalBans:     s.GlobalBans,
		StoredContexts: s.StoredContexts,
	}
	if !s.LastSave.IsZero() {
		out.LastSave = s.LastSave.Format(time.RFC3339)
	}
	return out
}

func toSampleMessage(m api.Message) SampleMessage {
	return SampleMessage{
		UserID:     m.UserID,
		RawMessage: m.RawMessage,
		PlainText:  m.PlainText,
		Keywords:   m.Keywords,
		Time:       m.Time.Format(time.RFC3339),
	}
}

// registerTools registers all operator tools
func registerTools(srv *mcp.Server, h *Handler) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chatimitate_ban",
		Description: "Ban a reply the bot recently sent in a group. The banned answer is never chosen again for that trigger, and repeated bans blacklist it for the group.",
	}, h.handleBan)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chatimitate_sync",
		Description: "Flush cached messages and blacklists to the database now.",
	}, h.handleSync)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chatimitate_clearup",
		Description: "Prune learned contexts nobody triggered recently and trim low-value answers.",
	}, h.handleClearup)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chatimitate_update_global_blacklist",
		Description: "Recompute the global blacklist from answers banned in several groups.",
	}, h.handleUpdateGlobalBlacklist)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chatimitate_stats",
		Description: "Show the size of the engine's in-memory caches and stored contexts.",
	}, h.handleStats)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chatimitate_samples",
		Description: "Show one recently learned message per group.",
	}, h.handleSamples)
}
