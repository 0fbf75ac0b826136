package repo

import (
	"context"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// BlacklistRepo stores per-group blacklists
type BlacklistRepo interface {
	GetBlacklist(ctx context.Context, groupID string) (*domain.Blacklist, error)
	SaveBlacklist(ctx context.Context, b *domain.Blacklist) error
	ListBlacklists(ctx context.Context) ([]*domain.Blacklist, error)
}

// BotConfigRepo stores per-account settings
type BotConfigRepo interface {
	GetBotConfig(ctx context.Context, accountID string) (*domain.BotConfig, error)
	SaveBotConfig(ctx context.Context, cfg *domain.BotConfig) error
}
