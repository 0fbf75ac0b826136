package repo

import (
	"context"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// ContextRepo stores learned contexts with their answers and bans
type ContextRepo interface {
	// GetContext returns the context for keywords, or nil if none exists
	GetContext(ctx context.Context, keywords string) (*domain.Context, error)

	// SaveContext upserts by keywords, replacing its answers and bans
	SaveContext(ctx context.Context, c *domain.Context) error

	// PruneContexts deletes stale contexts and answers atomically
	PruneContexts(ctx context.Context, opts domain.PruneOptions) (*domain.PruneResult, error)

	// CountContexts returns the number of stored contexts
	CountContexts(ctx context.Context) (int, error)
}
