package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
)

// botConfigRepo implements the bot config repository
type botConfigRepo struct {
	db *sql.DB
}

// NewBotConfigRepo creates a new bot config repository
func NewBotConfigRepo(db *sql.DB) repo.BotConfigRepo {
	return &botConfigRepo{db: db}
}

func (r *botConfigRepo) GetBotConfig(ctx context.Context, accountID string) (*domain.BotConfig, error) {
	var takenName string
	err := r.db.QueryRowContext(ctx, `
		SELECT taken_name FROM bot_config WHERE account = ?
	`, accountID).Scan(&takenName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot config: %w", err)
	}

	cfg := &domain.BotConfig{AccountID: accountID}
	if err := json.Unmarshal([]byte(takenName), &cfg.TakenName); err != nil {
		return nil, fmt.Errorf("failed to decode taken_name: %w", err)
	}
	return cfg, nil
}

func (r *botConfigRepo) SaveBotConfig(ctx context.Context, cfg *domain.BotConfig) error {
	takenName := cfg.TakenName
	if takenName == nil {
		takenName = map[string]string{}
	}
	encoded, err := json.Marshal(takenName)
	if err != nil {
		return fmt.Errorf("failed to encode taken_name: %w", err)
	}

	now := time.Now().Unix()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bot_config (account, taken_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			taken_name = excluded.taken_name,
			updated_at = excluded.updated_at
	`, cfg.AccountID, string(encoded), now, now)
	if err != nil {
		return fmt.Errorf("failed to save bot config: %w", err)
	}
	return nil
}
