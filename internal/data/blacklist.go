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

// blacklistRepo implements the blacklist repository
type blacklistRepo struct {
	db *sql.DB
}

// NewBlacklistRepo creates a new blacklist repository
func NewBlacklistRepo(db *sql.DB) repo.BlacklistRepo {
	return &blacklistRepo{db: db}
}

func (r *blacklistRepo) GetBlacklist(ctx context.Context, groupID string) (*domain.Blacklist, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT group_id, answers, answers_reserve FROM blacklist WHERE group_id = ?
	`, groupID)
	b, err := scanBlacklist(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blacklist: %w", err)
	}
	return b, nil
}

func (r *blacklistRepo) SaveBlacklist(ctx context.Context, b *domain.Blacklist) error {
	answers, err := json.Marshal(nonNil(b.Answers))
	if err != nil {
		return fmt.Errorf("failed to encode blacklist: %w", err)
	}
	reserve, err := json.Marshal(nonNil(b.AnswersReserve))
	if err != nil {
		return fmt.Errorf("failed to encode blacklist reserve: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO blacklist (group_id, answers, answers_reserve, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			answers = excluded.answers,
			answers_reserve = excluded.answers_reserve,
			updated_at = excluded.updated_at
	`, b.GroupID, string(answers), string(reserve), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save blacklist: %w", err)
	}
	return nil
}

func (r *blacklistRepo) ListBlacklists(ctx context.Context) ([]*domain.Blacklist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, answers, answers_reserve FROM blacklist ORDER BY group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklists: %w", err)
	}
	defer rows.Close()

	var lists []*domain.Blacklist
	for rows.Next() {
		b, err := scanBlacklist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blacklist: %w", err)
		}
		lists = append(lists, b)
	}
	return lists, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlacklist(row rowScanner) (*domain.Blacklist, error) {
	var b domain.Blacklist
	var answers, reserve string
	if err := row.Scan(&b.GroupID, &answers, &reserve); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &b.Answers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reserve), &b.AnswersReserve); err != nil {
		return nil, err
	}
	return &b, nil
}
