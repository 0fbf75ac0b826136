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

// contextRepo implements the context repository
type contextRepo struct {
	db *sql.DB
}

// NewContextRepo creates a new context repository
func NewContextRepo(db *sql.DB) repo.ContextRepo {
	return &contextRepo{db: db}
}

func (r *contextRepo) GetContext(ctx context.Context, keywords string) (*domain.Context, error) {
	var c domain.Context
	var t, clearTime int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, keywords, time, trigger_count, clear_time
		FROM contexts WHERE keywords = ?
	`, keywords).Scan(&c.ID, &c.Keywords, &t, &c.TriggerCount, &clearTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	c.Time = fromUnix(t)
	c.ClearTime = fromUnix(clearTime)

	if c.Answers, err = r.loadAnswers(ctx, c.ID); err != nil {
		return nil, err
	}
	if c.Bans, err = r.loadBans(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contextRepo) loadAnswers(ctx context.Context, contextID int64) ([]*domain.Answer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT keywords, group_id, count, time, messages
		FROM answers WHERE context_id = ? ORDER BY id
	`, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	var answers []*domain.Answer
	for rows.Next() {
		var a domain.Answer
		var t int64
		var messages string
		if err := rows.Scan(&a.Keywords, &a.GroupID, &a.Count, &t, &messages); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		a.Time = fromUnix(t)
		if err := json.Unmarshal([]byte(messages), &a.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode answer messages: %w", err)
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}

func (r *contextRepo) loadBans(ctx context.Context, contextID int64) ([]*domain.Ban, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT keywords, group_id, reason, time
		FROM bans WHERE context_id = ? ORDER BY id
	`, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bans: %w", err)
	}
	defer rows.Close()

	var bans []*domain.Ban
	for rows.Next() {
		var b domain.Ban
		var t int64
		if err := rows.Scan(&b.Keywords, &b.GroupID, &b.Reason, &t); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		b.Time = fromUnix(t)
		bans = append(bans, &b)
	}
	return bans, rows.Err()
}

// SaveContext upserts the context row and rewrites its answers and bans in one transaction
func (r *contextRepo) SaveContext(ctx context.Context, c *domain.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO contexts (keywords, time, trigger_count, clear_time, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(keywords) DO UPDATE SET
			time = excluded.time,
			trigger_count = excluded.trigger_count,
			clear_time = excluded.clear_time,
			updated_at = excluded.updated_at
		RETURNING id
	`, c.Keywords, toUnix(c.Time), c.TriggerCount, toUnix(c.ClearTime), time.Now().Unix()).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE context_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bans WHERE context_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear bans: %w", err)
	}

	for _, a := range c.Answers {
		messages, err := json.Marshal(nonNil(a.Messages))
		if err != nil {
			return fmt.Errorf("failed to encode answer messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO answers (context_id, keywords, group_id, count, time, messages)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, a.Keywords, a.GroupID, a.Count, toUnix(a.Time), string(messages)); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
	}
	for _, b := range c.Bans {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bans (context_id, keywords, group_id, reason, time)
			VALUES (?, ?, ?, ?, ?)
		`, id, b.Keywords, b.GroupID, b.Reason, toUnix(b.Time)); err != nil {
			return fmt.Errorf("failed to save ban: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit context: %w", err)
	}
	c.ID = id
	return nil
}

// PruneContexts deletes contexts that were never learned and trims stale
// answers of the remaining ones. Everything rolls back on failure.
func (r *contextRepo) PruneContexts(ctx context.Context, opts domain.PruneOptions) (*domain.PruneResult, error) {
	exp := toUnix(opts.Expiration)
	res := &domain.PruneResult{}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	unlearned := `
		SELECT id FROM contexts
		WHERE time < ?
		  AND trigger_count < ?
		  AND id NOT IN (
			  SELECT DISTINCT context_id FROM answers
			  WHERE count > 1 OR time > ?
		  )`
	for _, table := range []string{"answers", "bans"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE context_id IN ("+unlearned+")",
			exp, opts.TriggerThreshold, exp); err != nil {
			return nil, fmt.Errorf("failed to delete %s of stale contexts: %w", table, err)
		}
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM contexts WHERE id IN ("+unlearned+")",
		exp, opts.TriggerThreshold, exp)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale contexts: %w", err)
	}
	res.ContextsDeleted, _ = result.RowsAffected()

	due := `SELECT id FROM contexts WHERE trigger_count > ? OR clear_time < ?`
	result, err = tx.ExecContext(ctx, `
		DELETE FROM answers
		WHERE context_id IN (`+due+`)
		  AND NOT (count > 1 OR time > ?)
	`, opts.HeavyTriggerCount, exp, exp)
	if err != nil {
		return nil, fmt.Errorf("failed to trim answers: %w", err)
	}
	res.AnswersDeleted, _ = result.RowsAffected()

	result, err = tx.ExecContext(ctx, `
		UPDATE contexts SET clear_time = ?, updated_at = ?
		WHERE id IN (`+due+`)
	`, toUnix(opts.Now), time.Now().Unix(), opts.HeavyTriggerCount, exp)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp clear time: %w", err)
	}
	res.ContextsCleared, _ = result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit prune: %w", err)
	}
	return res, nil
}

func (r *contextRepo) CountContexts(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contexts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count contexts: %w", err)
	}
	return n, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
