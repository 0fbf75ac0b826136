package data

import (
	"database/sql"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
)

// Repositories contains all repositories backed by one database
type Repositories struct {
	Contexts   repo.ContextRepo
	Messages   repo.MessageRepo
	Blacklists repo.BlacklistRepo
	BotConfigs repo.BotConfigRepo

	db *sql.DB
}

// NewRepositories opens the database at dbPath and creates all repositories
func NewRepositories(dbPath string) (*Repositories, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Contexts:   NewContextRepo(db),
		Messages:   NewMessageRepo(db),
		Blacklists: NewBlacklistRepo(db),
		BotConfigs: NewBotConfigRepo(db),
		db:         db,
	}, nil
}

// Close closes the underlying database
func (r *Repositories) Close() error {
	return r.db.Close()
}
