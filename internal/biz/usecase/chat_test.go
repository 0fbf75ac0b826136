package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Mock implementations

type mockContextRepo struct {
	mu       sync.Mutex
	contexts map[string]*domain.Context
	saves    int
	pruneErr error
	pruned   *domain.PruneOptions
}

func newMockContextRepo() *mockContextRepo {
	return &mockContextRepo{contexts: make(map[string]*domain.Context)}
}

func (m *mockContextRepo) GetContext(ctx context.Context, keywords string) (*domain.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[keywords]
	if !ok {
		return nil, nil
	}
	return cloneContext(c), nil
}

func (m *mockContextRepo) SaveContext(ctx context.Context, c *domain.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[c.Keywords] = cloneContext(c)
	m.saves++
	return nil
}

func (m *mockContextRepo) PruneContexts(ctx context.Context, opts domain.PruneOptions) (*domain.PruneResult, error) {
	m.pruned = &opts
	if m.pruneErr != nil {
		return nil, m.pruneErr
	}
	return &domain.PruneResult{}, nil
}

func (m *mockContextRepo) CountContexts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contexts), nil
}

func cloneContext(c *domain.Context) *domain.Context {
	out := *c
	out.Answers = nil
	for _, a := range c.Answers {
		cp := *a
		cp.Messages = append([]string(nil), a.Messages...)
		out.Answers = append(out.Answers, &cp)
	}
	out.Bans = nil
	for _, b := range c.Bans {
		cp := *b
		out.Bans = append(out.Bans, &cp)
	}
	return &out
}

type mockMessageRepo struct {
	mu    sync.Mutex
	saved []*domain.Message
	err   error
}

func (m *mockMessageRepo) SaveMessage(ctx context.Context, msg *domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.saved = append(m.saved, msg)
	return msg.ID, nil
}

func (m *mockMessageRepo) GetMessagesByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Message, error) {
	return nil, nil
}

type mockBlacklistRepo struct {
	mu    sync.Mutex
	lists map[string]*domain.Blacklist
}

func newMockBlacklistRepo() *mockBlacklistRepo {
	return &mockBlacklistRepo{lists: make(map[string]*domain.Blacklist)}
}

func (m *mockBlacklistRepo) GetBlacklist(ctx context.Context, groupID string) (*domain.Blacklist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[groupID], nil
}

func (m *mockBlacklistRepo) SaveBlacklist(ctx context.Context, b *domain.Blacklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[b.GroupID] = b
	return nil
}

func (m *mockBlacklistRepo) ListBlacklists(ctx context.Context) ([]*domain.Blacklist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Blacklist
	for _, b := range m.lists {
		out = append(out, b)
	}
	return out, nil
}

type mockBotConfigRepo struct {
	configs map[string]*domain.BotConfig
}

func (m *mockBotConfigRepo) GetBotConfig(ctx context.Context, accountID string) (*domain.BotConfig, error) {
	return m.configs[accountID], nil
}

func (m *mockBotConfigRepo) SaveBotConfig(ctx context.Context, cfg *domain.BotConfig) error {
	m.configs[cfg.AccountID] = cfg
	return nil
}

// mockTokenizer returns the fields of text when it has several, else nothing
type mockTokenizer struct {
	err error
}

func (m *mockTokenizer) ExtractTopKeywords(text string, k int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, nil
	}
	if len(fields) > k {
		fields = fields[:k]
	}
	return fields, nil
}

type upperTransliterator struct{}

func (upperTransliterator) Transliterate(text string) string {
	return strings.ToUpper(text)
}

var errStorage = errors.New("storage down")

const (
	testBot   = "ou_bot"
	testGroup = "oc_group"
)

var baseTime = time.Unix(1700000000, 0)

type testEngine struct {
	uc         *ChatUsecase
	contexts   *mockContextRepo
	messages   *mockMessageRepo
	blacklists *mockBlacklistRepo
	botConfigs *mockBotConfigRepo
}

func newTestEngine(mutate func(*EngineConfig)) *testEngine {
	cfg := DefaultEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	te := &testEngine{
		contexts:   newMockContextRepo(),
		messages:   &mockMessageRepo{},
		blacklists: newMockBlacklistRepo(),
		botConfigs: &mockBotConfigRepo{configs: make(map[string]*domain.BotConfig)},
	}
	te.uc = NewChatUsecase(ChatDeps{
		Contexts:       te.contexts,
		Messages:       te.messages,
		Blacklists:     te.blacklists,
		BotConfigs:     te.botConfigs,
		Tokenizer:      &mockTokenizer{},
		Transliterator: upperTransliterator{},
	}, cfg)
	te.uc.rnd = newLockedRand(1)
	te.uc.now = func() time.Time { return baseTime }
	return te
}

// event builds a plain text feature sent at baseTime plus offset seconds
func (te *testEngine) event(group, user, text string, offset int) *domain.Feature {
	return te.uc.Extract(domain.ChatEvent{
		GroupID:    group,
		UserID:     user,
		BotID:      testBot,
		RawMessage: text,
		PlainText:  text,
		Time:       baseTime.Add(time.Duration(offset) * time.Second),
	})
}

func (te *testEngine) learn(group, user, text string, offset int) *domain.Feature {
	f := te.event(group, user, text, offset)
	te.uc.Learn(context.Background(), f)
	return f
}
