package usecase

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
)

// ChatDeps are the collaborators of ChatUsecase. Any of them may be nil; the
// affected operations then degrade to no-ops.
type ChatDeps struct {
	Contexts       repo.ContextRepo
	Messages       repo.MessageRepo
	Blacklists     repo.BlacklistRepo
	BotConfigs     repo.BotConfigRepo
	Tokenizer      repo.Tokenizer
	Transliterator repo.Transliterator
}

// ChatUsecase is the learning and reply engine. It owns the in-memory working
// set shared by inbound handling and the schedulers.
type ChatUsecase struct {
	contexts       repo.ContextRepo
	messages       repo.MessageRepo
	blacklists     repo.BlacklistRepo
	botConfigs     repo.BotConfigRepo
	tokenizer      repo.Tokenizer
	transliterator repo.Transliterator

	config EngineConfig
	log    *slog.Logger
	now    func() time.Time
	rnd    *lockedRand

	msgMu    sync.Mutex
	groupMsg map[string][]*domain.Message
	lastSave time.Time

	replyMu sync.Mutex
	replies map[string]map[string][]*domain.ReplyRecord // group -> bot -> ledger

	topicsMu sync.Mutex
	topics   map[string]*domain.Ring[string]
	spoken   map[string]*domain.Ring[string]

	blacklistMu  sync.Mutex
	blackActive  map[string]domain.KeywordSet
	blackReserve map[string]domain.KeywordSet
}

// NewChatUsecase creates the engine
func NewChatUsecase(deps ChatDeps, config EngineConfig) *ChatUsecase {
	config.AnswerThresholdWeights = append([]int(nil), config.AnswerThresholdWeights...)
	return &ChatUsecase{
		contexts:       deps.Contexts,
		messages:       deps.Messages,
		blacklists:     deps.Blacklists,
		botConfigs:     deps.BotConfigs,
		tokenizer:      deps.Tokenizer,
		transliterator: deps.Transliterator,
		config:         config,
		log:            slog.Default().With("component", "chat"),
		now:            time.Now,
		rnd:            newLockedRand(time.Now().UnixNano()),
		groupMsg:       make(map[string][]*domain.Message),
		replies:        make(map[string]map[string][]*domain.ReplyRecord),
		topics:         make(map[string]*domain.Ring[string]),
		spoken:         make(map[string]*domain.Ring[string]),
		blackActive:    make(map[string]domain.KeywordSet),
		blackReserve:   make(map[string]domain.KeywordSet),
	}
}

// Config returns the engine configuration
func (uc *ChatUsecase) Config() EngineConfig {
	return uc.config
}

// groupMessages returns a snapshot of the cached messages of a group
func (uc *ChatUsecase) groupMessages(groupID string) []*domain.Message {
	uc.msgMu.Lock()
	defer uc.msgMu.Unlock()
	return append([]*domain.Message(nil), uc.groupMsg[groupID]...)
}

// ledger returns a snapshot of a bot's reply ledger in a group
func (uc *ChatUsecase) ledger(groupID, botID string) []*domain.ReplyRecord {
	uc.replyMu.Lock()
	defer uc.replyMu.Unlock()
	return append([]*domain.ReplyRecord(nil), uc.replies[groupID][botID]...)
}

// appendReply adds a ledger entry, keeping at most SaveReservedSize of them
func (uc *ChatUsecase) appendReply(groupID, botID string, rec *domain.ReplyRecord) {
	uc.replyMu.Lock()
	defer uc.replyMu.Unlock()
	bots := uc.replies[groupID]
	if bots == nil {
		bots = make(map[string][]*domain.ReplyRecord)
		uc.replies[groupID] = bots
	}
	entries := append(bots[botID], rec)
	if over := len(entries) - uc.config.SaveReservedSize; over > 0 && uc.config.SaveReservedSize > 0 {
		entries = append([]*domain.ReplyRecord(nil), entries[over:]...)
	}
	bots[botID] = entries
}

// pushTopicsLocked folds keywords into the group's recent-topics window.
// Caller must hold topicsMu.
func (uc *ChatUsecase) pushTopicsLocked(groupID string, keywords ...string) {
	ring := uc.topics[groupID]
	if ring == nil {
		ring = domain.NewRing[string](uc.config.TopicsSize)
		uc.topics[groupID] = ring
	}
	ring.Push(keywords...)
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
