package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/infra/feishu"
	"github.com/chatimitate/feishu-chatimitate/internal/service"
)

const (
	seenTTL = 5 * time.Minute
	// queueSize bounds the backlog of one chat before delivery blocks
	queueSize = 128
)

// EventHandler processes one inbound chat event
type EventHandler interface {
	HandleMessage(ctx context.Context, ev domain.ChatEvent) error
}

// MessageSource is the inbound side of the Feishu client
type MessageSource interface {
	OnMessage(handler feishu.MessageHandler)
	BotOpenID() string
	Start() error
	Stop()
}

// FeishuServer feeds Feishu group messages to the chat service and runs the schedulers
type FeishuServer struct {
	client      MessageSource
	chatSvc     EventHandler
	maintenance *service.MaintenanceScheduler
	speak       *service.SpeakScheduler
	log         *slog.Logger

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
	now        func() time.Time

	// One worker per chat keeps a group's messages in arrival order
	queuesMu sync.Mutex
	queues   map[string]chan domain.ChatEvent
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewFeishuServer creates a new Feishu server; either scheduler may be nil
func NewFeishuServer(
	client MessageSource,
	chatSvc EventHandler,
	maintenance *service.MaintenanceScheduler,
	speak *service.SpeakScheduler,
) *FeishuServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &FeishuServer{
		client:      client,
		chatSvc:     chatSvc,
		maintenance: maintenance,
		speak:       speak,
		log:         slog.Default().With("component", "server"),
		seenMsgs:    make(map[string]time.Time),
		now:         time.Now,
		queues:      make(map[string]chan domain.ChatEvent),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the schedulers and blocks on the Feishu connection
func (s *FeishuServer) Start(ctx context.Context) error {
	if s.maintenance != nil {
		s.maintenance.Start(ctx)
	}
	if s.speak != nil {
		s.speak.Start(ctx)
	}

	s.client.OnMessage(s.handleMessage)
	return s.client.Start()
}

// Stop stops the schedulers and disconnects
func (s *FeishuServer) Stop() {
	s.client.Stop()
	if s.speak != nil {
		s.speak.Stop()
	}
	s.cancel()
	s.wg.Wait()
	if s.maintenance != nil {
		s.maintenance.Stop()
	}
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	if msg.ChatType != "group" {
		s.log.Debug("ignoring non-group message", "chat", msg.ChatID, "chat_type", msg.ChatType)
		return
	}

	// Feishu redelivers events it thinks were not acknowledged
	if !s.markMessageSeen(msg.MsgID) {
		s.log.Debug("duplicate message ignored", "msg_id", msg.MsgID)
		return
	}

	s.enqueue(toChatEvent(msg, s.client.BotOpenID()))
}

// enqueue hands ev to its chat's worker, starting one if needed
func (s *FeishuServer) enqueue(ev domain.ChatEvent) {
	s.queuesMu.Lock()
	q, ok := s.queues[ev.GroupID]
	if !ok {
		q = make(chan domain.ChatEvent, queueSize)
		s.queues[ev.GroupID] = q
		s.wg.Add(1)
		go s.drain(ev.GroupID, q)
	}
	s.queuesMu.Unlock()

	select {
	case q <- ev:
	case <-s.ctx.Done():
	}
}

func (s *FeishuServer) drain(chatID string, q <-chan domain.ChatEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-q:
			if err := s.chatSvc.HandleMessage(s.ctx, ev); err != nil {
				s.log.Warn("handle message error", "chat", chatID, "error", err)
			}
		}
	}
}

func toChatEvent(msg *feishu.Message, botID string) domain.ChatEvent {
	ev := domain.ChatEvent{
		MessageID:  msg.MsgID,
		GroupID:    msg.ChatID,
		UserID:     msg.SenderID,
		BotID:      botID,
		RawMessage: msg.Raw,
		PlainText:  msg.Plain,
	}
	if msg.CreateTime > 0 {
		ev.Time = time.UnixMilli(msg.CreateTime)
	}
	return ev
}

// markMessageSeen records msgID and reports whether it was new
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	if _, exists := s.seenMsgs[msgID]; exists {
		return false
	}
	s.seenMsgs[msgID] = now

	// Clean up expired records when marking new messages
	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
