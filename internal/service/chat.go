package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// ChatService learns from inbound group messages and delivers the replies
type ChatService struct {
	chatUC   *usecase.ChatUsecase
	chatRepo repo.ChatRepo
	log      *slog.Logger

	// per-group outbound pacing
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	sendEvery  time.Duration

	// pause between consecutive segments of one reply
	jitter func() time.Duration
}

// NewChatService creates a new chat service
func NewChatService(chatUC *usecase.ChatUsecase, chatRepo repo.ChatRepo) *ChatService {
	return &ChatService{
		chatUC:    chatUC,
		chatRepo:  chatRepo,
		log:       slog.Default().With("component", "chat_service"),
		limiters:  make(map[string]*rate.Limiter),
		sendEvery: time.Second,
		jitter: func() time.Duration {
			return time.Duration(1+rand.Intn(3)) * time.Second
		},
	}
}

// HandleMessage learns ev and sends whatever the engine answers
func (s *ChatService) HandleMessage(ctx context.Context, ev domain.ChatEvent) error {
	if ev.BotID != "" && ev.UserID == ev.BotID {
		return nil
	}

	f := s.chatUC.Extract(ev)
	s.chatUC.Learn(ctx, f)

	segments := s.chatUC.Answer(ctx, f)
	if len(segments) == 0 {
		return nil
	}
	s.log.Debug("answering", "group", ev.GroupID, "segments", len(segments))
	return s.Deliver(ctx, ev.GroupID, segments, "")
}

// Deliver sends segments in order. When mention is set the first segment
// @mentions that user. A failed segment does not stop the rest.
func (s *ChatService) Deliver(ctx context.Context, groupID string, segments []string, mention string) error {
	limiter := s.limiter(groupID)

	var errs []error
	for i, seg := range segments {
		if i > 0 {
			if err := sleepCtx(ctx, s.jitter()); err != nil {
				return err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		var err error
		if i == 0 && mention != "" {
			err = s.chatRepo.SendTextWithMention(ctx, groupID, seg, mention)
		} else {
			err = s.chatRepo.SendText(ctx, groupID, seg)
		}
		if err != nil {
			s.log.Warn("failed to send reply", "group", groupID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ChatService) limiter(groupID string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[groupID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.sendEvery), 1)
		s.limiters[groupID] = l
	}
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
