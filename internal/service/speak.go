package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Speaker picks something to say in a quiet group
type Speaker interface {
	Speak(ctx context.Context) *domain.SpeakResult
}

// SpeakScheduler polls the engine for proactive lines and delivers them
type SpeakScheduler struct {
	speaker      Speaker
	chatSvc      *ChatService
	pollInterval time.Duration
	log          *slog.Logger

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSpeakScheduler creates a new speak scheduler
func NewSpeakScheduler(speaker Speaker, chatSvc *ChatService, pollInterval time.Duration) *SpeakScheduler {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	return &SpeakScheduler{
		speaker:      speaker,
		chatSvc:      chatSvc,
		pollInterval: pollInterval,
		log:          slog.Default().With("component", "speak"),
	}
}

// Start starts the poll loop
func (r *SpeakScheduler) Start(ctx context.Context) {
	if r.running {
		return
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop()
	r.log.Info("started", "poll_interval", r.pollInterval)
}

// Stop stops the poll loop and waits for an in-flight delivery
func (r *SpeakScheduler) Stop() {
	if !r.running {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.running = false
	r.log.Info("stopped")
}

func (r *SpeakScheduler) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick(r.ctx)
		}
	}
}

// tick runs one speak pass
func (r *SpeakScheduler) tick(ctx context.Context) {
	res := r.speaker.Speak(ctx)
	if res == nil || len(res.Messages) == 0 {
		return
	}
	r.log.Info("speaking", "group", res.GroupID, "bot", res.BotID, "segments", len(res.Messages), "poke", res.PokeTarget != "")
	if err := r.chatSvc.Deliver(ctx, res.GroupID, res.Messages, res.PokeTarget); err != nil {
		r.log.Warn("failed to deliver speak", "group", res.GroupID, "error", err)
	}
}
