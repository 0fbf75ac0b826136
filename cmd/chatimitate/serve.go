package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatimitate/feishu-chatimitate/internal/api"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
	"github.com/chatimitate/feishu-chatimitate/internal/conf"
	"github.com/chatimitate/feishu-chatimitate/internal/data"
	"github.com/chatimitate/feishu-chatimitate/internal/infra/feishu"
	"github.com/chatimitate/feishu-chatimitate/internal/server"
	"github.com/chatimitate/feishu-chatimitate/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot with its local operator API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return serve(cfg)
	},
}

func serve(cfg *conf.Config) error {
	log := slog.Default().With("component", "serve")

	engineCfg, err := conf.LoadEngineConfig(cfg.EngineConfigPath)
	if err != nil {
		return err
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer repos.Close()
	log.Info("storage opened", "path", cfg.DBPath)

	tokenizer, err := data.NewTokenizer(cfg.DictPath)
	if err != nil {
		// Engine falls back to whole-text keywords
		log.Warn("tokenizer unavailable", "error", err)
		tokenizer = nil
	}

	// Initialize usecase layer
	chatUC := usecase.NewChatUsecase(usecase.ChatDeps{
		Contexts:       repos.Contexts,
		Messages:       repos.Messages,
		Blacklists:     repos.Blacklists,
		BotConfigs:     repos.BotConfigs,
		Tokenizer:      tokenizer,
		Transliterator: data.NewTransliterator(),
	}, engineCfg)

	// Initialize service layer
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	chatSvc := service.NewChatService(chatUC, data.NewFeishuRepo(feishuClient))
	maintenance := service.NewMaintenanceScheduler(chatUC, cfg.SyncInterval)
	speak := service.NewSpeakScheduler(chatUC, chatSvc, cfg.SpeakInterval)

	apiServer := api.NewServer(chatUC, cfg.APIPort)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("api server error", "error", err)
		}
	}()
	log.Info("operator api started", "addr", cfg.APIBaseURL())

	srv := server.NewFeishuServer(feishuClient, chatSvc, maintenance, speak)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()
	log.Info("chatimitate started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		if runErr != nil {
			runErr = fmt.Errorf("server error: %w", runErr)
		}
	}

	srv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn("api shutdown failed", "error", err)
	}
	return runErr
}
