package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
	"github.com/chatimitate/feishu-chatimitate/internal/conf"
	"github.com/chatimitate/feishu-chatimitate/internal/data"
)

var (
	envFile    string
	engineFile string
)

var rootCmd = &cobra.Command{
	Use:          "chatimitate",
	Short:        "Feishu group bot that learns to talk like its members",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to the .env file")
	rootCmd.PersistentFlags().StringVar(&engineFile, "config", "", "Engine tunables YAML (default: $ENGINE_CONFIG_PATH or configs/engine.yaml)")

	rootCmd.AddCommand(serveCmd, mcpCmd, banCmd, clearupCmd, personaCmd, messagesCmd)
}

// loadConfig reads the env file and environment, and sets up logging
func loadConfig() (*conf.Config, error) {
	if err := conf.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if engineFile != "" {
		cfg.EngineConfigPath = engineFile
	}
	setupLogging(cfg.Debug)
	return cfg, nil
}

// setupLogging writes to stderr so stdout stays free for command output and MCP
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openEngine opens storage and builds an engine without a tokenizer,
// for offline commands that never extract keywords.
func openEngine(cfg *conf.Config) (*usecase.ChatUsecase, *data.Repositories, error) {
	engineCfg, err := conf.LoadEngineConfig(cfg.EngineConfigPath)
	if err != nil {
		return nil, nil, err
	}
	repos, err := openReposWith(cfg)
	if err != nil {
		return nil, nil, err
	}
	uc := usecase.NewChatUsecase(usecase.ChatDeps{
		Contexts:       repos.Contexts,
		Messages:       repos.Messages,
		Blacklists:     repos.Blacklists,
		BotConfigs:     repos.BotConfigs,
		Transliterator: data.NewTransliterator(),
	}, engineCfg)
	return uc, repos, nil
}
