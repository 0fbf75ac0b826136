package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatimitate/feishu-chatimitate/internal/api"
	"github.com/chatimitate/feishu-chatimitate/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve operator tools over MCP stdio, relaying to a running bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if url := os.Getenv("CHATIMITATE_API_URL"); url != "" {
			return runMCP(url)
		}
		return runMCP(cfg.APIBaseURL())
	},
}

func runMCP(baseURL string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return mcp.Run(ctx, api.NewClient(baseURL))
}

var (
	banGroup  string
	banBot    string
	banReason string
)

var banCmd = &cobra.Command{
	Use:   "ban [keyword]",
	Short: "Ban the bot's latest reply in a group, or a specific keyword",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		req := api.BanRequest{GroupID: banGroup, BotID: banBot, Reason: banReason}
		if len(args) == 1 {
			req.Target = args[0]
		}

		banned, err := api.NewClient(cfg.APIBaseURL()).Ban(cmd.Context(), req)
		if err != nil {
			return err
		}
		if !banned {
			return fmt.Errorf("nothing to ban in group %s", banGroup)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "banned")
		return nil
	},
}

var clearupCmd = &cobra.Command{
	Use:   "clearup",
	Short: "Prune stale contexts and answers directly in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		uc, repos, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer repos.Close()

		result, err := uc.ClearupContext(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, api.ClearupResponse{
			ContextsDeleted: result.ContextsDeleted,
			AnswersDeleted:  result.AnswersDeleted,
			ContextsCleared: result.ContextsCleared,
		})
	},
}

func init() {
	banCmd.Flags().StringVarP(&banGroup, "group", "g", "", "Group chat id")
	banCmd.Flags().StringVarP(&banBot, "bot", "b", "", "Bot open id")
	banCmd.Flags().StringVarP(&banReason, "reason", "r", "CliBan", "Ban reason recorded with the keyword")
	_ = banCmd.MarkFlagRequired("group")
	_ = banCmd.MarkFlagRequired("bot")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
