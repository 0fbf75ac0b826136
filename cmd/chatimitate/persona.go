package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/conf"
	"github.com/chatimitate/feishu-chatimitate/internal/data"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage which member a bot imitates when speaking proactively",
}

var personaSetCmd = &cobra.Command{
	Use:   "set <bot> <group> <user>",
	Short: "Imitate user in group when bot speaks on its own",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := openRepos()
		if err != nil {
			return err
		}
		defer repos.Close()

		bot, group, user := args[0], args[1], args[2]
		cfg, err := repos.BotConfigs.GetBotConfig(cmd.Context(), bot)
		if err != nil {
			return err
		}
		if cfg == nil {
			cfg = &domain.BotConfig{AccountID: bot}
		}
		if cfg.TakenName == nil {
			cfg.TakenName = make(map[string]string)
		}
		cfg.TakenName[group] = user

		if err := repos.BotConfigs.SaveBotConfig(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s imitates %s in %s\n", bot, user, group)
		return nil
	},
}

var personaUnsetCmd = &cobra.Command{
	Use:   "unset <bot> <group>",
	Short: "Stop imitating a specific member in group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := openRepos()
		if err != nil {
			return err
		}
		defer repos.Close()

		cfg, err := repos.BotConfigs.GetBotConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if cfg == nil {
			return nil
		}
		delete(cfg.TakenName, args[1])
		return repos.BotConfigs.SaveBotConfig(cmd.Context(), cfg)
	},
}

func init() {
	personaCmd.AddCommand(personaSetCmd, personaUnsetCmd)
}

func openRepos() (*data.Repositories, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openReposWith(cfg)
}

func openReposWith(cfg *conf.Config) (*data.Repositories, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	repos, err := data.NewRepositories(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return repos, nil
}
