package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatimitate/feishu-chatimitate/internal/api"
)

var (
	messagesSince string
	messagesUntil string
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Dump logged messages in a time range as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		until := time.Now()
		since := until.Add(-24 * time.Hour)

		var err error
		if messagesSince != "" {
			if since, err = parseTimeFlag(messagesSince, until); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
		}
		if messagesUntil != "" {
			if until, err = parseTimeFlag(messagesUntil, time.Now()); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}
		}

		repos, err := openRepos()
		if err != nil {
			return err
		}
		defer repos.Close()

		msgs, err := repos.Messages.GetMessagesByTimeRange(cmd.Context(), since, until)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, m := range msgs {
			if err := enc.Encode(api.FromDomain(m)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	messagesCmd.Flags().StringVar(&messagesSince, "since", "", "Start time, RFC 3339 or a duration ago like 2h (default 24h)")
	messagesCmd.Flags().StringVar(&messagesUntil, "until", "", "End time, RFC 3339 or a duration ago (default now)")
}

// parseTimeFlag accepts RFC 3339 timestamps or a duration relative to now
func parseTimeFlag(v string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, v)
}
