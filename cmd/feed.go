package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var feedAck string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "List pending change notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if feedAck != "" {
			if err := env.Feed.Acknowledge(ctx, feedAck); err != nil {
				return err
			}
			zap.L().Info("notifications acknowledged", zap.String("person_id", feedAck))
			return nil
		}

		pending, err := env.Feed.Pending(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	},
}

func init() {
	feedCmd.Flags().StringVar(&feedAck, "ack", "", "acknowledge all pending notifications for a person ID")
	rootCmd.AddCommand(feedCmd)
}
