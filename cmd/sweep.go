package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/refresh"
)

var sweepTier string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Refresh roster members whose tier window has elapsed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		now := time.Now().UTC()
		var result refresh.Result

		if sweepTier == "" {
			result, err = env.Scheduler.SweepAll(ctx, now)
		} else {
			tier, terr := parseTier(sweepTier)
			if terr != nil {
				return terr
			}
			result, err = env.Scheduler.Sweep(ctx, tier, now)
		}
		if err != nil {
			return err
		}

		zap.L().Info("sweep finished",
			zap.Int("due", result.Due),
			zap.Int("refreshed", result.Refreshed),
			zap.Int("changed", result.Changed),
			zap.Int("failed", result.Failed),
			zap.Float64("spend_usd", env.Ledger.TotalUSD()))

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func parseTier(s string) (model.RefreshTier, error) {
	switch s {
	case "red":
		return model.TierRed, nil
	case "orange":
		return model.TierOrange, nil
	case "green":
		return model.TierGreen, nil
	default:
		return "", eris.Errorf("unknown tier: %s (expected red, orange, or green)", s)
	}
}

func init() {
	sweepCmd.Flags().StringVar(&sweepTier, "tier", "", "sweep a single tier (red, orange, green); default all tiers")
	rootCmd.AddCommand(sweepCmd)
}
