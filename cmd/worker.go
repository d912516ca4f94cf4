package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/rerun"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process buyer-group regeneration tasks from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		w, err := rerun.NewWorker(cfg.Queue, st, dealContext(), cfg.Roster.MaxMembers)
		if err != nil {
			return err
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down worker")
			w.Shutdown()
		}()

		zap.L().Info("starting worker",
			zap.String("queue", cfg.Queue.Name),
			zap.Int("concurrency", cfg.Queue.Concurrency))
		return w.Run()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
