package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/treewatch/internal/progress"
	"github.com/ziadkadry99/treewatch/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to the backend and render runs as they happen",
	Long: `Connects to the search backend and renders the live tree. The terminal
UI is the default; --plain logs render operations and shows a progress bar
instead.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("plain", false, "log render operations instead of the terminal UI")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, !plain)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if plain {
		sess, err := newSession(cfg, logger, nil)
		if err != nil {
			return err
		}
		tracker := progress.NewTracker(progress.NewReporter())
		sess.Subscribe(tracker.Observe)
		sess.Start(ctx)
		defer sess.Stop()

		logger.Info().Str("backend", cfg.BackendURL).Msg("Watching, press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	}

	bridge := tui.NewBridge()
	sess, err := newSession(cfg, logger, bridge)
	if err != nil {
		return err
	}
	sess.Subscribe(bridge.Observe)
	sess.Start(ctx)
	defer sess.Stop()

	return tui.Run(ctx, sess, bridge)
}
