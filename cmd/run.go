package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/treewatch/internal/progress"
	"github.com/ziadkadry99/treewatch/internal/report"
	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "Issue one run and follow it to completion",
	Long: `Issues a run in the configured mode and logs the tree as it grows. Ask
runs need a question; discovery runs work over the loaded dataset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, args, false)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare [question]",
	Short: "Run the baseline and the tree search side by side",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, compareCmd} {
		c.Flags().Int("max-iterations", 0, "override max_iterations for this run")
		c.Flags().Int("max-depth", 0, "override max_depth for this run")
		c.Flags().StringSlice("video", nil, "video id to search (repeatable)")
		c.Flags().Duration("connect-timeout", 30*time.Second, "how long to wait for the backend")
		c.Flags().Bool("json", false, "print the final state as JSON")
		c.Flags().String("report", "", "write an HTML report of the finished run to this path")
		rootCmd.AddCommand(c)
	}
}

func runOnce(cmd *cobra.Command, args []string, compare bool) error {
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	videos, _ := cmd.Flags().GetStringSlice("video")
	connectTimeout, _ := cmd.Flags().GetDuration("connect-timeout")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	reportPath, _ := cmd.Flags().GetString("report")

	var question string
	if len(args) > 0 {
		question = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newSession(cfg, logger, nil)
	if err != nil {
		return err
	}
	tracker := progress.NewTracker(progress.NewReporter())
	sess.Subscribe(tracker.Observe)
	sess.Start(ctx)
	defer sess.Stop()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = waitConnected(connectCtx, sess)
	cancel()
	if err != nil {
		return err
	}

	ro := session.RunOptions{MaxIterations: maxIterations, MaxDepth: maxDepth, VideoIDs: videos}
	var ticket session.Ticket
	if compare {
		ticket, err = sess.Compare(ctx, question, ro)
	} else {
		ticket, err = sess.Run(ctx, question, ro)
	}
	if err != nil {
		return err
	}

	st, err := sess.Await(ctx, ticket.Generation)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if reportPath != "" {
		if err := report.NewGenerator().WriteFile(reportPath, st, sess.Hierarchy(), progress.Summary(st)); err != nil {
			return err
		}
		logger.Info().Str("path", reportPath).Msg("Report written")
	}

	if jsonOutput {
		return writeJSON(st)
	}
	printOutcome(st)
	if st.Error != "" {
		return errors.New(st.Error)
	}
	return nil
}

func printOutcome(st store.State) {
	fmt.Println(progress.Summary(st))
	if st.Baseline != nil {
		fmt.Printf("\nBaseline (confidence %.2f):\n%s\n", st.Baseline.Confidence, st.Baseline.Answer)
	}
	if st.Result == nil {
		return
	}
	if st.Result.Answer != "" {
		fmt.Printf("\nAnswer (confidence %.2f):\n%s\n", st.Result.Confidence, st.Result.Answer)
	}
	if st.Result.BestCode != "" {
		fmt.Printf("\nBest rubric (score %.3f):\n%s\n", st.Result.BestScore, st.Result.BestCode)
	}
}
