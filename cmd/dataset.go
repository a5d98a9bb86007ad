package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/treewatch/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage the backend's discovery dataset",
}

var datasetLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Ask the backend to load its dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		return datasetCall(cmd, (*dataset.Client).Load)
	},
}

var datasetInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show statistics of the loaded dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		return datasetCall(cmd, (*dataset.Client).Info)
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <url>...",
	Short: "Transcribe videos so ask runs can search them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranscribe,
}

func init() {
	for _, c := range []*cobra.Command{datasetLoadCmd, datasetInfoCmd, transcribeCmd} {
		c.Flags().Bool("json", false, "output as JSON")
	}
	datasetCmd.AddCommand(datasetLoadCmd, datasetInfoCmd)
	rootCmd.AddCommand(datasetCmd, transcribeCmd)
}

func datasetCall(cmd *cobra.Command, call func(*dataset.Client, context.Context) (*dataset.Summary, error)) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newDatasetClient(cfg)
	if err != nil {
		return err
	}

	summary, err := call(client, cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(summary)
	}

	fmt.Printf("Training examples: %d (scores %.2f..%.2f, mean %.2f)\n",
		summary.NumTraining, summary.TrainScoreMin, summary.TrainScoreMax, summary.TrainScoreMean)
	fmt.Printf("Eval examples:     %d (mean %.2f)\n", summary.NumEval, summary.EvalScoreMean)
	if len(summary.ScoreDistribution) > 0 {
		keys := make([]string, 0, len(summary.ScoreDistribution))
		for k := range summary.ScoreDistribution {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Score distribution:")
		for _, k := range keys {
			fmt.Printf("  %-6s %d\n", k, summary.ScoreDistribution[k])
		}
	}
	return nil
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newDatasetClient(cfg)
	if err != nil {
		return err
	}

	videos, err := client.Transcribe(cmd.Context(), args)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(videos)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO\tTITLE\tSEGMENTS\tCHARS\tSTATUS")
	failed := 0
	for _, v := range videos {
		status := "ok"
		if v.Error != "" {
			status = v.Error
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", v.VideoID, v.Title, v.SegmentCount, v.TranscriptChars, status)
	}
	w.Flush()
	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed to transcribe", failed, len(videos))
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
