package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AnthusAI/plexus-dashboard/internal/batchjob"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch job assignment and inspection",
}

var (
	assignItemID       string
	assignAccount      string
	assignScorecard    string
	assignProvider     string
	assignModel        string
	assignScore        string
	assignMaxBatchSize int
	assignMetadata     []string
	assignOutput       string
)

var batchAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign an item to a scoring job and a compatible batch job",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initClient()
		if err != nil {
			return err
		}
		defer env.Close()

		metadata, err := parseKeyValues(assignMetadata)
		if err != nil {
			return err
		}

		maxBatchSize := assignMaxBatchSize
		if maxBatchSize == 0 {
			maxBatchSize = cfg.Batch.MaxBatchSize
		}

		job, batch, err := env.Coordinator.Assign(cmd.Context(), batchjob.AssignRequest{
			ItemID:        assignItemID,
			Account:       assignAccount,
			Scorecard:     assignScorecard,
			ModelProvider: assignProvider,
			ModelName:     assignModel,
			ScoreID:       assignScore,
			Metadata:      metadata,
			MaxBatchSize:  maxBatchSize,
		})
		if err != nil {
			return err
		}

		return render(assignOutput, map[string]any{
			"scoringJob": job,
			"batchJob":   batch,
		})
	},
}

var (
	showBatchID string
	showOutput  string
)

var batchShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a batch job and its authoritative link count",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initClient()
		if err != nil {
			return err
		}
		defer env.Close()

		batch, err := env.Remote.BatchJobs.GetByID(cmd.Context(), showBatchID)
		if err != nil {
			return err
		}
		count, err := env.Remote.Links.CountForBatch(cmd.Context(), showBatchID)
		if err != nil {
			return err
		}

		return render(showOutput, map[string]any{
			"batchJob":  batch,
			"linkCount": count,
		})
	},
}

// parseKeyValues turns key=value flags into a metadata map.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := cutKeyValue(p)
		if !ok {
			return nil, eris.Errorf("invalid metadata %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func cutKeyValue(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], i > 0
		}
	}
	return "", "", false
}

// render writes v to stdout as json or yaml.
func render(format string, v any) error {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "marshal yaml")
		}
		fmt.Print(string(out))
		return nil
	case "json", "":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "marshal json")
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func init() {
	batchAssignCmd.Flags().StringVar(&assignItemID, "item", "", "item ID (required)")
	batchAssignCmd.Flags().StringVar(&assignAccount, "account", "", "account ID, key, name, or external ID (required)")
	batchAssignCmd.Flags().StringVar(&assignScorecard, "scorecard", "", "scorecard ID, key, name, or external ID (required)")
	batchAssignCmd.Flags().StringVar(&assignProvider, "provider", "", "model provider (required)")
	batchAssignCmd.Flags().StringVar(&assignModel, "model", "", "model name (required)")
	batchAssignCmd.Flags().StringVar(&assignScore, "score", "", "score ID or identifier")
	batchAssignCmd.Flags().IntVar(&assignMaxBatchSize, "max-batch-size", 0, "batch job capacity (default from config)")
	batchAssignCmd.Flags().StringArrayVar(&assignMetadata, "metadata", nil, "metadata key=value (repeatable)")
	batchAssignCmd.Flags().StringVarP(&assignOutput, "output", "o", "json", "output format: json or yaml")
	_ = batchAssignCmd.MarkFlagRequired("item")
	_ = batchAssignCmd.MarkFlagRequired("account")
	_ = batchAssignCmd.MarkFlagRequired("scorecard")
	_ = batchAssignCmd.MarkFlagRequired("provider")
	_ = batchAssignCmd.MarkFlagRequired("model")

	batchShowCmd.Flags().StringVar(&showBatchID, "id", "", "batch job ID (required)")
	batchShowCmd.Flags().StringVarP(&showOutput, "output", "o", "json", "output format: json or yaml")
	_ = batchShowCmd.MarkFlagRequired("id")

	batchCmd.AddCommand(batchAssignCmd)
	batchCmd.AddCommand(batchShowCmd)
	rootCmd.AddCommand(batchCmd)
}
