package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AnthusAI/plexus-dashboard/internal/dispatch"
	"github.com/AnthusAI/plexus-dashboard/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score result logging",
}

var (
	scoreLogFile      string
	scoreLogImmediate bool
	scoreLogBatchSize int
	scoreLogTimeout   time.Duration
)

var scoreLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Submit score results from a JSONL file or stdin",
	Long:  "Reads one score result per line and submits each to the dispatcher. Batched by default; --immediate sends every item as its own create call.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initClient()
		if err != nil {
			return err
		}
		defer env.Close()

		in := os.Stdin
		if scoreLogFile != "" && scoreLogFile != "-" {
			f, err := os.Open(scoreLogFile)
			if err != nil {
				return eris.Wrap(err, "open input file")
			}
			defer f.Close() //nolint:errcheck
			in = f
		}

		if scoreLogBatchSize == 0 {
			scoreLogBatchSize = cfg.Dispatch.BatchSize
		}
		if scoreLogTimeout == 0 {
			scoreLogTimeout = cfg.Dispatch.BatchTimeout()
		}

		submitted, skipped, err := submitScoreResults(in, env.Dispatcher)
		if err != nil {
			return err
		}

		// Drain everything before the process exits.
		env.Dispatcher.Flush()

		zap.L().Info("score log complete",
			zap.Int("submitted", submitted),
			zap.Int("skipped", skipped))
		return nil
	},
}

// submitScoreResults reads JSONL score results and submits each one.
// Malformed lines are skipped with a warning rather than aborting the run.
func submitScoreResults(in io.Reader, d *dispatch.Dispatcher) (submitted, skipped int, err error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var item model.ScoreResult
		if err := json.Unmarshal(raw, &item); err != nil {
			zap.L().Warn("skipping malformed score result",
				zap.Int("line", line),
				zap.Error(err))
			skipped++
			continue
		}

		opts := []dispatch.SubmitOption{}
		if scoreLogImmediate {
			opts = append(opts, dispatch.Immediate())
		}
		if scoreLogBatchSize > 0 {
			opts = append(opts, dispatch.WithBatchSize(scoreLogBatchSize))
		}
		if scoreLogTimeout > 0 {
			opts = append(opts, dispatch.WithBatchTimeout(scoreLogTimeout))
		}
		d.Submit(item, opts...)
		submitted++
	}
	if err := scanner.Err(); err != nil {
		return submitted, skipped, eris.Wrap(err, "read score results")
	}
	return submitted, skipped, nil
}

func init() {
	scoreLogCmd.Flags().StringVarP(&scoreLogFile, "file", "f", "-", "JSONL input file (- for stdin)")
	scoreLogCmd.Flags().BoolVar(&scoreLogImmediate, "immediate", false, "send each item as its own create call")
	scoreLogCmd.Flags().IntVar(&scoreLogBatchSize, "batch-size", 0, "override batch size (default from config)")
	scoreLogCmd.Flags().DurationVar(&scoreLogTimeout, "batch-timeout", 0, "override batch timeout (default from config)")
	scoreCmd.AddCommand(scoreLogCmd)
	rootCmd.AddCommand(scoreCmd)
}
