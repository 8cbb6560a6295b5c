package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"chunk/config"
	"chunk/internal/adapter/fs"
	"chunk/internal/usecase"
)

var (
	trainForce bool
	trainIters int
	trainModel string
)

var trainCmd = &cobra.Command{
	Use:   "train [path]",
	Short: "Train the statistical chunker",
	Long: `Train a CRF chunker on the chunk files (word POS IOB per line) found
under the given path, or on a single file. The model is stored in
.chunker/chunker_crf.model within the root directory unless configured
otherwise. An up-to-date model is kept unless --force is given.

Examples:
  chunk train corpus/
  chunk train corpus/train.conll --iterations 100
  chunk train --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().BoolVarP(&trainForce, "force", "f", false, "retrain even if the model is up to date")
	trainCmd.Flags().IntVar(&trainIters, "iterations", 0, "training iterations (default from config)")
	trainCmd.Flags().StringVarP(&trainModel, "model", "m", "", "model path (default from config)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	cfg := GetConfig()
	if trainIters > 0 {
		cfg.Train.MaxIterations = trainIters
	}

	modelPath := trainModel
	if modelPath == "" {
		if err := config.EnsureDataDir(GetRootDir()); err != nil {
			return fmt.Errorf("failed to create .chunker directory: %w", err)
		}
		modelPath = cfg.ModelPath(GetRootDir())
	}

	walker := fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)
	trainUC := usecase.NewTrainUseCase(cfg, walker, modelPath, GetLogger())

	fmt.Printf("Reading corpus from %s...\n", path)

	var bar *progressbar.ProgressBar
	var startTime time.Time

	progressCallback := func(iteration, total int, loss float64) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Training[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(iteration)

		elapsed := time.Since(startTime)
		rate := float64(iteration) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-iteration)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Training[reset] loss %.2f ETA: %s", loss, formatDuration(eta)))
		}
	}

	result, err := trainUC.Train(path, trainForce, progressCallback)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if result.Skipped {
		fmt.Printf("\nModel is up to date (%d files). Use --force to retrain.\n", result.Files)
		fmt.Printf("Model stored at: %s\n", modelPath)
		return nil
	}

	fmt.Printf("\nTraining complete (%s):\n", result.Reason)
	fmt.Printf("  Files:      %d\n", result.Files)
	fmt.Printf("  Sentences:  %d\n", result.Sentences)
	fmt.Printf("  Tokens:     %d\n", result.Tokens)
	fmt.Printf("  Labels:     %d\n", len(result.Labels))
	fmt.Printf("  Duration:   %s\n", formatDuration(result.Duration))

	fmt.Printf("\nModel stored at: %s\n", modelPath)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
