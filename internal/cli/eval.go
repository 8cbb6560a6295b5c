package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"chunk/internal/adapter/eval"
	"chunk/internal/adapter/fs"
	"chunk/internal/port"
	"chunk/internal/usecase"
)

var (
	evalRules bool
	evalJSON  bool
	evalModel string
)

var evalCmd = &cobra.Command{
	Use:   "eval <path>...",
	Short: "Score a chunker against gold chunk files",
	Long: `Re-chunk the words of every gold sentence and report chunk precision,
recall and F1 (a chunk counts when label and span match) plus boundary tag
accuracy.

Examples:
  chunk eval corpus/test.conll
  chunk eval --rules corpus/ --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().BoolVar(&evalRules, "rules", false, "evaluate the rule cascade instead of the trained model")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output as JSON")
	evalCmd.Flags().StringVarP(&evalModel, "model", "m", "", "model path (default from config)")
}

type labelScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
}

type evalReport struct {
	Sentences      int          `json:"sentences"`
	ExactSentences int          `json:"exact_sentences"`
	Tokens         int          `json:"tokens"`
	TagAccuracy    float64      `json:"tag_accuracy"`
	Overall        labelScore   `json:"overall"`
	Labels         []labelScore `json:"labels"`
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	chk, err := openChunker(evalRules, evalModel)
	if err != nil {
		return err
	}

	walker := fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)
	var files []port.FileInfo
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		found, err := walker.Walk(path)
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", arg, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no gold files found")
	}

	result, err := usecase.NewEvaluateUseCase(chk).EvaluateFiles(files)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	report := evalReport{
		Sentences:      result.Sentences,
		ExactSentences: result.ExactSentences,
		Tokens:         result.Tokens,
		TagAccuracy:    result.TagAccuracy(),
		Overall:        score("overall", result.Counts),
	}
	for _, label := range result.Labels() {
		report.Labels = append(report.Labels, score(label, *result.PerLabel[label]))
	}

	if evalJSON {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Evaluated %d sentences (%d tokens) from %d files\n\n", report.Sentences, report.Tokens, len(files))
	fmt.Printf("  %-10s %9s %9s %9s %6s %6s %6s\n", "label", "precision", "recall", "f1", "tp", "fp", "fn")
	for _, s := range report.Labels {
		printScore(s)
	}
	printScore(report.Overall)
	fmt.Printf("\n  Tag accuracy:     %.4f\n", report.TagAccuracy)
	fmt.Printf("  Exact sentences:  %d/%d\n", report.ExactSentences, report.Sentences)
	return nil
}

func score(label string, c eval.Counts) labelScore {
	return labelScore{
		Label:     label,
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		TP:        c.TP,
		FP:        c.FP,
		FN:        c.FN,
	}
}

func printScore(s labelScore) {
	fmt.Printf("  %-10s %9.4f %9.4f %9.4f %6d %6d %6d\n", s.Label, s.Precision, s.Recall, s.F1, s.TP, s.FP, s.FN)
}
