package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chunk/internal/adapter/cache"
	"chunk/internal/adapter/chunker"
	"chunk/internal/port"
	"chunk/internal/usecase"
)

var (
	parseRules  bool
	parseFormat string
	parseInput  string
	parseOutput string
	parseModel  string
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Chunk POS-tagged sentences",
	Long: `Chunk sentences given one per line as space separated word/POS tokens.
Sentences are read from --input or stdin and written as soon as they are
chunked.

Output formats:
  brackets  [نامه ایشان NP] [را POSTP] [دریافت داشتم VP] .
  tree      (S (NP نامه/Ne ایشان/PRO) (POSTP را/POSTP) ...)
  conll     word POS IOB per line, blank line between sentences
  json      one object per sentence

Examples:
  chunk parse -i sentences.txt
  chunk parse --rules --format tree < sentences.txt`,
	Args: cobra.NoArgs,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseRules, "rules", false, "use the rule cascade instead of the trained model")
	parseCmd.Flags().StringVar(&parseFormat, "format", "", "output format: brackets, tree, conll, json (default from config)")
	parseCmd.Flags().StringVarP(&parseInput, "input", "i", "", "input file (default stdin)")
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", "", "output file (default stdout)")
	parseCmd.Flags().StringVarP(&parseModel, "model", "m", "", "model path (default from config)")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	chk, err := openChunker(parseRules, parseModel)
	if err != nil {
		return err
	}

	format := cfg.Parse.Format
	if parseFormat != "" {
		format = parseFormat
	}

	var in io.Reader = os.Stdin
	if parseInput != "" {
		f, err := os.Open(parseInput)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var out io.Writer = os.Stdout
	if parseOutput != "" {
		f, err := os.Create(parseOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if cfg.Parse.CacheSize > 0 {
		chk = cache.NewCachedChunker(chk, cache.NewParseCache(cfg.Parse.CacheSize, 0))
	}

	result, err := usecase.NewParseUseCase(chk).Parse(in, out, format)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}
	GetLogger().Debug("parse finished",
		zap.Int("sentences", result.Sentences),
		zap.Int("tokens", result.Tokens),
		zap.Int("chunks", result.Chunks),
	)
	if parseOutput != "" {
		fmt.Printf("Chunked %d sentences (%d tokens, %d chunks) into %s\n",
			result.Sentences, result.Tokens, result.Chunks, parseOutput)
	}
	return nil
}

// openChunker returns the rule cascade when rules is set or the configured
// mode is "rules", and the trained model otherwise.
func openChunker(rules bool, modelPath string) (port.StreamChunker, error) {
	cfg := GetConfig()
	opts := []chunker.Option{chunker.WithLogger(GetLogger())}

	if rules || cfg.Parse.Mode == "rules" {
		if cfg.Parse.Grammar == "" {
			return chunker.NewRuleBased(opts...), nil
		}
		path := cfg.Parse.Grammar
		if !filepath.IsAbs(path) {
			path = filepath.Join(GetRootDir(), path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read grammar: %w", err)
		}
		return chunker.NewRuleBasedFromGrammar(string(src), opts...)
	}

	if modelPath == "" {
		modelPath = cfg.ModelPath(GetRootDir())
	}
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no model found at %s. Run 'chunk train' first or use --rules", modelPath)
	}
	if cfg.Parse.Lenient {
		opts = append(opts, chunker.WithLenientDecoding())
	}
	return chunker.Open(modelPath, opts...)
}
