package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chunk/internal/usecase"
)

var (
	convertFrom   string
	convertTo     string
	convertOutput string
)

var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Convert chunked sentences between formats",
	Long: `Convert chunk trees between the CoNLL chunk format and bracketed lines.
Bracketed input needs word/POS tokens, e.g. [کتاب/N NP] [را/POSTP POSTP] ./PUNC.
The tagged output drops chunks and writes word/POS lines ready for parse.

Examples:
  chunk convert corpus/test.conll --to brackets
  chunk convert corpus/test.conll --to tagged -o test.txt
  chunk convert gold.txt --from brackets --to conll`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertFrom, "from", "conll", "input format: conll, brackets")
	convertCmd.Flags().StringVar(&convertTo, "to", "brackets", "output format: brackets, tree, conll, json, tagged")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (default stdout)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var out io.Writer = os.Stdout
	if convertOutput != "" {
		f, err := os.Create(convertOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := usecase.Convert(in, out, convertFrom, convertTo)
	if err != nil {
		return fmt.Errorf("convert failed after %d sentences: %w", n, err)
	}
	if convertOutput != "" {
		fmt.Printf("Wrote %d sentences to %s\n", n, convertOutput)
	}
	return nil
}
