package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chunk/config"
	"chunk/internal/adapter/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Persian shallow parser - group POS-tagged words into phrases",
	Long: `chunk groups POS-tagged Persian sentences into flat phrase chunks
(NP, VP, PP, ADJP, ADVP, POSTP), either with a trained CRF model or with a
rule cascade over POS tags.

Example usage:
  chunk train corpus/                 # Train a model from chunk files
  chunk parse -i sentences.txt        # Chunk one word/POS sentence per line
  chunk parse --rules < sentences.txt # Use the rule cascade instead
  chunk eval corpus/test.conll        # Score against gold chunks`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./chunker.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() *zap.Logger {
	return logger
}
