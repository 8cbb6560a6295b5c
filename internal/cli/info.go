package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chunk/internal/adapter/store"
)

var (
	infoModel string
	infoJSON  bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the trained model's metadata",
	Long: `Show when and how the stored model was trained and whether the current
configuration would retrain it.

Examples:
  chunk info
  chunk info -m /path/to/chunker_crf.model --json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoModel, "model", "m", "", "model path (default from config)")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
}

type modelReport struct {
	Path          string   `json:"path"`
	RunID         string   `json:"run_id"`
	CreatedAt     string   `json:"created_at"`
	Labels        []string `json:"labels"`
	C1            float64  `json:"c1"`
	C2            float64  `json:"c2"`
	Iterations    int      `json:"iterations"`
	SchemaVersion int      `json:"schema_version"`
	Stale         bool     `json:"stale"`
	StaleReason   string   `json:"stale_reason,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := infoModel
	if path == "" {
		path = cfg.ModelPath(GetRootDir())
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no model found at %s. Run 'chunk train' first", path)
	}

	st, err := store.NewBoltStore(path)
	if err != nil {
		return fmt.Errorf("failed to open model: %w", err)
	}
	defer st.Close()

	info, err := st.ReadInfo()
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	schema, err := st.GetSchemaInfo()
	if err != nil {
		return fmt.Errorf("failed to read schema info: %w", err)
	}
	stale, reason, err := st.NeedsRetrain(cfg)
	if err != nil {
		return err
	}

	report := modelReport{
		Path:          path,
		RunID:         info.RunID,
		CreatedAt:     info.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		Labels:        info.Labels,
		C1:            info.C1,
		C2:            info.C2,
		Iterations:    info.Iterations,
		SchemaVersion: schema.Version,
		Stale:         stale,
		StaleReason:   reason,
	}

	if infoJSON {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Model: %s\n", report.Path)
	fmt.Printf("  Run ID:      %s\n", report.RunID)
	fmt.Printf("  Trained at:  %s\n", report.CreatedAt)
	fmt.Printf("  Labels:      %s\n", strings.Join(report.Labels, " "))
	fmt.Printf("  c1 / c2:     %g / %g\n", report.C1, report.C2)
	fmt.Printf("  Iterations:  %d\n", report.Iterations)
	fmt.Printf("  Schema:      v%d\n", report.SchemaVersion)
	if report.Stale {
		fmt.Printf("\nRetrain needed: %s\n", report.StaleReason)
	}
	return nil
}
