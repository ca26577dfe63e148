package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bridgewarden/bridgewarden/internal/policy"
	"github.com/bridgewarden/bridgewarden/internal/quarantine"
)

var quarantineLimit int

func init() {
	rootCmd.AddCommand(quarantineCmd)
	quarantineCmd.AddCommand(quarantineListCmd)
	quarantineCmd.AddCommand(quarantineShowCmd)
	quarantineListCmd.Flags().IntVar(&quarantineLimit, "limit", 20, "Maximum records to show")
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Inspect quarantined content",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantine records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := quarantineStore()
		if err != nil {
			return err
		}
		recs, err := store.List(quarantineLimit)
		if err != nil {
			return err
		}
		type row struct {
			ID        string   `json:"id"`
			CreatedAt string   `json:"created_at"`
			Decision  string   `json:"decision"`
			RiskScore float64  `json:"risk_score"`
			Reasons   []string `json:"reasons"`
		}
		rows := make([]row, len(recs))
		for i, r := range recs {
			rows[i] = row{
				ID:        r.ID,
				CreatedAt: r.CreatedAt,
				Decision:  string(r.Decision),
				RiskScore: r.RiskScore,
				Reasons:   policy.Reasons(r.Findings),
			}
		}
		return printJSON(rows)
	},
}

var quarantineShowCmd = &cobra.Command{
	Use:   "show <quarantine-id>",
	Short: "Print the safe view of one quarantined item",
	Long:  "Prints metadata and the redacted original excerpt. The raw original is\nnever printed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := quarantineStore()
		if err != nil {
			return err
		}
		rec, err := store.Get(args[0])
		if err != nil {
			return err
		}
		excerpt, err := store.SafeView(args[0])
		if err != nil {
			return err
		}
		if err := printJSON(map[string]any{
			"id":             rec.ID,
			"created_at":     rec.CreatedAt,
			"source":         rec.Source,
			"decision":       rec.Decision,
			"risk_score":     rec.RiskScore,
			"reasons":        policy.Reasons(rec.Findings),
			"content_hash":   rec.ContentHash,
			"policy_version": rec.PolicyVersion,
		}); err != nil {
			return err
		}
		fmt.Println("--- redacted excerpt ---")
		fmt.Println(excerpt)
		return nil
	},
}

func quarantineStore() (*quarantine.Store, error) {
	dir, err := dataPath("quarantine")
	if err != nil {
		return nil, err
	}
	return quarantine.New(dir), nil
}
