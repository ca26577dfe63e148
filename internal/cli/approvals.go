package cli

import (
	"encoding/json"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/bridgewarden/bridgewarden/internal/approvals"
)

var (
	approvalsStatus string
	approvalsKind   string
	approvalsLimit  int
	approvalsNotes  string
)

func init() {
	rootCmd.AddCommand(approvalsCmd)
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsDenyCmd)

	approvalsListCmd.Flags().StringVar(&approvalsStatus, "status", "", "Filter by status (PENDING|APPROVED|DENIED)")
	approvalsListCmd.Flags().StringVar(&approvalsKind, "kind", "", "Filter by kind (web_domain|repo_url|upstream_mcp_server)")
	approvalsListCmd.Flags().IntVar(&approvalsLimit, "limit", 0, "Maximum records to show")
	approvalsApproveCmd.Flags().StringVar(&approvalsNotes, "notes", "", "Decision notes")
	approvalsDenyCmd.Flags().StringVar(&approvalsNotes, "notes", "", "Decision notes")
}

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Operate the source approvals store",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := approvalsStore()
		if err != nil {
			return err
		}
		recs, err := store.List(approvals.ListFilter{
			Status: approvals.Status(approvalsStatus),
			Kind:   approvalsKind,
			Limit:  approvalsLimit,
		})
		if err != nil {
			return err
		}
		if recs == nil {
			recs = []approvals.Record{}
		}
		return printJSON(recs)
	},
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a pending source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], true)
	},
}

var approvalsDenyCmd = &cobra.Command{
	Use:   "deny <approval-id>",
	Short: "Deny a pending source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], false)
	},
}

func decide(id string, approve bool) error {
	store, err := approvalsStore()
	if err != nil {
		return err
	}
	rec, err := store.Resolve(id, approve, decidedBy(), approvalsNotes)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func decidedBy() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}

func approvalsStore() (*approvals.Store, error) {
	dir, err := dataPath("approvals")
	if err != nil {
		return nil, err
	}
	return approvals.New(dir), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
