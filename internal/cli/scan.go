package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bridgewarden/bridgewarden/internal/model"
	"github.com/bridgewarden/bridgewarden/internal/pipeline"
	"github.com/bridgewarden/bridgewarden/internal/quarantine"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan <file|->",
	Short: "Run the inspection pipeline on a file or stdin",
	Long:  "Scans one input through the full pipeline and prints the GuardResult as\nJSON. Exit code mirrors the decision: 0 ALLOW, 1 WARN, 2 BLOCK.",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot()
	if err != nil {
		return err
	}

	var (
		raw []byte
		src model.Source
	)
	if args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
		src = model.Source{Kind: "stdin"}
	} else {
		raw, err = os.ReadFile(args[0])
		src = model.Source{Kind: "file", Path: args[0]}
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	// One-shot scans quarantine blocked content but skip the audit log.
	p := pipeline.New(quarantine.New(filepath.Join(snap.Cfg.DataDir, "quarantine")), nil, nil)
	res := p.Scan(snap, pipeline.Request{Raw: raw, Source: src, Tool: "scan"})

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	switch res.Decision {
	case model.Warn:
		os.Exit(1)
	case model.Block:
		os.Exit(2)
	}
	return nil
}
