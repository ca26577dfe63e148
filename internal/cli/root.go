package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bridgewarden/bridgewarden/internal/config"
	"github.com/bridgewarden/bridgewarden/internal/detect"
	"github.com/bridgewarden/bridgewarden/internal/policy"
)

var (
	cfgPath     string
	dataDirFlag string
	profileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "bridgewarden",
	Short: "Security gateway between coding agents and untrusted text",
	Long:  "Fetches files, web pages, and repositories on behalf of an AI coding agent,\nruns everything through a deterministic inspection pipeline, and only hands\nover sanitized text with an explicit ALLOW/WARN/BLOCK verdict.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default ~/.bridgewarden/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Override the data directory")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Override the policy profile (strict|balanced|permissive)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSnapshot builds the policy snapshot from the config file and any
// flag overrides.
func loadSnapshot() (*policy.Snapshot, error) {
	cfg, hash, err := config.LoadWithHash(cfgPath)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if profileFlag != "" {
		if !policy.ValidProfile(profileFlag) {
			return nil, fmt.Errorf("unknown profile %q (want one of: %s)", profileFlag, policy.ProfileNames())
		}
		cfg.Profile = profileFlag
	}
	packs, err := detect.Load()
	if err != nil {
		return nil, err
	}
	return policy.NewSnapshot(cfg, hash, packs), nil
}

// dataPath resolves a path under the configured data directory.
func dataPath(elem ...string) (string, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return "", err
	}
	dir := cfg.DataDir
	if dataDirFlag != "" {
		dir = dataDirFlag
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}
