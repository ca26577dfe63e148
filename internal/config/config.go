// Package config loads the BridgeWarden configuration file.
// The file is YAML; plain JSON parses through the same loader.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when neither the config nor the caller names one.
const DefaultProfile = "balanced"

// Approvals controls the source-approval workflow.
type Approvals struct {
	RequireApproval   bool     `yaml:"require_approval" json:"require_approval"`
	AllowedWebDomains []string `yaml:"allowed_web_domains" json:"allowed_web_domains"`
	AllowedRepoURLs   []string `yaml:"allowed_repo_urls" json:"allowed_repo_urls"`
}

// Network controls network access and resource caps.
type Network struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	TimeoutSeconds   float64  `yaml:"timeout_seconds" json:"timeout_seconds"`
	WebMaxBytes      int64    `yaml:"web_max_bytes" json:"web_max_bytes"`
	RepoMaxBytes     int64    `yaml:"repo_max_bytes" json:"repo_max_bytes"`
	RepoMaxFileBytes int64    `yaml:"repo_max_file_bytes" json:"repo_max_file_bytes"`
	RepoMaxFiles     int      `yaml:"repo_max_files" json:"repo_max_files"`
	AllowedWebHosts  []string `yaml:"allowed_web_hosts" json:"allowed_web_hosts"`
	AllowedRepoHosts []string `yaml:"allowed_repo_hosts" json:"allowed_repo_hosts"`
}

// Config is the root configuration object.
type Config struct {
	Profile      string    `yaml:"profile" json:"profile"`
	DataDir      string    `yaml:"data_dir" json:"data_dir"`
	BaseDir      string    `yaml:"base_dir" json:"base_dir"`
	FileMaxBytes int64     `yaml:"file_max_bytes" json:"file_max_bytes"`
	Approvals    Approvals `yaml:"approvals" json:"approvals"`
	Network      Network   `yaml:"network" json:"network"`
}

// Default returns the built-in configuration: network disabled, approvals
// required, balanced profile.
func Default() *Config {
	return &Config{
		Profile:      DefaultProfile,
		DataDir:      defaultDataDir(),
		FileMaxBytes: 4 << 20,
		Approvals: Approvals{
			RequireApproval: true,
		},
		Network: Network{
			Enabled:          false,
			TimeoutSeconds:   10,
			WebMaxBytes:      1 << 20,
			RepoMaxBytes:     10 << 20,
			RepoMaxFileBytes: 256 << 10,
			RepoMaxFiles:     2000,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bridgewarden")
	}
	return filepath.Join(home, ".bridgewarden")
}

// Load reads configuration from path. Empty path falls back to
// ~/.bridgewarden/config.yaml. Missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw bytes
// on disk. The hash feeds into the policy version. When no file exists the
// hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), emptyHash(), nil
		}
		path = filepath.Join(home, ".bridgewarden", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), emptyHash(), nil
		}
		return nil, "", fmt.Errorf("config: read: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults; the file overrides only the fields it names.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

func (c *Config) validate() error {
	switch c.Profile {
	case "strict", "balanced", "permissive":
	default:
		return fmt.Errorf("config: unknown profile %q", c.Profile)
	}
	for name, v := range map[string]int64{
		"file_max_bytes":              c.FileMaxBytes,
		"network.web_max_bytes":       c.Network.WebMaxBytes,
		"network.repo_max_bytes":      c.Network.RepoMaxBytes,
		"network.repo_max_file_bytes": c.Network.RepoMaxFileBytes,
		"network.repo_max_files":      int64(c.Network.RepoMaxFiles),
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	if c.Network.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: network.timeout_seconds must be positive")
	}
	return nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}

// DefaultYAML returns a commented config file body for `bridgewarden init`.
func DefaultYAML() string {
	return `# bridgewarden configuration
# Generated by: bridgewarden init

# Policy profile: strict | balanced | permissive
profile: balanced

# Where approvals, quarantine, repos, and the audit log live.
#data_dir: ~/.bridgewarden

# Base directory for bw_read_file. Paths may not escape it.
#base_dir: .

# Per-file cap for bw_read_file.
file_max_bytes: 4194304

approvals:
  # When true, web domains and repo URLs outside the allowlists below
  # require an APPROVED source approval before they are fetched.
  require_approval: true
  allowed_web_domains: []
  allowed_repo_urls: []

network:
  # Network access is off by default. bw_web_fetch and bw_fetch_repo
  # return NETWORK_DISABLED until this is enabled.
  enabled: false
  timeout_seconds: 10
  web_max_bytes: 1048576
  repo_max_bytes: 10485760
  repo_max_file_bytes: 262144
  repo_max_files: 2000
  allowed_web_hosts: []
  allowed_repo_hosts: []
`
}
