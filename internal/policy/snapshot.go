package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bridgewarden/bridgewarden/internal/config"
	"github.com/bridgewarden/bridgewarden/internal/detect"
)

// Snapshot is an immutable bundle of everything a scan depends on: the
// configuration, the compiled rule packs, and the derived policy version.
// Reload swaps the whole snapshot atomically; in-flight scans keep the one
// they started with.
type Snapshot struct {
	Cfg     *config.Config
	Packs   *detect.Packs
	Version string
}

// NewSnapshot derives the policy version from the config file hash, the
// rule pack version, and the active profile, so any of the three changing
// rotates the version string.
func NewSnapshot(cfg *config.Config, cfgHash string, packs *detect.Packs) *Snapshot {
	h := sha256.Sum256(fmt.Appendf(nil, "%s\n%s\n%s\n%d",
		cfgHash, detect.PackVersion, cfg.Profile, packs.RuleCount()))
	return &Snapshot{
		Cfg:     cfg,
		Packs:   packs,
		Version: "sha256:" + hex.EncodeToString(h[:]),
	}
}
