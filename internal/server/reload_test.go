package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bridgewarden/bridgewarden/internal/policy"
)

type captureTarget struct {
	snaps []*policy.Snapshot
}

func (c *captureTarget) Swap(snap *policy.Snapshot) { c.snaps = append(c.snaps, snap) }

func TestReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("profile: strict\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	target := &captureTarget{}
	r, err := NewReloader(target, cfgPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.watcher.Close()

	r.Reload()
	if len(target.snaps) != 1 {
		t.Fatalf("swaps = %d", len(target.snaps))
	}
	if target.snaps[0].Cfg.Profile != "strict" {
		t.Fatalf("profile = %q", target.snaps[0].Cfg.Profile)
	}

	// A different profile produces a different policy version.
	if err := os.WriteFile(cfgPath, []byte("profile: permissive\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.Reload()
	if len(target.snaps) != 2 {
		t.Fatalf("swaps = %d", len(target.snaps))
	}
	if target.snaps[1].Version == target.snaps[0].Version {
		t.Fatal("policy version did not rotate")
	}
}

func TestReloadKeepsPolicyOnBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("profile: balanced\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	target := &captureTarget{}
	r, err := NewReloader(target, cfgPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.watcher.Close()

	r.Reload()
	if err := os.WriteFile(cfgPath, []byte("profile: nonsense\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.Reload()

	if len(target.snaps) != 1 {
		t.Fatalf("bad config still swapped the snapshot: %d swaps", len(target.snaps))
	}
}

func TestNewReloaderMissingFile(t *testing.T) {
	target := &captureTarget{}
	r, err := NewReloader(target, filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("missing config file should not fail the watcher: %v", err)
	}
	r.watcher.Close()
}
