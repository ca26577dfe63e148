package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bridgewarden/bridgewarden/internal/config"
)

func TestInitWritesLoadableConfig(t *testing.T) {
	cfgPath = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgPath = ""; initForce = false })

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "profile: balanced") {
		t.Fatalf("config body: %s", data)
	}

	// The generated file must parse through the real loader.
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Profile != "balanced" || cfg.Network.Enabled {
		t.Fatalf("cfg = %+v", cfg)
	}

	if err := runInit(nil, nil); err == nil {
		t.Fatal("overwrote existing config without --force")
	}
	initForce = true
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestLoadSnapshotRejectsUnknownProfile(t *testing.T) {
	profileFlag = "paranoid"
	t.Cleanup(func() { profileFlag = "" })
	if _, err := loadSnapshot(); err == nil {
		t.Fatal("unknown profile accepted")
	}
}

func TestLoadSnapshotAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath = ""
	dataDirFlag = dir
	profileFlag = "strict"
	t.Cleanup(func() { dataDirFlag = ""; profileFlag = "" })

	snap, err := loadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Cfg.Profile != "strict" || snap.Cfg.DataDir != dir {
		t.Fatalf("snapshot cfg = %+v", snap.Cfg)
	}
}
