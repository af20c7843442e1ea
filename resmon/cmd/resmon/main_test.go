package main

import (
	"testing"
)

func TestBuildConfig_SingleURL(t *testing.T) {
	cfg, err := buildConfig("", "http://localhost:3000/react/")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].URL != "http://localhost:3000/react/" {
		t.Errorf("targets: %+v", cfg.Targets)
	}
	if cfg.Runs <= 0 {
		t.Errorf("defaults not applied: runs=%d", cfg.Runs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestBuildConfig_NothingGiven(t *testing.T) {
	if _, err := buildConfig("", ""); err == nil {
		t.Fatal("expected usage error, not an exit")
	}
}
