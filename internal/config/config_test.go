package config

import (
	"testing"

	"github.com/dsampson94/community-recruit/internal/score"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/community.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "data/community.db")
	}
	if cfg.Weights() != score.DefaultWeights {
		t.Errorf("Weights() = %+v, want defaults", cfg.Weights())
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCORE_COMMIT_WEIGHT", "2")
	t.Setenv("SCORE_HOURS_WEIGHT", "0.5")
	t.Setenv("SCORE_BREADTH_WEIGHT", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	want := score.Weights{Commit: 2, Hours: 0.5, Breadth: 3}
	if cfg.Weights() != want {
		t.Errorf("Weights() = %+v, want %+v", cfg.Weights(), want)
	}
}

func TestLoad_RejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a port above 65535")
	}
}

func TestLoad_RejectsNegativeWeight(t *testing.T) {
	t.Setenv("SCORE_HOURS_WEIGHT", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject negative scoring weights")
	}
}
