package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.FaceService.Dim != 128 {
		t.Errorf("expected default embedding dim 128, got %d", cfg.FaceService.Dim)
	}
	if cfg.Recognition.Tolerance != 0.45 {
		t.Errorf("expected default tolerance 0.45, got %f", cfg.Recognition.Tolerance)
	}
	if cfg.Recognition.FrameInterval != 3 {
		t.Errorf("expected default frame interval 3, got %d", cfg.Recognition.FrameInterval)
	}
	if cfg.Recognition.Cooldown != 2*time.Second {
		t.Errorf("expected default cooldown 2s, got %v", cfg.Recognition.Cooldown)
	}
	if len(cfg.Camera.Indices) != 3 || cfg.Camera.Indices[0] != 0 {
		t.Errorf("expected default camera indices [0 1 2], got %v", cfg.Camera.Indices)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")
	if got := envInt("DATABASE_MAX_OPEN_CONNS", 25); got != 25 {
		t.Errorf("expected fallback 25, got %d", got)
	}

	t.Setenv("DATABASE_MAX_OPEN_CONNS", "-3")
	if got := envInt("DATABASE_MAX_OPEN_CONNS", 25); got != 25 {
		t.Errorf("expected fallback for negative value, got %d", got)
	}
}

func TestEnvIndices(t *testing.T) {
	t.Setenv("CAMERA_INDICES", "2, 0")
	got := envIndices("CAMERA_INDICES", []int{0, 1, 2})
	if len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Errorf("expected [2 0], got %v", got)
	}

	t.Setenv("CAMERA_INDICES", "1,x")
	got = envIndices("CAMERA_INDICES", []int{0, 1, 2})
	if len(got) != 3 {
		t.Errorf("expected fallback on invalid entry, got %v", got)
	}
}

func TestEnvFloatRange(t *testing.T) {
	t.Setenv("MATCH_TOLERANCE", "1.5")
	if got := envFloat("MATCH_TOLERANCE", 0.45); got != 0.45 {
		t.Errorf("expected fallback for out-of-range value, got %f", got)
	}

	t.Setenv("MATCH_TOLERANCE", "0.6")
	if got := envFloat("MATCH_TOLERANCE", 0.45); got != 0.6 {
		t.Errorf("expected 0.6, got %f", got)
	}
}
