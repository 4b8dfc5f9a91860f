package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Recognition.MatchThreshold != 0.6 {
		t.Errorf("expected MatchThreshold 0.6, got %f", cfg.Recognition.MatchThreshold)
	}
	if cfg.Recognition.EmbeddingDim != 512 {
		t.Errorf("expected EmbeddingDim 512, got %d", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Recognition.MinFaceSize != 80 {
		t.Errorf("expected MinFaceSize 80, got %d", cfg.Recognition.MinFaceSize)
	}
	if cfg.Recognition.FaceCropSize != 160 {
		t.Errorf("expected FaceCropSize 160, got %d", cfg.Recognition.FaceCropSize)
	}
	if cfg.Recognition.DebounceWindow != 5*time.Second {
		t.Errorf("expected DebounceWindow 5s, got %v", cfg.Recognition.DebounceWindow)
	}
	if cfg.Recognition.MinDwell != 60*time.Second {
		t.Errorf("expected MinDwell 60s, got %v", cfg.Recognition.MinDwell)
	}
	if cfg.Enrollment.Samples != 10 {
		t.Errorf("expected Samples 10, got %d", cfg.Enrollment.Samples)
	}
	if cfg.Enrollment.SamplePause != 500*time.Millisecond {
		t.Errorf("expected SamplePause 500ms, got %v", cfg.Enrollment.SamplePause)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.8")
	t.Setenv("EMBEDDING_DIM", "128")
	t.Setenv("ENROLL_SAMPLES", "5")
	t.Setenv("DEBOUNCE_WINDOW_SECONDS", "10")

	cfg := Load()

	if cfg.Recognition.MatchThreshold != 0.8 {
		t.Errorf("expected MatchThreshold 0.8, got %f", cfg.Recognition.MatchThreshold)
	}
	if cfg.Recognition.EmbeddingDim != 128 {
		t.Errorf("expected EmbeddingDim 128, got %d", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Enrollment.Samples != 5 {
		t.Errorf("expected Samples 5, got %d", cfg.Enrollment.Samples)
	}
	if cfg.Recognition.DebounceWindow != 10*time.Second {
		t.Errorf("expected DebounceWindow 10s, got %v", cfg.Recognition.DebounceWindow)
	}
}

func TestLoad_ZeroDwellPolicy(t *testing.T) {
	t.Setenv("MIN_DWELL_SECONDS", "0")

	cfg := Load()

	if cfg.Recognition.MinDwell != 0 {
		t.Errorf("expected MinDwell 0 for immediate checkout policy, got %v", cfg.Recognition.MinDwell)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	t.Setenv("MATCH_THRESHOLD", "abc")

	cfg := Load()

	if cfg.Recognition.EmbeddingDim != 512 {
		t.Errorf("expected fallback EmbeddingDim 512, got %d", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Recognition.MatchThreshold != 0.6 {
		t.Errorf("expected fallback MatchThreshold 0.6, got %f", cfg.Recognition.MatchThreshold)
	}
}
