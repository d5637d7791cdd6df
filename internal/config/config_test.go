package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"CIVICVOICE_ACTOR", "CIVICVOICE_ADMIN", "CIVICVOICE_NARRATION_WPM", "REDIS_URL", "MINIO_REGION", "MEDIA_PRESIGN_TTL_SECONDS", "CIVICVOICE_NARRATION", "API_ADDR", "CORS_ORIGIN"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.ActorID != "u5" || cfg.Admin || !cfg.NarrationEnabled || cfg.NarrationWPM != 180 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Addr != ":8080" || cfg.CORSOrigin != "*" {
		t.Fatalf("unexpected listener defaults: %+v", cfg)
	}
	if cfg.RedisURL != "" || cfg.MinioRegion != "us-east-1" || cfg.PresignTTL != 15*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CIVICVOICE_ACTOR", "u3")
	t.Setenv("CIVICVOICE_ADMIN", "true")
	t.Setenv("CIVICVOICE_NARRATION_WPM", "240")
	t.Setenv("MEDIA_PRESIGN_TTL_SECONDS", "60")
	t.Setenv("MINIO_USE_SSL", "1")

	cfg := FromEnv()
	if cfg.ActorID != "u3" || !cfg.Admin || cfg.NarrationWPM != 240 || cfg.PresignTTL != time.Minute || !cfg.MinioUseSSL {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("CIVICVOICE_ADMIN", "maybe")
	t.Setenv("CIVICVOICE_NARRATION_WPM", "fast")

	cfg := FromEnv()
	if cfg.Admin || cfg.NarrationWPM != 180 {
		t.Fatalf("malformed values should fall back: %+v", cfg)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CIVICVOICE_SEED_FILE=custom.yaml\nCIVICVOICE_ACTOR=u2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("CIVICVOICE_SEED_FILE", "")
	t.Setenv("CIVICVOICE_ACTOR", "u1")
	os.Unsetenv("CIVICVOICE_SEED_FILE")

	cfg := Load()
	if cfg.SeedFile != "custom.yaml" {
		t.Fatalf("SeedFile = %q, want value from .env", cfg.SeedFile)
	}
	if cfg.ActorID != "u1" {
		t.Fatalf("ActorID = %q, environment should win over .env", cfg.ActorID)
	}
}
