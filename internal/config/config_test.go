package config

import (
	"testing"
	"time"

	"github.com/docker/go-units"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ChunkSize != 10*units.MiB {
		t.Fatalf("ChunkSize = %d, want 10MiB", cfg.ChunkSize)
	}
	if cfg.StorageBackend != BackendLocal {
		t.Fatalf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.StagingTTL != 24*time.Hour {
		t.Fatalf("StagingTTL = %s", cfg.StagingTTL)
	}
}

func TestLoad_HumanReadableByteSizes(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "5MB")
	t.Setenv("MAX_UPLOAD_BYTES", "1GiB")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 5*units.MiB {
		t.Fatalf("ChunkSize = %d, want 5MiB", cfg.ChunkSize)
	}
	if cfg.MaxUploadBytes != 1*units.GiB {
		t.Fatalf("MaxUploadBytes = %d, want 1GiB", cfg.MaxUploadBytes)
	}
}

func TestLoad_PlainByteCount(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "1048576")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 1048576 {
		t.Fatalf("ChunkSize = %d", cfg.ChunkSize)
	}
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want bucket error")
	}
}

func TestLoad_UnknownBackendRejected(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "floppy")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want backend error")
	}
}

func TestLoad_CORSList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com;https://app.example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}
