package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "")
	t.Setenv("UPLOAD_SESSION_TTL_MINUTES", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")

	cfg := Load()
	if cfg.CatalogPageSize != 8000 {
		t.Fatalf("expected catalog page size 8000, got %d", cfg.CatalogPageSize)
	}
	if cfg.UploadSessionTTLMinutes != 120 {
		t.Fatalf("expected session ttl 120, got %d", cfg.UploadSessionTTLMinutes)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("expected 20MiB upload cap, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadRejectsGarbageNumbers(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "-5")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "zero")

	cfg := Load()
	if cfg.CatalogPageSize != 8000 {
		t.Fatalf("expected fallback page size, got %d", cfg.CatalogPageSize)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback token ttl, got %d", cfg.AccessTokenTTLMinutes)
	}
}
