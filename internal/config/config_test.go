package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "https://ferreteriaflores.up.railway.app/api",
		"REDIS_URL":        "redis://localhost:6379/0",
		"PORT":             "",
		"DRAFT_TTL":        "",
	})
	if err != nil {
		t.Fatalf("LoadForTests: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr())
	}
	if cfg.DraftTTL.Hours() != 12 {
		t.Fatalf("DraftTTL = %v", cfg.DraftTTL)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("RetryMaxAttempts = %d", cfg.RetryMaxAttempts)
	}
}

func TestLoadRequiresBackendURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "",
		"REDIS_URL":        "redis://localhost:6379/0",
	})
	if err == nil {
		t.Fatal("expected error when BACKEND_BASE_URL is missing")
	}
}

func TestLoadTrimsBaseURL(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "http://backend.local/api/",
		"REDIS_URL":        "redis://localhost:6379/0",
	})
	if err != nil {
		t.Fatalf("LoadForTests: %v", err)
	}
	if cfg.BackendBaseURL != "http://backend.local/api" {
		t.Fatalf("BackendBaseURL = %q", cfg.BackendBaseURL)
	}
}
