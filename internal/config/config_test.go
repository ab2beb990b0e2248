package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "http://localhost:5000" {
		t.Fatalf("expected default base url, got %q", c.BaseURL())
	}
	if c.PageSize() != 10 || c.GalleryLimit() != 20 {
		t.Fatalf("expected default paging, got page_size=%d gallery_limit=%d", c.PageSize(), c.GalleryLimit())
	}
	if c.MediaKind() != "images" {
		t.Fatalf("expected default media kind images, got %q", c.MediaKind())
	}
}

func TestInitPostdeckDirWritesDefaultConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitPostdeckDir(projectDir); err != nil {
		t.Fatalf("InitPostdeckDir: %v", err)
	}
	path := filepath.Join(projectDir, PostdeckDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config must be written: %v", err)
	}
	if !strings.Contains(string(data), "base_url") {
		t.Fatalf("default config missing base_url")
	}
	if _, err := os.Stat(filepath.Join(projectDir, PostdeckDir, "logs")); err != nil {
		t.Fatalf("logs dir must exist: %v", err)
	}

	// A second init must not clobber an edited config.
	if err := os.WriteFile(path, []byte("version: 1\nserver:\n  base_url: http://edited:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitPostdeckDir(projectDir); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "edited") {
		t.Fatalf("init must keep the existing config")
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitPostdeckDir(projectDir); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
server:
  base_url: https://staging.example.com/
queue:
  page_size: 25
  gallery_limit: 20
  media_kind: Videos
default_account: backup
`)
	if err := os.WriteFile(filepath.Join(projectDir, PostdeckDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "https://staging.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.BaseURL())
	}
	if c.PageSize() != 25 {
		t.Fatalf("expected page size 25, got %d", c.PageSize())
	}
	if c.MediaKind() != "videos" {
		t.Fatalf("expected kind normalized to videos, got %q", c.MediaKind())
	}
	if c.DefaultAccount() != "backup" {
		t.Fatalf("expected default account backup, got %q", c.DefaultAccount())
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad scheme", "version: 1\nserver:\n  base_url: ftp://example.com\n"},
		{"bad kind", "version: 1\nqueue:\n  media_kind: gifs\n"},
		{"bad page size", "version: 1\nqueue:\n  page_size: -4\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			projectDir := t.TempDir()
			if err := InitPostdeckDir(projectDir); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(projectDir, PostdeckDir, "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
