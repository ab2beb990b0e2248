// internal/config/config.go
//
// This package handles configuration and the .postdeck directory structure.
// Every directory postdeck runs from gets a .postdeck/ folder holding the
// config file and logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// PostdeckDir is the name of the directory we create in each project.
	PostdeckDir = ".postdeck"

	defaultBaseURL      = "http://localhost:5000"
	defaultPageSize     = 10
	defaultGalleryLimit = 20
	defaultMediaKind    = "images"
)

const defaultConfigYAML = `# postdeck configuration
version: 1

# The staging server that owns the pending queue and talks to the platform.
server:
  base_url: http://localhost:5000

queue:
  # Submissions fetched per page.
  page_size: 10
  # Platform maximum of media items per published post; oversized
  # submissions are split into this many items per part.
  gallery_limit: 20
  # images or videos
  media_kind: images

# Optional: preselect this account at startup instead of the first one
# the server reports.
# default_account: mymainaccount
`

// ServerConfig points at the staging server.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// QueueConfig controls paging and splitting of the pending queue.
type QueueConfig struct {
	PageSize     int    `yaml:"page_size"`
	GalleryLimit int    `yaml:"gallery_limit"`
	MediaKind    string `yaml:"media_kind"`
}

// ProjectConfig models .postdeck/config.yaml.
type ProjectConfig struct {
	Version        int          `yaml:"version"`
	Server         ServerConfig `yaml:"server"`
	Queue          QueueConfig  `yaml:"queue"`
	DefaultAccount string       `yaml:"default_account,omitempty"`
}

// Config holds the runtime configuration for postdeck.
type Config struct {
	// ProjectDir is the directory postdeck was started from.
	ProjectDir string

	// PostdeckProjectDir is ProjectDir/.postdeck.
	PostdeckProjectDir string

	Project ProjectConfig
}

// InitPostdeckDir creates the .postdeck directory structure in the given
// project directory and writes a commented default config on first run.
func InitPostdeckDir(projectDir string) error {
	postdeckDir := filepath.Join(projectDir, PostdeckDir)
	dirs := []string{
		postdeckDir,
		filepath.Join(postdeckDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureConfigFile(filepath.Join(postdeckDir, "config.yaml"))
}

// NewConfig loads the project configuration, applying defaults when the
// file or individual fields are missing.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:         projectDir,
		PostdeckProjectDir: filepath.Join(projectDir, PostdeckDir),
		Project:            defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.PostdeckProjectDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.PostdeckProjectDir, "config.yaml")
}

// BaseURL returns the staging server address.
func (c *Config) BaseURL() string {
	return c.Project.Server.BaseURL
}

// PageSize returns the number of submissions fetched per page.
func (c *Config) PageSize() int {
	return c.Project.Queue.PageSize
}

// GalleryLimit returns the platform maximum of media items per post.
func (c *Config) GalleryLimit() int {
	return c.Project.Queue.GalleryLimit
}

// MediaKind returns the configured queue kind, "images" or "videos".
func (c *Config) MediaKind() string {
	return c.Project.Queue.MediaKind
}

// DefaultAccount returns the account to preselect at startup, if any.
func (c *Config) DefaultAccount() string {
	return c.Project.DefaultAccount
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Server:  ServerConfig{BaseURL: defaultBaseURL},
		Queue: QueueConfig{
			PageSize:     defaultPageSize,
			GalleryLimit: defaultGalleryLimit,
			MediaKind:    defaultMediaKind,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Server.BaseURL == "" {
		pc.Server.BaseURL = defaultBaseURL
	}
	if pc.Queue.PageSize == 0 {
		pc.Queue.PageSize = defaultPageSize
	}
	if pc.Queue.GalleryLimit == 0 {
		pc.Queue.GalleryLimit = defaultGalleryLimit
	}
	if pc.Queue.MediaKind == "" {
		pc.Queue.MediaKind = defaultMediaKind
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Server.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Server.BaseURL), "/")
	pc.Queue.MediaKind = strings.ToLower(strings.TrimSpace(pc.Queue.MediaKind))
	pc.DefaultAccount = strings.TrimSpace(pc.DefaultAccount)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	u, err := url.Parse(pc.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.base_url must be an http(s) URL, got %q", pc.Server.BaseURL)
	}
	if pc.Queue.PageSize < 1 {
		return fmt.Errorf("queue.page_size must be >= 1")
	}
	if pc.Queue.GalleryLimit < 1 {
		return fmt.Errorf("queue.gallery_limit must be >= 1")
	}
	switch pc.Queue.MediaKind {
	case "images", "videos":
	default:
		return fmt.Errorf("queue.media_kind must be 'images' or 'videos', got %q", pc.Queue.MediaKind)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
