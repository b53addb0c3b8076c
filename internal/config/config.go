// Package config provides configuration loading for Doc2Talk.
// Defaults are overridable from <home>/config.yaml and then from CLI
// flags; the home directory itself is injectable so tests never touch
// the real user cache.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
	"github.com/unclecode/doc2talk/internal/llm"
)

// Defaults for conversation bounds.
const (
	DefaultMaxHistory  = 50
	DefaultMaxContexts = 5
)

// Config is the full Doc2Talk configuration.
type Config struct {
	// HomeDir is the Doc2Talk state root (repos, index, sessions, logs).
	// Defaults to ~/.doctalk.
	HomeDir string `yaml:"home_dir"`

	// CodeSource and DocsSource are the source references (local path or
	// remote VCS URL). At least one must be set before building.
	CodeSource string `yaml:"code_source"`
	DocsSource string `yaml:"docs_source"`

	// Exclude holds glob patterns evaluated against full file paths.
	Exclude []string `yaml:"exclude"`

	// CacheID overrides the derived index cache identifier.
	CacheID string `yaml:"cache_id"`

	// MaxHistory bounds the conversation history per session.
	MaxHistory int `yaml:"max_history"`

	// MaxContexts bounds the retrieved contexts per session.
	MaxContexts int `yaml:"max_contexts"`

	// Decision and Generation configure the two LLM call shapes.
	Decision   llm.Config `yaml:"decision"`
	Generation llm.Config `yaml:"generation"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		HomeDir:     filepath.Join(home, ".doctalk"),
		MaxHistory:  DefaultMaxHistory,
		MaxContexts: DefaultMaxContexts,
		Decision:    llm.DecisionDefaults(),
		Generation:  llm.GenerationDefaults(),
		LogLevel:    "info",
	}
}

// Load returns the defaults merged with <home>/config.yaml when present.
func Load() (*Config, error) {
	cfg := Default()
	path := filepath.Join(cfg.HomeDir, "config.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeConfigInvalid, "failed to read config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeConfigInvalid, "failed to parse config file", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.MaxContexts <= 0 {
		c.MaxContexts = DefaultMaxContexts
	}
	if c.Decision.Model == "" {
		c.Decision.Model = llm.DefaultDecisionModel
	}
	if c.Generation.Model == "" {
		c.Generation.Model = llm.DefaultGenerationModel
	}
}

// ReposDir returns the remote repository cache directory.
func (c *Config) ReposDir() string { return filepath.Join(c.HomeDir, "repos") }

// IndexDir returns the index cache directory.
func (c *Config) IndexDir() string { return filepath.Join(c.HomeDir, "index") }

// SessionsDir returns the session store directory.
func (c *Config) SessionsDir() string { return filepath.Join(c.HomeDir, "sessions") }
