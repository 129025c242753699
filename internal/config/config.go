// Package config loads and validates Arachne's on-disk configuration
// (spec.md §6): the watched repo paths, forge/auth settings, and the
// tunables for the rendering pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sergeknystautas/arachne/internal/version"
)

const (
	DefaultMaxCommits       = 500
	DefaultPollIntervalSecs = 60
	DefaultWatchDebounceMs  = 300
	DefaultForgeTimeoutSecs = 15
	DefaultGitTimeoutSecs   = 20
)

// DefaultTrunkBranches is spec.md §6's documented default reserved-lane
// order when a config omits trunk_branches.
var DefaultTrunkBranches = []string{"development", "staging", "production"}

// Repo is one watched repository.
type Repo struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Path string `json:"path" yaml:"path"`

	// TrunkBranches overrides the global TrunkBranches for this repo only,
	// when non-empty.
	TrunkBranches []string `json:"trunk_branches,omitempty" yaml:"trunk_branches,omitempty"`
}

// Config is the top-level Arachne configuration (spec.md §6).
type Config struct {
	ConfigVersion string `json:"config_version,omitempty" yaml:"config_version,omitempty"`

	// RepoPath is the single repo to open when Repos is empty; kept
	// separate so a one-repo config file can skip the list entirely.
	RepoPath string `json:"repo_path,omitempty" yaml:"repo_path,omitempty"`
	Repos    []Repo `json:"repos,omitempty" yaml:"repos,omitempty"`

	MaxCommits int `json:"max_commits,omitempty" yaml:"max_commits,omitempty"`

	// ShowForks is a pointer so an omitted key is distinguishable from an
	// explicit false; GetShowForks defaults it to true per spec.md §6.
	ShowForks        *bool    `json:"show_forks,omitempty" yaml:"show_forks,omitempty"`
	PollIntervalSecs int      `json:"poll_interval_secs,omitempty" yaml:"poll_interval_secs,omitempty"`
	WatchDebounceMs  int      `json:"watch_debounce_ms,omitempty" yaml:"watch_debounce_ms,omitempty"`
	TrunkBranches    []string `json:"trunk_branches,omitempty" yaml:"trunk_branches,omitempty"`

	// GitHubToken authenticates forge requests. Read from config but
	// normally supplied via the ARACHNE_GITHUB_TOKEN environment variable
	// so it never needs to sit on disk (spec.md §6).
	GitHubToken string `json:"github_token,omitempty" yaml:"github_token,omitempty"`

	// path is where this config was loaded from; empty for an in-memory
	// default. Not serialized.
	path string `json:"-" yaml:"-"`
}

// CreateDefault returns a Config with spec.md §6's documented defaults.
func CreateDefault(configPath string) *Config {
	return &Config{
		ConfigVersion:    version.Version,
		MaxCommits:       DefaultMaxCommits,
		PollIntervalSecs: DefaultPollIntervalSecs,
		WatchDebounceMs:  DefaultWatchDebounceMs,
		TrunkBranches:    append([]string(nil), DefaultTrunkBranches...),
		path:             configPath,
	}
}

// Load reads a config file, dispatching on extension between YAML and
// JSON, applies defaults for any zero-valued tunable, and expands
// environment overrides.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	switch filepath.Ext(configPath) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.path = configPath
	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxCommits <= 0 {
		c.MaxCommits = DefaultMaxCommits
	}
	if c.PollIntervalSecs <= 0 {
		c.PollIntervalSecs = DefaultPollIntervalSecs
	}
	if c.WatchDebounceMs <= 0 {
		c.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if len(c.TrunkBranches) == 0 {
		c.TrunkBranches = append([]string(nil), DefaultTrunkBranches...)
	}
}

// applyEnvOverrides lets ARACHNE_GITHUB_TOKEN win over a config-file value,
// so a token never has to be committed to disk.
func (c *Config) applyEnvOverrides() {
	if tok := os.Getenv("ARACHNE_GITHUB_TOKEN"); tok != "" {
		c.GitHubToken = tok
	}
}

// Validate reports structural problems that would make the config unusable.
func (c *Config) Validate() error {
	if c.RepoPath == "" && len(c.Repos) == 0 {
		return fmt.Errorf("config: at least one of repo_path or repos must be set")
	}
	for i, r := range c.Repos {
		if r.Path == "" {
			return fmt.Errorf("config: repos[%d] missing path", i)
		}
	}
	return nil
}

// Save writes the config back to the path it was loaded/created with.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}

	c.ConfigVersion = version.Version

	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	var data []byte
	var err error
	switch filepath.Ext(c.path) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(c.path, data, 0644)
}

// RepoList returns the repos to open: the explicit list if set, otherwise
// a single synthesized entry from RepoPath.
func (c *Config) RepoList() []Repo {
	if len(c.Repos) > 0 {
		return c.Repos
	}
	if c.RepoPath != "" {
		return []Repo{{Path: c.RepoPath}}
	}
	return nil
}

// TrunkBranchesFor returns a repo's effective trunk order: its own
// override if set, otherwise the global list.
func (c *Config) TrunkBranchesFor(r Repo) []string {
	if len(r.TrunkBranches) > 0 {
		return r.TrunkBranches
	}
	return c.TrunkBranches
}

// GetShowForks reports whether fork-kind branches should be included in
// layout. Defaults to true (spec.md §6) when the config omits the key.
func (c *Config) GetShowForks() bool {
	if c.ShowForks == nil {
		return true
	}
	return *c.ShowForks
}

// PollInterval returns the forge polling interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// WatchDebounce returns the filesystem-watch debounce interval as a
// time.Duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// GitTimeout bounds a single git subprocess invocation.
func (c *Config) GitTimeout() time.Duration {
	return DefaultGitTimeoutSecs * time.Second
}

// ForgeTimeout bounds a single forge HTTP request.
func (c *Config) ForgeTimeout() time.Duration {
	return DefaultForgeTimeoutSecs * time.Second
}

// ConfigExists reports whether a config file already exists at path.
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
