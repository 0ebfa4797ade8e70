// Package config provides configuration loading and management for Parari.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// ProjectConfigName is the per-repository override file.
const ProjectConfigName = ".parari.yaml"

// EnvPrefix prefixes every environment override (PARARI_WORKTREES_MAX, ...).
const EnvPrefix = "PARARI"

// Config represents the complete Parari configuration.
type Config struct {
	Worktrees WorktreesConfig `mapstructure:"worktrees" yaml:"worktrees"`
	Agents    AgentsConfig    `mapstructure:"agents" yaml:"agents"`
	Execution ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Editor    string          `mapstructure:"editor" yaml:"editor"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	State     StateConfig     `mapstructure:"state" yaml:"state"`
}

// WorktreesConfig controls where agent worktrees live and how many are kept.
type WorktreesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	Max int    `mapstructure:"max" yaml:"max"`
}

// AgentsConfig selects the agents a run launches by default.
type AgentsConfig struct {
	Enabled []string          `mapstructure:"enabled" yaml:"enabled"`
	Custom  []AgentDefinition `mapstructure:"custom" yaml:"custom,omitempty"`
}

// AgentDefinition declares an extra command-line agent. An argument
// containing "{prompt}" receives the prompt; otherwise it is appended.
type AgentDefinition struct {
	Name    string            `mapstructure:"name" yaml:"name"`
	Command string            `mapstructure:"command" yaml:"command"`
	Args    []string          `mapstructure:"args" yaml:"args,omitempty"`
	Env     map[string]string `mapstructure:"env" yaml:"env,omitempty"`
}

// ExecutionConfig holds process lifecycle settings.
type ExecutionConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
}

// MarshalYAML writes durations in their human form ("5s") so saved files
// round-trip through viper.
func (e ExecutionConfig) MarshalYAML() (any, error) {
	return map[string]string{"grace_period": e.GracePeriod.String()}, nil
}

// LogConfig configures the JSON file log.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
}

// StateConfig locates the worktree registry database.
type StateConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (PARARI_*)
// 2. Project config (.parari.yaml in projectDir or a parent)
// 3. User config (~/.config/parari/config.yaml)
// 4. Built-in defaults
//
// An empty projectDir starts the search at the working directory.
func Load(projectDir string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(projectDir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file, skipping the user
// and project layers. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Worktrees.Dir = expandPath(cfg.Worktrees.Dir)
	cfg.Log.Dir = expandPath(cfg.Log.Dir)
	cfg.State.Path = expandPath(cfg.State.Path)
	cfg.Agents.Enabled = splitList(cfg.Agents.Enabled)
	for i := range cfg.Agents.Custom {
		cfg.Agents.Custom[i].Env = upperKeys(cfg.Agents.Custom[i].Env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Worktrees.Max < 1 {
		return fmt.Errorf("worktrees.max must be at least 1, got %d", c.Worktrees.Max)
	}
	if c.Execution.GracePeriod < 0 {
		return fmt.Errorf("execution.grace_period must not be negative, got %s", c.Execution.GracePeriod)
	}
	if len(c.Agents.Enabled) == 0 {
		return errors.New("agents.enabled must name at least one agent")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	seen := make(map[string]bool, len(c.Agents.Custom))
	for i, a := range c.Agents.Custom {
		name := strings.ToLower(strings.TrimSpace(a.Name))
		if name == "" {
			return fmt.Errorf("agents.custom[%d]: name is required", i)
		}
		if strings.TrimSpace(a.Command) == "" {
			return fmt.Errorf("agents.custom[%d] (%s): command is required", i, a.Name)
		}
		if seen[name] {
			return fmt.Errorf("agents.custom: duplicate agent %q", a.Name)
		}
		seen[name] = true
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// templateHeader precedes the defaults written by WriteTemplate.
const templateHeader = `# Parari configuration.
#
# Layers, lowest to highest: built-in defaults, this file,
# .parari.yaml in the repository, PARARI_* environment variables.
#
# Custom agents receive the prompt wherever an argument contains "{prompt}":
#
# agents:
#   custom:
#     - name: aider
#       command: aider
#       args: ["--yes", "--message", "{prompt}"]

`

// WriteTemplate writes a commented default config to path. It refuses to
// overwrite an existing file unless force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, append([]byte(templateHeader), data...), 0600)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config above dir, or "" if none exists.
func GetProjectConfigPath(dir string) string {
	return findProjectConfig(dir)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	home := parariHome()

	v.SetDefault("worktrees.dir", filepath.Join(home, "worktrees"))
	v.SetDefault("worktrees.max", 20)

	v.SetDefault("agents.enabled", []string{"claude", "gemini", "codex"})

	v.SetDefault("execution.grace_period", "5s")

	v.SetDefault("editor", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", filepath.Join(home, "logs"))

	v.SetDefault("state.path", filepath.Join(home, "state.db"))
}

// parariHome is ~/.parari, holding worktrees, logs, run control files and state.
func parariHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parari"
	}
	return filepath.Join(home, ".parari")
}

// getUserConfigDir returns the XDG config directory for Parari.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "parari")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "parari")
	}
	return filepath.Join(home, ".config", "parari")
}

// findProjectConfig searches for .parari.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandPath expands ${VAR} references and a leading "~/".
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// splitList accepts both YAML lists and the comma-separated form that
// PARARI_AGENTS_ENABLED produces.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// upperKeys restores environment variable names, which viper lowercases.
func upperKeys(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// Default returns a Config with default values.
func Default() *Config {
	home := parariHome()
	return &Config{
		Worktrees: WorktreesConfig{
			Dir: filepath.Join(home, "worktrees"),
			Max: 20,
		},
		Agents: AgentsConfig{
			Enabled: []string{"claude", "gemini", "codex"},
		},
		Execution: ExecutionConfig{
			GracePeriod: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   filepath.Join(home, "logs"),
		},
		State: StateConfig{
			Path: filepath.Join(home, "state.db"),
		},
	}
}
