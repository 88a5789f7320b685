package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// CleanupPolicy defines when staged copies are removed from the project root
type CleanupPolicy string

const (
	CleanupOnSuccess CleanupPolicy = "on-success"
	CleanupAlways    CleanupPolicy = "always"
)

const (
	DefaultSourceDir          = "src"
	DefaultStateDirName       = ".claspsync"
	DefaultCredentialsName    = ".clasprc.json"
	DefaultRunnerCommand      = "npx"
	DefaultRunnerPackage      = "@google/clasp"
	DefaultVersionDescription = "Deployment via publish script"
	DefaultDeployDescription  = "Latest deployment"
	DefaultDeploymentID       = "1"
)

// DefaultExtensions are the script and markup extensions clasp syncs
var DefaultExtensions = []string{".gs", ".js", ".html"}

// DefaultExclude lists root files that are never relocated into the source dir
var DefaultExclude = []string{"appsscript.json", "publish.js", "new_publish.js"}

// Config represents the complete claspsync configuration
type Config struct {
	Paths  PathsConfig  `yaml:"paths" toml:"paths"`
	Runner RunnerConfig `yaml:"runner" toml:"runner"`
	Files  FilesConfig  `yaml:"files" toml:"files"`
	Push   PushConfig   `yaml:"push" toml:"push"`
	Deploy DeployConfig `yaml:"deploy" toml:"deploy"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	ProjectRoot     string `yaml:"project_root" toml:"project_root"`
	SourceDir       string `yaml:"source_dir" toml:"source_dir"`
	StateDir        string `yaml:"state_dir" toml:"state_dir"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
}

// RunnerConfig configures how the clasp CLI is launched
type RunnerConfig struct {
	Command string   `yaml:"command" toml:"command"`
	Package string   `yaml:"package" toml:"package"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// FilesConfig configures which files take part in staging and relocation
type FilesConfig struct {
	Extensions []string `yaml:"extensions" toml:"extensions"`
	Exclude    []string `yaml:"exclude" toml:"exclude"`
}

// PushConfig configures the staged push
type PushConfig struct {
	Cleanup CleanupPolicy `yaml:"cleanup" toml:"cleanup"`
}

// DeployConfig configures version creation and deployment
type DeployConfig struct {
	VersionDescription string `yaml:"version_description" toml:"version_description"`
	Description        string `yaml:"description" toml:"description"`
	DeploymentID       string `yaml:"deployment_id" toml:"deployment_id"`
}

// Duration is a time.Duration that decodes from strings like "90s"
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, used by both decoders
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load reads and parses the configuration file. TOML is used for files with a
// .toml extension, YAML otherwise.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return finalize(&cfg)
}

// Default returns the built-in configuration, rooted at the current directory
func Default() (*Config, error) {
	return finalize(&Config{})
}

func finalize(cfg *Config) (*Config, error) {
	cfg.expandEnv()

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.ProjectRoot = os.ExpandEnv(c.Paths.ProjectRoot)
	c.Paths.SourceDir = os.ExpandEnv(c.Paths.SourceDir)
	c.Paths.StateDir = os.ExpandEnv(c.Paths.StateDir)
	c.Paths.CredentialsFile = os.ExpandEnv(c.Paths.CredentialsFile)
	c.Runner.Command = os.ExpandEnv(c.Runner.Command)
	c.Runner.Package = os.ExpandEnv(c.Runner.Package)
}

// applyDefaults fills in zero-value fields. The project root defaults to the
// working directory and the credentials file to $HOME/.clasprc.json.
func (c *Config) applyDefaults() error {
	if c.Paths.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		c.Paths.ProjectRoot = wd
	}
	if c.Paths.SourceDir == "" {
		c.Paths.SourceDir = DefaultSourceDir
	}
	if c.Paths.CredentialsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		c.Paths.CredentialsFile = filepath.Join(home, DefaultCredentialsName)
	}
	if c.Runner.Command == "" {
		c.Runner.Command = DefaultRunnerCommand
		if c.Runner.Package == "" {
			c.Runner.Package = DefaultRunnerPackage
		}
	}
	if len(c.Files.Extensions) == 0 {
		c.Files.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if c.Files.Exclude == nil {
		c.Files.Exclude = append([]string(nil), DefaultExclude...)
	}
	if c.Push.Cleanup == "" {
		c.Push.Cleanup = CleanupOnSuccess
	}
	if c.Deploy.VersionDescription == "" {
		c.Deploy.VersionDescription = DefaultVersionDescription
	}
	if c.Deploy.Description == "" {
		c.Deploy.Description = DefaultDeployDescription
	}
	if c.Deploy.DeploymentID == "" {
		c.Deploy.DeploymentID = DefaultDeploymentID
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.ProjectRoot == "" {
		return fmt.Errorf("paths.project_root is required")
	}
	if !filepath.IsAbs(c.Paths.ProjectRoot) {
		return fmt.Errorf("paths.project_root must be an absolute path: %s", c.Paths.ProjectRoot)
	}
	if c.Paths.SourceDir == "" {
		return fmt.Errorf("paths.source_dir is required")
	}
	if c.SourceDir() == filepath.Clean(c.Paths.ProjectRoot) {
		return fmt.Errorf("paths.source_dir must differ from paths.project_root")
	}

	if strings.TrimSpace(c.Runner.Command) == "" {
		return fmt.Errorf("runner.command is required")
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("runner.timeout must not be negative: %s", time.Duration(c.Runner.Timeout))
	}

	for _, ext := range c.Files.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("files.extensions entry must start with a dot: %q", ext)
		}
	}

	switch c.Push.Cleanup {
	case CleanupOnSuccess, CleanupAlways:
		// valid
	default:
		return fmt.Errorf("invalid push.cleanup policy: %s (must be on-success or always)", c.Push.Cleanup)
	}

	if strings.TrimSpace(c.Deploy.DeploymentID) == "" {
		return fmt.Errorf("deploy.deployment_id is required")
	}

	return nil
}

// SourceDir returns the absolute path of the local source directory
func (c *Config) SourceDir() string {
	if filepath.IsAbs(c.Paths.SourceDir) {
		return filepath.Clean(c.Paths.SourceDir)
	}
	return filepath.Join(c.Paths.ProjectRoot, c.Paths.SourceDir)
}

// StateDir returns the directory holding the staging manifest
func (c *Config) StateDir() string {
	if c.Paths.StateDir == "" {
		return filepath.Join(c.Paths.ProjectRoot, DefaultStateDirName)
	}
	return c.Paths.StateDir
}

// ManifestPath returns the path of the staging manifest
func (c *Config) ManifestPath() string {
	return filepath.Join(c.StateDir(), "staged.json")
}

// Timeout returns the configured runner timeout, zero meaning unbounded
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Runner.Timeout)
}
