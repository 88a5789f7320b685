// Package cli holds the flag, logging and wiring code shared by the claspsync
// and claspdeploy entry points.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/schaermu/claspsync/internal/clasp"
	"github.com/schaermu/claspsync/internal/config"
	"github.com/schaermu/claspsync/internal/publish"
	"github.com/schaermu/claspsync/internal/scriptfile"
	"github.com/schaermu/claspsync/internal/stage"
)

// Globals are the flags every entry point accepts
type Globals struct {
	CfgFile   string
	Root      string
	LogLevel  string
	LogFormat string
	Timeout   time.Duration
	DryRun    bool
}

// Register adds the global flags to the command
func (g *Globals) Register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&g.CfgFile, "config", "", "config file (default is $HOME/.config/claspsync/config.yaml)")
	flags.StringVar(&g.Root, "root", "", "project root containing .clasp.json (default is the current directory)")
	flags.StringVar(&g.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&g.LogFormat, "log-format", "auto", "log format (text, json, auto)")
	flags.DurationVar(&g.Timeout, "timeout", 0, "abort a clasp command after this long (0 disables)")
	flags.BoolVar(&g.DryRun, "dry-run", false, "show what would be done without making changes")
}

// SetupLogger builds the process logger. Logs go to stderr so clasp's own
// stdout stays readable.
func (g *Globals) SetupLogger() *slog.Logger {
	var level slog.Level
	switch g.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	format := g.LogFormat
	if format == "auto" {
		format = "json"
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "text"
		}
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// DefaultConfigPath returns $HOME/.config/claspsync/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "claspsync", "config.yaml"), nil
}

// LoadConfig loads the config file and applies flag overrides. An explicit
// --config must exist; a missing default file falls back to built-in defaults.
func (g *Globals) LoadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, error) {
	cfg, err := g.loadFile(logger)
	if err != nil {
		return nil, err
	}

	if g.Root != "" {
		root, err := filepath.Abs(g.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project root: %w", err)
		}
		cfg.Paths.ProjectRoot = root
	}
	if cmd != nil && cmd.Flags().Changed("timeout") {
		cfg.Runner.Timeout = config.Duration(g.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("configuration loaded",
		"project_root", cfg.Paths.ProjectRoot,
		"source_dir", cfg.SourceDir(),
		"runner", cfg.Runner.Command,
		"timeout", cfg.Timeout(),
		"cleanup", cfg.Push.Cleanup)

	return cfg, nil
}

func (g *Globals) loadFile(logger *slog.Logger) (*config.Config, error) {
	if g.CfgFile != "" {
		logger.Info("loading configuration", "path", g.CfgFile)
		return config.Load(g.CfgFile)
	}

	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no config file, using defaults", "path", path)
			return config.Default()
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	logger.Info("loading configuration", "path", path)
	return config.Load(path)
}

// NewEngine wires the clasp runner and stager for cfg
func NewEngine(cfg *config.Config, logger *slog.Logger, dryRun bool) *publish.Engine {
	runner := clasp.NewShellRunner(clasp.Options{
		Command: cfg.Runner.Command,
		Package: cfg.Runner.Package,
		Dir:     cfg.Paths.ProjectRoot,
		Timeout: cfg.Timeout(),
	}, logger)

	stager := stage.New(stage.Options{
		ProjectRoot:  cfg.Paths.ProjectRoot,
		SourceDir:    cfg.SourceDir(),
		ManifestPath: cfg.ManifestPath(),
		Matcher:      scriptfile.NewMatcher(cfg.Files.Extensions, cfg.Files.Exclude),
	}, logger)

	return publish.NewEngine(cfg, runner, stager, logger, dryRun)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// minSimilarity is the Damerau-Levenshtein similarity above which a stray
// argument is considered a typo of a flag name
const minSimilarity = 0.5

// Suggest returns "--name" for the flag name closest to arg, or "" when
// nothing is close enough
func Suggest(arg string, flagNames []string) string {
	word := strings.ToLower(strings.TrimLeft(arg, "-"))
	if word == "" {
		return ""
	}

	best := ""
	var bestScore float32
	for _, name := range flagNames {
		score, err := edlib.StringsSimilarity(word, name, edlib.DamerauLevenshtein)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore < minSimilarity {
		return ""
	}
	return "--" + best
}

// HintStrayArgs prints a "did you mean" line for each positional argument
func HintStrayArgs(cmd *cobra.Command, args, flagNames []string) {
	for _, arg := range args {
		if s := Suggest(arg, flagNames); s != "" {
			cmd.PrintErrf("unknown argument %q, did you mean %s?\n", arg, s)
		} else {
			cmd.PrintErrf("unknown argument %q\n", arg)
		}
	}
}
