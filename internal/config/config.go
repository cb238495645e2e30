// Package config defines the typed Config & Paths record (spec §4.J) and
// the workspace-discovery contract consumed by front-ends. It follows the
// three-tier precedence of the original CVCConfig.for_project (construction
// override > file > defaults) and loads its optional YAML sidecar the way
// kai-core/modulematch loads module rules: gopkg.in/yaml.v3 over a plain
// os.ReadFile.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Mode labels which front-end originated commits made through this Config.
type Mode string

const (
	ModeCLI     Mode = "cli"
	ModeProxy   Mode = "proxy"
	ModeMCP     Mode = "mcp"
	ModeUnknown Mode = "unknown"
)

const (
	DefaultAnchorInterval          = 10
	DefaultAutoCommitIntervalCLI   = 2
	DefaultAutoCommitIntervalProxy = 3
	DefaultDeltaRatio              = 0.5
	DefaultDeltaMinSize      int64 = 4 * 1024
	DefaultZstdLevel               = 3
	DefaultBranch                  = "main"
)

const (
	dirName         = ".cvc"
	dbFileName      = "cvc.db"
	objectsDirName  = "objects"
	cacheFileName   = "context_cache.json"
	semanticDirName = "chroma"
	sidecarFileName = "cvc.yaml"
	workspaceEnvVar = "CVC_WORKSPACE"
)

// Config is the typed configuration record of spec §4.J.
type Config struct {
	RepoRoot           string
	AgentID            string
	DefaultBranch      string
	Mode               Mode
	AnchorInterval     int
	AutoCommitInterval int
	DeltaRatio         float64
	DeltaMinSize       int64
	ZstdLevel          int
	VectorEnabled      bool
	Provider           string
	Model              string
	Logger             *slog.Logger
}

// sidecar mirrors the subset of Config an operator may override via
// cvc.yaml.
type sidecar struct {
	AnchorInterval     *int     `yaml:"anchor_interval"`
	AutoCommitInterval *int     `yaml:"auto_commit_interval"`
	DeltaRatio         *float64 `yaml:"delta_ratio"`
	DeltaMinSize       *int64   `yaml:"delta_min_size"`
	VectorEnabled      *bool    `yaml:"vector_enabled"`
	Provider           *string  `yaml:"provider"`
	Model              *string  `yaml:"model"`
}

// Defaults returns a Config with every field at its spec-mandated default,
// mode-sensitive auto-commit interval included (§6.4).
func Defaults(repoRoot string, mode Mode) Config {
	interval := DefaultAutoCommitIntervalCLI
	if mode == ModeProxy {
		interval = DefaultAutoCommitIntervalProxy
	}
	return Config{
		RepoRoot:           repoRoot,
		AgentID:            "unknown",
		DefaultBranch:      DefaultBranch,
		Mode:               mode,
		AnchorInterval:     DefaultAnchorInterval,
		AutoCommitInterval: interval,
		DeltaRatio:         DefaultDeltaRatio,
		DeltaMinSize:       DefaultDeltaMinSize,
		ZstdLevel:          DefaultZstdLevel,
		VectorEnabled:      false,
		Logger:             slog.Default(),
	}
}

// Load builds a Config for repoRoot, applying (in increasing precedence):
// built-in defaults, the cvc.yaml sidecar if present, then override. Any
// zero-value field in override is left at the file/default value; override
// is applied field-by-field rather than wholesale so a caller may specify
// only the fields it cares about.
func Load(repoRoot string, mode Mode, override Config) (Config, error) {
	cfg := Defaults(repoRoot, mode)

	sidecarPath := filepath.Join(repoRoot, sidecarFileName)
	if data, err := os.ReadFile(sidecarPath); err == nil {
		var sc sidecar
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", sidecarPath, err)
		}
		applySidecar(&cfg, sc)
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", sidecarPath, err)
	}

	applyOverride(&cfg, override)

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg, nil
}

func applySidecar(cfg *Config, sc sidecar) {
	if sc.AnchorInterval != nil {
		cfg.AnchorInterval = *sc.AnchorInterval
	}
	if sc.AutoCommitInterval != nil {
		cfg.AutoCommitInterval = *sc.AutoCommitInterval
	}
	if sc.DeltaRatio != nil {
		cfg.DeltaRatio = *sc.DeltaRatio
	}
	if sc.DeltaMinSize != nil {
		cfg.DeltaMinSize = *sc.DeltaMinSize
	}
	if sc.VectorEnabled != nil {
		cfg.VectorEnabled = *sc.VectorEnabled
	}
	if sc.Provider != nil {
		cfg.Provider = *sc.Provider
	}
	if sc.Model != nil {
		cfg.Model = *sc.Model
	}
}

func applyOverride(cfg *Config, o Config) {
	if o.AgentID != "" {
		cfg.AgentID = o.AgentID
	}
	if o.DefaultBranch != "" {
		cfg.DefaultBranch = o.DefaultBranch
	}
	if o.AnchorInterval != 0 {
		cfg.AnchorInterval = o.AnchorInterval
	}
	if o.AutoCommitInterval != 0 {
		cfg.AutoCommitInterval = o.AutoCommitInterval
	}
	if o.DeltaRatio != 0 {
		cfg.DeltaRatio = o.DeltaRatio
	}
	if o.DeltaMinSize != 0 {
		cfg.DeltaMinSize = o.DeltaMinSize
	}
	if o.ZstdLevel != 0 {
		cfg.ZstdLevel = o.ZstdLevel
	}
	if o.VectorEnabled {
		cfg.VectorEnabled = true
	}
	if o.Provider != "" {
		cfg.Provider = o.Provider
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.Logger != nil {
		cfg.Logger = o.Logger
	}
}

// Paths resolves the on-disk layout under a Config's RepoRoot (§4.J).
type Paths struct {
	Root       string
	DB         string
	Objects    string
	Cache      string
	SemanticDB string
}

// ResolvePaths returns the fixed directory layout rooted at
// cfg.RepoRoot/.cvc.
func ResolvePaths(cfg Config) Paths {
	root := filepath.Join(cfg.RepoRoot, dirName)
	return Paths{
		Root:       root,
		DB:         filepath.Join(root, dbFileName),
		Objects:    filepath.Join(root, objectsDirName),
		Cache:      filepath.Join(root, cacheFileName),
		SemanticDB: filepath.Join(root, semanticDirName),
	}
}

// EnsureDirs creates the repository's directory layout, mirroring the
// original CVCConfig.ensure_dirs.
func EnsureDirs(p Paths) error {
	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", p.Root, err)
	}
	if err := os.MkdirAll(p.Objects, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", p.Objects, err)
	}
	return nil
}

// DiscoverWorkspace implements the workspace-discovery contract of §4.J:
// explicit override, then CVC_WORKSPACE, then an ancestor walk from start
// stopping at the first directory containing .cvc, .git, or a project
// manifest, then start itself.
//
// DiscoverWorkspace never errors; the final fallback always succeeds,
// matching the spec's "finally the process working directory with a
// warning" rule. The caller's logger receives that warning.
func DiscoverWorkspace(override string, start string, logger *slog.Logger) string {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err == nil {
			return abs
		}
		return override
	}
	if env := os.Getenv(workspaceEnvVar); env != "" {
		abs, err := filepath.Abs(env)
		if err == nil {
			return abs
		}
		return env
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		dir = start
	}
	for {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		abs = start
	}
	logger.Warn("workspace discovery found no marker, falling back to working directory", "dir", abs)
	return abs
}

var workspaceMarkers = []string{".cvc", ".git", "pyproject.toml", "go.mod", "package.json"}

func hasWorkspaceMarker(dir string) bool {
	for _, m := range workspaceMarkers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}
