package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsPicksModeSensitiveAutoCommitInterval(t *testing.T) {
	cli := Defaults("/repo", ModeCLI)
	if cli.AutoCommitInterval != DefaultAutoCommitIntervalCLI {
		t.Fatalf("cli interval = %d, want %d", cli.AutoCommitInterval, DefaultAutoCommitIntervalCLI)
	}
	proxy := Defaults("/repo", ModeProxy)
	if proxy.AutoCommitInterval != DefaultAutoCommitIntervalProxy {
		t.Fatalf("proxy interval = %d, want %d", proxy.AutoCommitInterval, DefaultAutoCommitIntervalProxy)
	}
}

func TestLoadAppliesSidecarOverDefaults(t *testing.T) {
	dir := t.TempDir()
	sidecar := "anchor_interval: 5\nvector_enabled: true\nprovider: anthropic\n"
	if err := os.WriteFile(filepath.Join(dir, "cvc.yaml"), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	cfg, err := Load(dir, ModeCLI, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnchorInterval != 5 {
		t.Fatalf("anchor interval = %d, want 5", cfg.AnchorInterval)
	}
	if !cfg.VectorEnabled {
		t.Fatalf("vector enabled = false, want true from sidecar")
	}
	if cfg.Provider != "anthropic" {
		t.Fatalf("provider = %s, want anthropic", cfg.Provider)
	}
	if cfg.DeltaRatio != DefaultDeltaRatio {
		t.Fatalf("delta ratio = %v, want default %v (untouched by sidecar)", cfg.DeltaRatio, DefaultDeltaRatio)
	}
}

func TestLoadOverrideWinsOverSidecar(t *testing.T) {
	dir := t.TempDir()
	sidecar := "anchor_interval: 5\n"
	if err := os.WriteFile(filepath.Join(dir, "cvc.yaml"), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	cfg, err := Load(dir, ModeCLI, Config{AnchorInterval: 42})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnchorInterval != 42 {
		t.Fatalf("anchor interval = %d, want override value 42", cfg.AnchorInterval)
	}
}

func TestLoadWithoutSidecarUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, ModeCLI, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnchorInterval != DefaultAnchorInterval {
		t.Fatalf("anchor interval = %d, want default %d", cfg.AnchorInterval, DefaultAnchorInterval)
	}
}

func TestResolvePathsLayout(t *testing.T) {
	cfg := Defaults("/repo", ModeCLI)
	p := ResolvePaths(cfg)
	if p.Root != filepath.Join("/repo", ".cvc") {
		t.Fatalf("root = %s", p.Root)
	}
	if p.DB != filepath.Join(p.Root, "cvc.db") {
		t.Fatalf("db = %s", p.DB)
	}
	if p.Objects != filepath.Join(p.Root, "objects") {
		t.Fatalf("objects = %s", p.Objects)
	}
}

func TestEnsureDirsCreatesRootAndObjects(t *testing.T) {
	repo := t.TempDir()
	cfg := Defaults(repo, ModeCLI)
	p := ResolvePaths(cfg)
	if err := EnsureDirs(p); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	if _, err := os.Stat(p.Root); err != nil {
		t.Fatalf("root not created: %v", err)
	}
	if _, err := os.Stat(p.Objects); err != nil {
		t.Fatalf("objects not created: %v", err)
	}
}

func TestDiscoverWorkspaceHonorsExplicitOverride(t *testing.T) {
	dir := t.TempDir()
	got := DiscoverWorkspace(dir, "/somewhere/else", nil)
	abs, _ := filepath.Abs(dir)
	if got != abs {
		t.Fatalf("got %s, want %s", got, abs)
	}
}

func TestDiscoverWorkspaceHonorsEnvVar(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CVC_WORKSPACE", dir)
	got := DiscoverWorkspace("", "/somewhere/else", nil)
	abs, _ := filepath.Abs(dir)
	if got != abs {
		t.Fatalf("got %s, want %s", got, abs)
	}
}

func TestDiscoverWorkspaceWalksUpToMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	got := DiscoverWorkspace("", nested, nil)
	abs, _ := filepath.Abs(root)
	if got != abs {
		t.Fatalf("got %s, want %s", got, abs)
	}
}

func TestDiscoverWorkspaceFallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	got := DiscoverWorkspace("", dir, nil)
	abs, _ := filepath.Abs(dir)
	if got != abs {
		t.Fatalf("got %s, want %s", got, abs)
	}
}
