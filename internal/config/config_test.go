package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Repo != "rhasspy/piper-checkpoints" {
		t.Errorf("Source.Repo = %q; want %q", cfg.Source.Repo, "rhasspy/piper-checkpoints")
	}

	if cfg.Dest.Repo != "mush42/piper-rt" {
		t.Errorf("Dest.Repo = %q; want %q", cfg.Dest.Repo, "mush42/piper-rt")
	}

	if cfg.Paths.WorkingDir != "workspace" {
		t.Errorf("Paths.WorkingDir = %q; want %q", cfg.Paths.WorkingDir, "workspace")
	}

	if cfg.Paths.PiperDir != "piper" {
		t.Errorf("Paths.PiperDir = %q; want %q", cfg.Paths.PiperDir, "piper")
	}

	if cfg.Export.PythonBin != "python3" {
		t.Errorf("Export.PythonBin = %q; want %q", cfg.Export.PythonBin, "python3")
	}

	if cfg.Export.PiperBranch != "streaming" {
		t.Errorf("Export.PiperBranch = %q; want %q", cfg.Export.PiperBranch, "streaming")
	}

	if cfg.Export.SkipBootstrap {
		t.Error("Export.SkipBootstrap = true; want false")
	}

	if cfg.Hub.BaseURL != "https://huggingface.co" {
		t.Errorf("Hub.BaseURL = %q; want %q", cfg.Hub.BaseURL, "https://huggingface.co")
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	// Spot-check a few flags are registered with correct defaults.
	checks := []struct {
		flag string
		want string
	}{
		{"source-repo", "rhasspy/piper-checkpoints"},
		{"dest-repo", "mush42/piper-rt"},
		{"paths-working-dir", "workspace"},
		{"export-python-bin", "python3"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Repo != defaults.Source.Repo {
		t.Errorf("Source.Repo = %q; want %q", cfg.Source.Repo, defaults.Source.Repo)
	}

	if cfg.Dest.Repo != defaults.Dest.Repo {
		t.Errorf("Dest.Repo = %q; want %q", cfg.Dest.Repo, defaults.Dest.Repo)
	}

	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, defaults.LogLevel)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--source-repo=someone/other-checkpoints",
		"--paths-working-dir=/tmp/scratch",
		"--log-level=debug",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Repo != "someone/other-checkpoints" {
		t.Errorf("Source.Repo = %q; want %q", cfg.Source.Repo, "someone/other-checkpoints")
	}

	if cfg.Paths.WorkingDir != "/tmp/scratch" {
		t.Errorf("Paths.WorkingDir = %q; want %q", cfg.Paths.WorkingDir, "/tmp/scratch")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PIPER_RT_LOG_LEVEL", "warn")
	t.Setenv("PIPER_RT_DEST_REPO", "someone/elsewhere")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Dest.Repo != "someone/elsewhere" {
		t.Errorf("Dest.Repo = %q; want %q", cfg.Dest.Repo, "someone/elsewhere")
	}
}

func TestLoad_HFTokenEnv(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf_from_env")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.Token != "hf_from_env" {
		t.Errorf("Hub.Token = %q; want %q", cfg.Hub.Token, "hf_from_env")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "piper-rt-maker.yaml")
	content := "source:\n  repo: someone/from-file\npaths:\n  working_dir: scratch\nlog_level: error\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(LoadOptions{
		ConfigFile: path,
		Defaults:   DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Repo != "someone/from-file" {
		t.Errorf("Source.Repo = %q; want %q", cfg.Source.Repo, "someone/from-file")
	}

	if cfg.Paths.WorkingDir != "scratch" {
		t.Errorf("Paths.WorkingDir = %q; want %q", cfg.Paths.WorkingDir, "scratch")
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	// Untouched keys keep their defaults.
	if cfg.Dest.Repo != "mush42/piper-rt" {
		t.Errorf("Dest.Repo = %q; want default", cfg.Dest.Repo)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "missing.yaml"),
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
