// Package config loads pipeline configuration from defaults, an optional
// config file, environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Source   SourceConfig `mapstructure:"source"`
	Dest     DestConfig   `mapstructure:"dest"`
	Paths    PathsConfig  `mapstructure:"paths"`
	Export   ExportConfig `mapstructure:"export"`
	Hub      HubConfig    `mapstructure:"hub"`
	LogLevel string       `mapstructure:"log_level"`
}

type SourceConfig struct {
	Repo       string `mapstructure:"repo"`
	CatalogURL string `mapstructure:"catalog_url"`
}

type DestConfig struct {
	Repo string `mapstructure:"repo"`
}

type PathsConfig struct {
	WorkingDir string `mapstructure:"working_dir"`
	PiperDir   string `mapstructure:"piper_dir"`
}

type ExportConfig struct {
	PythonBin     string `mapstructure:"python_bin"`
	PiperRepoURL  string `mapstructure:"piper_repo_url"`
	PiperBranch   string `mapstructure:"piper_branch"`
	SkipBootstrap bool   `mapstructure:"skip_bootstrap"`
}

type HubConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Repo:       "rhasspy/piper-checkpoints",
			CatalogURL: "https://huggingface.co/rhasspy/piper-voices/resolve/main/voices.json",
		},
		Dest: DestConfig{
			Repo: "mush42/piper-rt",
		},
		Paths: PathsConfig{
			WorkingDir: "workspace",
			PiperDir:   "piper",
		},
		Export: ExportConfig{
			PythonBin:     "python3",
			PiperRepoURL:  "https://github.com/mush42/piper",
			PiperBranch:   "streaming",
			SkipBootstrap: false,
		},
		Hub: HubConfig{
			BaseURL: "https://huggingface.co",
			Token:   "",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("source-repo", defaults.Source.Repo, "Upstream checkpoint dataset repo")
	fs.String("source-catalog-url", defaults.Source.CatalogURL, "URL of the public voices catalog")
	fs.String("dest-repo", defaults.Dest.Repo, "Destination dataset repo for streaming voices")
	fs.String("paths-working-dir", defaults.Paths.WorkingDir, "Scratch directory for downloads, exports and archives")
	fs.String("paths-piper-dir", defaults.Paths.PiperDir, "Directory holding the piper checkout")
	fs.String("export-python-bin", defaults.Export.PythonBin, "Python interpreter for the export tool")
	fs.String("export-piper-repo-url", defaults.Export.PiperRepoURL, "Git URL of the piper repo to bootstrap")
	fs.String("export-piper-branch", defaults.Export.PiperBranch, "Branch of the piper repo to check out")
	fs.Bool("export-skip-bootstrap", defaults.Export.SkipBootstrap, "Skip toolchain bootstrap entirely")
	fs.String("hub-base-url", defaults.Hub.BaseURL, "Hugging Face Hub base URL")
	fs.String("hub-token", defaults.Hub.Token, "Hugging Face access token")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("PIPER_RT")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("hub.token", "PIPER_RT_HUB_TOKEN", "HF_TOKEN"); err != nil {
		return Config{}, fmt.Errorf("bind token env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("piper-rt-maker")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("source.repo", c.Source.Repo)
	v.SetDefault("source.catalog_url", c.Source.CatalogURL)
	v.SetDefault("dest.repo", c.Dest.Repo)
	v.SetDefault("paths.working_dir", c.Paths.WorkingDir)
	v.SetDefault("paths.piper_dir", c.Paths.PiperDir)
	v.SetDefault("export.python_bin", c.Export.PythonBin)
	v.SetDefault("export.piper_repo_url", c.Export.PiperRepoURL)
	v.SetDefault("export.piper_branch", c.Export.PiperBranch)
	v.SetDefault("export.skip_bootstrap", c.Export.SkipBootstrap)
	v.SetDefault("hub.base_url", c.Hub.BaseURL)
	v.SetDefault("hub.token", c.Hub.Token)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("source.repo", "source-repo")
	v.RegisterAlias("source.catalog_url", "source-catalog-url")
	v.RegisterAlias("dest.repo", "dest-repo")
	v.RegisterAlias("paths.working_dir", "paths-working-dir")
	v.RegisterAlias("paths.piper_dir", "paths-piper-dir")
	v.RegisterAlias("export.python_bin", "export-python-bin")
	v.RegisterAlias("export.piper_repo_url", "export-piper-repo-url")
	v.RegisterAlias("export.piper_branch", "export-piper-branch")
	v.RegisterAlias("export.skip_bootstrap", "export-skip-bootstrap")
	v.RegisterAlias("hub.base_url", "hub-base-url")
	v.RegisterAlias("hub.token", "hub-token")
	v.RegisterAlias("log_level", "log-level")
}
