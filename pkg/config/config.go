// Package config loads settings from angle-builder.toml and ANGLE_BUILDER_* environment variables.
package config

import (
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/kivy/angle-builder/pkg/archive"
)

// DefaultFile is read from the working directory if it exists
const DefaultFile = "angle-builder.toml"

// Config describes all configuration options
type Config struct {
	OutputFolder  string   `default:"angle-artifacts" env:"OUTPUT_FOLDER" toml:"output_folder" usage:"Folder that receives the artifact archives"`
	StorageFolder string   `env:"STORAGE_FOLDER" toml:"storage_folder" usage:"Parent of the .angle-builder folder (defaults to the home directory)"`
	Branch        string   `default:"chromium/6261" env:"BRANCH" toml:"branch" usage:"ANGLE branch to build"`
	Revision      string   `env:"REVISION" toml:"revision" usage:"ANGLE revision to check out after cloning"`
	Format        string   `default:"tar.gz" env:"FORMAT" toml:"format" usage:"Archive format (tar.gz, tar.xz or tar.br)"`
	GNArgs        []string `env:"GN_ARGS" toml:"gn_args" usage:"Additional GN arguments"`
	LogLevel      string   `default:"info" env:"LOG_LEVEL" toml:"log_level"`
	LogJSON       bool     `default:"false" env:"LOG_JSON" toml:"log_json" usage:"Output JSONND instead of pretty console messages"`
	Debug         bool     `default:"false" env:"DEBUG" toml:"debug" usage:"Include stack traces in error messages"`
	GitHubToken   string   `env:"GITHUB_TOKEN" toml:"github_token" usage:"Token used to publish releases"`
	GitHubRepo    string   `env:"GITHUB_REPO" toml:"github_repo" usage:"owner/name of the release repository"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// Without files, DefaultFile is used.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{DefaultFile}
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ANGLE_BUILDER",
		// flags belong to cobra
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load is a shorthand for Loader + Load + Validate
func Load(files ...string) (*Config, error) {
	cfg, loader := Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return eris.Errorf(`Invalid value for log_level: %s`, cfg.LogLevel)
	}

	if _, err := archive.ParseFormat(cfg.Format); err != nil {
		return eris.Wrap(err, `Invalid value for format`)
	}

	if cfg.Branch == "" {
		return eris.New(`Invalid value for branch: must not be empty`)
	}

	return nil
}

// ArchiveFormat returns the parsed Format field
func (cfg *Config) ArchiveFormat() archive.Format {
	f, err := archive.ParseFormat(cfg.Format)
	if err != nil {
		return archive.TarGz
	}
	return f
}

// Level converts the LogLevel field to a zerolog.Level. Each step of verbosity (-v) lowers it by one.
func (cfg *Config) Level(verbosity int) zerolog.Level {
	level := logLevels[cfg.LogLevel]
	for ; verbosity > 0 && level > zerolog.TraceLevel; verbosity-- {
		level--
	}
	return level
}
