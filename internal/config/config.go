// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zimp-dev/zimp/internal/cueutil"
	"github.com/zimp-dev/zimp/internal/issue"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "zimp"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is the project-local config file name.
	LocalConfigFile = "zimp.cue"
	// EnvPrefix prefixes environment overrides, e.g. ZIMP_MODE.
	EnvPrefix = "ZIMP"
)

// ErrEmptyKey is returned by ReadKey for key files without content.
var ErrEmptyKey = errors.New("key file is empty")

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the zimp configuration directory under the XDG config
// home.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("archive_dir", defaults.ArchiveDir)
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("header_offset", defaults.HeaderOffset)
	v.SetDefault("build.optimize", defaults.Build.Optimize)
	v.SetDefault("build.compression_level", defaults.Build.CompressionLevel)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'zimp config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			dir = ConfigDir()
		}
		for _, candidate := range []string{
			filepath.Join(dir, ConfigFileName+"."+ConfigFileExt),
			LocalConfigFile,
		} {
			if fileExists(candidate) {
				resolvedPath = candidate
				break
			}
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Archives == nil {
		cfg.Archives = map[string]ArchiveConfig{}
	}
	cfg.Source = resolvedPath

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Archive names must not contain '.' or '/'").
			Wrap(err).
			BuildError()
	}
	return cfg, nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges its
// contents into Viper, keeping defaults and env overrides in effect.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	configMap, err := cueutil.ValidateToMap(configSchema, "#Config", data, path)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ArchivePath returns where the archive called name is found: its configured
// path (relative to ArchiveDir unless absolute) or <ArchiveDir>/<name>.zip.
func (c *Config) ArchivePath(name string) string {
	p := c.Archives[name].Path
	switch {
	case p == "":
		return filepath.Join(c.ArchiveDir, name+".zip")
	case filepath.IsAbs(p):
		return p
	default:
		return filepath.Join(c.ArchiveDir, p)
	}
}

// ReadKey reads key material from path. An empty path means no key and
// yields nil. Trailing line breaks are dropped so hand-edited key files
// behave like generated ones.
func ReadKey(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	data = bytes.TrimRight(data, "\r\n")
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyKey, path)
	}
	return data, nil
}

// Save writes cfg to the user config file, creating its directory.
func Save(cfg *Config) (string, error) {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// zimp configuration file\n\n")
	fmt.Fprintf(&sb, "archive_dir: %q\n", cfg.ArchiveDir)
	fmt.Fprintf(&sb, "mode: %q\n", cfg.Mode)
	fmt.Fprintf(&sb, "header_offset: %d\n", cfg.HeaderOffset)

	if len(cfg.Archives) > 0 {
		sb.WriteString("\narchives: {\n")
		names := make([]string, 0, len(cfg.Archives))
		for name := range cfg.Archives {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			a := cfg.Archives[name]
			fmt.Fprintf(&sb, "\t%q: {", name)
			var fields []string
			if a.Path != "" {
				fields = append(fields, fmt.Sprintf("path: %q", a.Path))
			}
			if a.KeyFile != "" {
				fields = append(fields, fmt.Sprintf("key_file: %q", a.KeyFile))
			}
			sb.WriteString(strings.Join(fields, ", "))
			sb.WriteString("}\n")
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nbuild: {\n")
	fmt.Fprintf(&sb, "\toptimize: %d\n", cfg.Build.Optimize)
	fmt.Fprintf(&sb, "\tcompression_level: %d\n", cfg.Build.CompressionLevel)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}
