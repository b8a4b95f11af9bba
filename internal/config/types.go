// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// ModeSource archives and loads units as source text.
	ModeSource = "source"
	// ModeCompiled archives and loads units in the host's compiled form.
	ModeCompiled = "compiled"

	// ProbeHeaderOffset asks the loader to probe the header offset at startup.
	ProbeHeaderOffset = -1
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the zimp configuration.
	Config struct {
		// ArchiveDir is where archives without an explicit path are found.
		ArchiveDir string `mapstructure:"archive_dir" validate:"required"`
		// Mode is the unit representation: "source" or "compiled".
		Mode string `mapstructure:"mode" validate:"oneof=source compiled"`
		// HeaderOffset is the compiled unit header length, or ProbeHeaderOffset.
		HeaderOffset int `mapstructure:"header_offset" validate:"min=-1"`
		// Archives configures individual archives by name.
		Archives map[string]ArchiveConfig `mapstructure:"archives" validate:"dive,keys,required,excludesall=./,endkeys"`
		// Build holds archive creation settings.
		Build BuildConfig `mapstructure:"build"`
		// Log holds logging settings.
		Log LogConfig `mapstructure:"log"`

		// Source is the file the configuration was loaded from, empty for
		// pure defaults.
		Source string `mapstructure:"-"`
	}

	// ArchiveConfig locates one archive and its key.
	ArchiveConfig struct {
		// Path is the archive file; relative to ArchiveDir when not absolute.
		Path string `mapstructure:"path"`
		// KeyFile holds the key material. Empty means the archive is not encrypted.
		KeyFile string `mapstructure:"key_file"`
	}

	// BuildConfig holds archive creation settings.
	BuildConfig struct {
		Optimize         int `mapstructure:"optimize" validate:"min=-1,max=2"`
		CompressionLevel int `mapstructure:"compression_level" validate:"min=-2,max=9"`
	}

	// LogConfig holds logging settings.
	LogConfig struct {
		Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	}

	// InvalidConfigError lists the fields that failed validation.
	InvalidConfigError struct {
		Fields []string
	}
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		ArchiveDir:   ".",
		Mode:         ModeSource,
		HeaderOffset: ProbeHeaderOffset,
		Archives:     map[string]ArchiveConfig{},
		Build: BuildConfig{
			Optimize:         -1,
			CompressionLevel: -1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Fields, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the constraints the struct tags declare.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return &InvalidConfigError{Fields: fields}
}
