// SPDX-License-Identifier: MPL-2.0

// Package config handles zimp configuration using Viper with CUE as the file
// format.
//
// The file is looked up as the --config flag, then
// $XDG_CONFIG_HOME/zimp/config.cue, then ./zimp.cue; without any of them the
// defaults apply. Files are validated against an embedded CUE schema
// (config_schema.cue), values can be overridden with ZIMP_* environment
// variables, and the decoded struct is validated once more with struct tags.
package config
