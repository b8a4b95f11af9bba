// SPDX-License-Identifier: MPL-2.0

// Package loader plugs zimp archives into a hostrt.Importer.
//
// A Loader claims every module whose top-level name is a configured archive,
// and loads it on first import: it resolves the module to an entry, decrypts
// the entry in memory, rebuilds the program with the configured unit
// strategy and executes it in a fresh module namespace. Decrypted content is
// never written to disk.
package loader
