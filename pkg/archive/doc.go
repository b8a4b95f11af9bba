// SPDX-License-Identifier: MPL-2.0

// Package archive builds and reads zimp archives: ZIP containers whose
// entries are enveloped units laid out under the archive's own name.
//
// An archive built from a root directory "app" contains entries such as
//
//	app/__init__.sh
//	app/util.sh
//	app/net/__init__.shc
//
// and is written next to the root as "app.zip". A TOML manifest describing
// how the archive was built is stored as the ZIP comment.
package archive
