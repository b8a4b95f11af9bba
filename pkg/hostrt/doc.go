// SPDX-License-Identifier: MPL-2.0

// Package hostrt is the host runtime that archived units execute in.
//
// Units are shell scripts interpreted in-process by mvdan/sh. The runtime
// provides the pieces an archive loader plugs into:
//   - a compiler that turns source text into a Program, optionally
//     simplified, and a serialized form of that Program prefixed with a
//     host header (CompileUnit / Decode)
//   - Exec, which runs a Program with a Module's namespace as its context
//   - Cache, the process-wide table of loaded modules
//   - Importer, the ordered chain of Finders consulted to resolve a module
//     name, ending with the filesystem based PathFinder
package hostrt
