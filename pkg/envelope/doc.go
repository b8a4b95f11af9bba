// SPDX-License-Identifier: MPL-2.0

// Package envelope wraps archive payloads in an authenticated encryption
// envelope.
//
// A sealed payload is laid out as nonce (16 bytes) ++ tag (16 bytes) ++
// ciphertext. When no key is configured the payload passes through
// unchanged in both directions; the caller declares whether a key applies,
// the content is never sniffed.
package envelope
