// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for the user. The issue catalog holds Markdown guidance for the
// failure kinds the CLI knows about, rendered with glamour.
package issue
