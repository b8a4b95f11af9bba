// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"testing"

	"github.com/adrg/xdg"
)

// SetConfigHome points XDG_CONFIG_HOME at dir and reloads the xdg base
// directories, so code resolving xdg.ConfigHome sees dir. The returned
// cleanup restores the previous environment and reloads again.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Cleanup(testutil.SetConfigHome(t, t.TempDir()))
//	    // Test code that discovers config under xdg.ConfigHome...
//	}
func SetConfigHome(t testing.TB, dir string) func() {
	t.Helper()

	restore := MustSetenv(t, "XDG_CONFIG_HOME", dir)
	xdg.Reload()
	return func() {
		restore()
		xdg.Reload()
	}
}
