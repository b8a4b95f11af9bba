// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConfigHome(t *testing.T) {
	before := xdg.ConfigHome
	dir := t.TempDir()

	cleanup := SetConfigHome(t, dir)
	assert.Equal(t, dir, xdg.ConfigHome)
	cleanup()

	assert.Equal(t, before, xdg.ConfigHome)
}

func TestWriteTree(t *testing.T) {
	root := WriteTree(t, filepath.Join(t.TempDir(), "p"), map[string]string{
		"__init__.sh": "",
		"sub/q.sh":    "y=2\n",
	})

	data, err := os.ReadFile(filepath.Join(root, "sub", "q.sh"))
	require.NoError(t, err)
	assert.Equal(t, "y=2\n", string(data))

	info, err := os.Stat(filepath.Join(root, "__init__.sh"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestMustSetenvRestores(t *testing.T) {
	const key = "ZIMP_TESTUTIL_PROBE"
	require.NoError(t, os.Unsetenv(key))

	cleanup := MustSetenv(t, key, "1")
	assert.Equal(t, "1", os.Getenv(key))
	cleanup()

	_, ok := os.LookupEnv(key)
	assert.False(t, ok)
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, Key(7), Key(7))
	assert.NotEqual(t, Key(7), Key(8))
	assert.Len(t, Key(1), 32)
}
