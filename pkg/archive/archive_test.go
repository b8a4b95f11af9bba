// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zimp-dev/zimp/internal/testutil"
	"github.com/zimp-dev/zimp/pkg/envelope"
	"github.com/zimp-dev/zimp/pkg/hostrt"
	"github.com/zimp-dev/zimp/pkg/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packageTree(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, filepath.Join(t.TempDir(), "p"), map[string]string{
		"__init__.sh": "",
		"q.sh":        "y=2\n",
		"README.md":   "not a unit",
	})
}

func TestCreateSourceLayout(t *testing.T) {
	root := packageTree(t)
	key := testutil.Key(1)

	path, err := CreateSource(context.Background(), root, key, hostrt.OptimizeDefault)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(root), "p.zip"), path)

	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, r))

	assert.Equal(t, "p", r.Name())
	assert.True(t, r.Names().Contains("p/__init__.sh"))
	assert.True(t, r.Names().Contains("p/q.sh"))
	assert.False(t, r.Names().Contains("p/README.md"))
	require.Len(t, r.List(), 2)

	sealed, err := r.Read("p/q.sh")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("y=2\n"), sealed)
	plain, err := envelope.Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "y=2\n", string(plain))

	m, err := r.Manifest()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, ManifestVersion, m.Version)
	assert.Equal(t, "source", m.Mode)
	assert.True(t, m.Encrypted)
	assert.Equal(t, 2, m.Units)
}

func TestCreateCompiledLayout(t *testing.T) {
	root := packageTree(t)

	path, err := CreateCompiled(context.Background(), root, nil, 1)
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, r))

	assert.True(t, r.Names().Contains("p/__init__.shc"))
	assert.True(t, r.Names().Contains("p/q.shc"))
	assert.False(t, r.Names().Contains("p/q.sh"))

	raw, err := r.Read("p/q.shc")
	require.NoError(t, err)
	_, err = hostrt.DecodeUnit(raw)
	require.NoError(t, err, "unencrypted entries hold the host's compiled form")

	m, err := r.Manifest()
	require.NoError(t, err)
	assert.Equal(t, "compiled", m.Mode)
	assert.False(t, m.Encrypted)
	assert.Equal(t, 1, m.Optimize)
}

func TestCreateSingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"m.sh": "x=1\n"})

	path, err := CreateSource(context.Background(), filepath.Join(dir, "m.sh"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "m.zip"), path)

	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, r))
	assert.True(t, r.Names().Contains("m.sh"))
}

func TestCreateFailureKeepsPreviousArchive(t *testing.T) {
	root := packageTree(t)
	path, err := CreateSource(context.Background(), root, nil, 0)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	testutil.WriteTree(t, root, map[string]string{"broken.sh": "if then fi ((("})
	_, err = CreateCompiled(context.Background(), root, nil, 0)
	require.ErrorIs(t, err, hostrt.ErrCompile)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".p.zip.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCreateOptionsValidation(t *testing.T) {
	root := packageTree(t)
	ctx := context.Background()

	_, err := Create(ctx, Options{})
	require.ErrorIs(t, err, ErrInvalidRoot)

	_, err = Create(ctx, Options{Root: filepath.Join(root, "missing"), Kind: unit.Source})
	require.ErrorIs(t, err, ErrInvalidRoot)

	_, err = Create(ctx, Options{Root: filepath.Join(root, "README.md"), Kind: unit.Source})
	require.ErrorIs(t, err, ErrInvalidRoot)

	_, err = Create(ctx, Options{Root: root, Kind: unit.Source, CompressionLevel: 42})
	require.Error(t, err)

	_, err = Create(ctx, Options{Root: root, Kind: unit.Source, Optimize: 5})
	require.Error(t, err)
}

func TestCreateCustomOutputAndLevel(t *testing.T) {
	root := packageTree(t)
	out := filepath.Join(t.TempDir(), "custom.zip")

	path, err := Create(context.Background(), Options{
		Root:             root,
		Output:           out,
		Kind:             unit.Source,
		CompressionLevel: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, out, path)

	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, r))
	assert.True(t, r.Names().Contains("p/q.sh"), "entry paths follow the root, not the output name")
}

func TestCreateHonoursCancellation(t *testing.T) {
	root := packageTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateSource(ctx, root, nil, 0)
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(DefaultOutput(root))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "nope.zip"))
	require.ErrorIs(t, err, ErrArchiveIO)

	bad := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not a zip"), 0o644))
	_, err = Open(bad)
	require.ErrorIs(t, err, ErrArchiveIO)
}

func TestReaderReadErrors(t *testing.T) {
	path, err := CreateSource(context.Background(), packageTree(t), nil, 0)
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)

	_, err = r.Read("p/absent.sh")
	require.ErrorIs(t, err, ErrArchiveIO)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Read("p/q.sh")
	require.ErrorIs(t, err, ErrArchiveIO)
}

func TestReaderConcurrentReads(t *testing.T) {
	path, err := CreateSource(context.Background(), packageTree(t), nil, 0)
	require.NoError(t, err)
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, r))

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			data, readErr := r.Read("p/q.sh")
			assert.NoError(t, readErr)
			assert.Equal(t, "y=2\n", string(data))
		})
	}
	wg.Wait()
}

func TestParseManifestEmpty(t *testing.T) {
	m, err := ParseManifest("")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = ParseManifest("version = = 1")
	require.Error(t, err)
}
