// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zimp-dev/zimp/internal/config"
	"github.com/zimp-dev/zimp/internal/issue"
	"github.com/zimp-dev/zimp/internal/testutil"
	"github.com/zimp-dev/zimp/pkg/archive"
	"github.com/zimp-dev/zimp/pkg/envelope"
	"github.com/zimp-dev/zimp/pkg/hostrt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticConfig serves a fixed configuration, DefaultConfig when cfg is nil.
type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.cfg == nil {
		return config.DefaultConfig(), nil
	}
	c := *s.cfg
	return &c, nil
}

type cliHarness struct {
	app    *App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, cfg *config.Config) *cliHarness {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := &cliHarness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		Stdin:  strings.NewReader(""),
		Stdout: h.stdout,
		Stderr: h.stderr,
	})
	return h
}

func (h *cliHarness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	// every invocation behaves like a fresh process with an empty module cache
	h.app.Importer = hostrt.NewImporter(nil, nil)
	root := newRootCommand(h.app)
	root.SetArgs(args)
	root.SetOut(h.stdout)
	root.SetErr(h.stderr)
	return root.ExecuteContext(t.Context())
}

func writeUnits(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"app/__init__.sh": "name=app\n",
		"app/util.sh":     "greet() { echo \"hi $1\"; }\nfail() { exit 4; }\nlevel=3\n",
		"app/notes.txt":   "not a unit\n",
	})
	return dir
}

func TestZipRunSource(t *testing.T) {
	t.Parallel()
	dir := writeUnits(t)
	h := newHarness(t, nil)
	keyFile := filepath.Join(dir, "app.key")

	require.NoError(t, h.run(t, "keygen", keyFile))
	require.NoError(t, h.run(t, "zip", "--key-file", keyFile, filepath.Join(dir, "app")))
	assert.Contains(t, h.stdout.String(), "app.zip")
	assert.Contains(t, h.stdout.String(), "2 units")
	assert.Contains(t, h.stdout.String(), "encrypted")
	require.FileExists(t, filepath.Join(dir, "app.zip"))

	require.NoError(t, h.run(t, "run", "--archive-dir", dir, "--key-file", keyFile, "app.util", "--call", "greet", "world"))
	assert.Equal(t, "hi world\n", h.stdout.String())

	require.NoError(t, h.run(t, "run", "--archive-dir", dir, "--key-file", keyFile, "app.util", "--vars"))
	assert.Contains(t, h.stdout.String(), "level=3")
}

func TestZipRunCompiledProbesOffset(t *testing.T) {
	t.Parallel()
	dir := writeUnits(t)
	h := newHarness(t, nil)

	require.NoError(t, h.run(t, "zip", "--compiled", filepath.Join(dir, "app")))
	require.NoError(t, h.run(t, "run", "--compiled", "--archive-dir", dir, "app.util", "--call", "greet", "bytes"))
	assert.Equal(t, "hi bytes\n", h.stdout.String())

	err := h.run(t, "run", "--compiled", "--header-offset", "3", "--archive-dir", dir, "app.util")
	require.ErrorIs(t, err, hostrt.ErrDecode)
	assert.Equal(t, issue.DecodeFailedId, classifyError(err))
}

func TestCompiledFlagOverridesConfiguredMode(t *testing.T) {
	t.Parallel()
	dir := writeUnits(t)
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeCompiled
	h := newHarness(t, cfg)

	require.NoError(t, h.run(t, "zip", "--compiled=false", filepath.Join(dir, "app")))
	r, err := archive.Open(filepath.Join(dir, "app.zip"))
	require.NoError(t, err)
	assert.True(t, r.Names().Contains("app/util.sh"))
	assert.False(t, r.Names().Contains("app/util.shc"))
	require.NoError(t, r.Close())

	require.NoError(t, h.run(t, "run", "--compiled=false", "--archive-dir", dir, "app.util", "--call", "greet", "source"))
	assert.Equal(t, "hi source\n", h.stdout.String())

	err = h.run(t, "run", "--archive-dir", dir, "app.util")
	require.Error(t, err, "the configured compiled mode applies without the flag")
}

func TestRunConfiguredArchive(t *testing.T) {
	t.Parallel()
	dir := writeUnits(t)
	keyFile := filepath.Join(dir, "app.key")
	cfg := config.DefaultConfig()
	cfg.ArchiveDir = dir
	cfg.Archives = map[string]config.ArchiveConfig{"app": {Path: "app.zip", KeyFile: keyFile}}
	h := newHarness(t, cfg)

	require.NoError(t, h.run(t, "keygen", keyFile))
	require.NoError(t, h.run(t, "zip", "-k", keyFile, filepath.Join(dir, "app")))
	require.NoError(t, h.run(t, "run", "app", "--vars"))
	assert.Contains(t, h.stdout.String(), "name=app")
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	dir := writeUnits(t)
	h := newHarness(t, nil)
	keyFile := filepath.Join(dir, "app.key")
	otherKey := filepath.Join(dir, "other.key")
	require.NoError(t, h.run(t, "keygen", keyFile))
	require.NoError(t, h.run(t, "keygen", otherKey))
	require.NoError(t, h.run(t, "zip", "--key-file", keyFile, filepath.Join(dir, "app")))

	t.Run("args need --call", func(t *testing.T) {
		err := h.run(t, "run", "--archive-dir", dir, "app", "extra")
		require.ErrorIs(t, err, errArgsWithoutCall)
	})

	t.Run("wrong key", func(t *testing.T) {
		err := h.run(t, "run", "--archive-dir", dir, "--key-file", otherKey, "app.util")
		require.ErrorIs(t, err, envelope.ErrAuthentication)
		assert.Equal(t, issue.AuthenticationFailedId, classifyError(err))
	})

	t.Run("missing module", func(t *testing.T) {
		err := h.run(t, "run", "--archive-dir", dir, "--key-file", keyFile, "app.nope")
		require.ErrorIs(t, err, hostrt.ErrModuleNotFound)
	})

	t.Run("unit exit status", func(t *testing.T) {
		err := h.run(t, "run", "--archive-dir", dir, "--key-file", keyFile, "app.util", "--call", "fail")
		require.Error(t, err)
		assert.Equal(t, 4, exitCode(err))
	})

	t.Run("missing key file", func(t *testing.T) {
		err := h.run(t, "run", "--archive-dir", dir, "--key-file", filepath.Join(dir, "absent.key"), "app")
		var actionable *issue.ActionableError
		require.ErrorAs(t, err, &actionable)
		assert.Equal(t, "read key", actionable.Operation)
	})
}

func TestZipInvalidUnitKeepsNoArchive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"bad/x.sh": "if then fi (\n"})
	h := newHarness(t, nil)

	err := h.run(t, "zip", filepath.Join(dir, "bad"))
	require.ErrorIs(t, err, hostrt.ErrCompile)
	assert.Equal(t, issue.CompileFailedId, classifyError(err))
	assert.NoFileExists(t, filepath.Join(dir, "bad.zip"))
}

func TestInspect(t *testing.T) {
	t.Parallel()
	dir := writeUnits(t)
	h := newHarness(t, nil)
	keyFile := filepath.Join(dir, "app.key")
	require.NoError(t, h.run(t, "keygen", keyFile))
	require.NoError(t, h.run(t, "zip", "-k", keyFile, filepath.Join(dir, "app")))

	require.NoError(t, h.run(t, "inspect", "-k", keyFile, filepath.Join(dir, "app.zip")))
	out := h.stdout.String()
	assert.Contains(t, out, "app/__init__.sh")
	assert.Contains(t, out, "app/util.sh")
	assert.Contains(t, out, "source")
	assert.Contains(t, out, "2 entries verified")

	other := filepath.Join(dir, "other.key")
	require.NoError(t, h.run(t, "keygen", other))
	err := h.run(t, "inspect", "-k", other, filepath.Join(dir, "app.zip"))
	require.ErrorIs(t, err, envelope.ErrAuthentication)
}

func TestKeygen(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	path := filepath.Join(t.TempDir(), "k")

	require.NoError(t, h.run(t, "keygen", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 2*keySize+1)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.ErrorIs(t, h.run(t, "keygen", path), errKeyFileExists)
	require.NoError(t, h.run(t, "keygen", "--force", path))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, data, again)

	key, err := config.ReadKey(path)
	require.NoError(t, err)
	assert.Len(t, key, 2*keySize)
}

func TestProbeCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "probe", "-q"))
	assert.Equal(t, "16\n", h.stdout.String())
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeCompiled
	cfg.Archives = map[string]config.ArchiveConfig{"tools": {Path: "t.zip", KeyFile: "t.key"}}
	h := newHarness(t, cfg)

	require.NoError(t, h.run(t, "config", "dump"))
	assert.Contains(t, h.stdout.String(), `mode: "compiled"`)
	assert.Contains(t, h.stdout.String(), `"tools": {path: "t.zip", key_file: "t.key"}`)

	require.NoError(t, h.run(t, "config", "show"))
	assert.Contains(t, h.stdout.String(), "(using defaults)")
	assert.Contains(t, h.stdout.String(), "tools")
	assert.Contains(t, h.stdout.String(), "(probe)")
}

func TestConfigLoadErrorSurfaces(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.app.Config = staticConfig{err: &config.InvalidConfigError{Fields: []string{"mode"}}}

	err := h.run(t, "config", "show")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Equal(t, issue.ConfigLoadFailedId, classifyError(err))
}
