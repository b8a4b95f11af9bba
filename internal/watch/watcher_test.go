// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs a watcher over dir and returns a channel of callback
// invocations.
func startWatcher(t *testing.T, cfg Config) (<-chan []string, *Watcher) {
	t.Helper()
	calls := make(chan []string, 8)
	cfg.OnChange = func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	w, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
	// let the event loop start before files are touched
	time.Sleep(50 * time.Millisecond)
	return calls, w
}

func TestWatcherCoalescesUnitChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	calls, _ := startWatcher(t, Config{Root: dir})

	for _, name := range []string{"a.sh", "pkg/b.sh", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte("x=1\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case changed := <-calls:
		assert.Equal(t, []string{"a.sh", "pkg/b.sh"}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("OnChange was not called")
	}

	select {
	case extra := <-calls:
		t.Fatalf("unexpected second callback: %v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresNonUnits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	calls, _ := startWatcher(t, Config{Root: dir, Ignore: []string{"skip/**"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".app.zip.tmp-123"), nil, 0o644))

	select {
	case changed := <-calls:
		t.Fatalf("unexpected callback: %v", changed)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherCustomPattern(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	calls, _ := startWatcher(t, Config{Root: dir, Patterns: []string{"tool.sh"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.sh"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.sh"), nil, 0o644))

	select {
	case changed := <-calls:
		assert.Equal(t, []string{"tool.sh"}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("OnChange was not called")
	}
}

func TestWatcherRunOnce(t *testing.T) {
	t.Parallel()
	_, w := startWatcher(t, Config{Root: t.TempDir()})
	require.ErrorIs(t, w.Run(context.Background()), ErrAlreadyRunning)
}

func TestNewRejectsBadPattern(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Root: t.TempDir(), Patterns: []string{"[unterminated"}})
	require.Error(t, err)
}

func TestWatcherSkipsBusyRebuild(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var (
		mu     sync.Mutex
		active int
		peak   int
		runs   int
	)
	w, err := New(Config{
		Root:     dir,
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context, []string) error {
			mu.Lock()
			active++
			runs++
			peak = max(peak, active)
			mu.Unlock()
			time.Sleep(150 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	for i := range 3 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "u.sh"), []byte{byte('0' + i)}, 0o644))
		time.Sleep(80 * time.Millisecond)
	}
	time.Sleep(600 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak, "rebuilds never overlap")
	assert.GreaterOrEqual(t, runs, 1)
}
