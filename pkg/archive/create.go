// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zimp-dev/zimp/pkg/entry"
	"github.com/zimp-dev/zimp/pkg/envelope"
	"github.com/zimp-dev/zimp/pkg/unit"

	"github.com/klauspost/compress/flate"
)

// Suffix is the file suffix of archives written next to their root.
const Suffix = ".zip"

// ErrInvalidRoot is returned when the archive root is missing or unusable.
var ErrInvalidRoot = errors.New("invalid archive root")

// Options configure Create.
type Options struct {
	// Root is the unit tree to archive: a directory, or a single unit file.
	Root string
	// Output is the archive path. Defaults to <Root>.zip beside Root.
	Output string
	// Key enables encryption of every entry. Empty means plaintext entries.
	Key []byte
	// Kind selects the unit representation stored in the archive.
	Kind unit.Kind
	// Optimize is the host optimization level (-1 for the default).
	Optimize int
	// CompressionLevel is the Deflate level, from flate.HuffmanOnly (-2) to
	// flate.BestCompression (9). Zero stores entries uncompressed.
	CompressionLevel int
}

// DefaultCompressionLevel is the Deflate level used by CreateSource and
// CreateCompiled.
const DefaultCompressionLevel = flate.DefaultCompression

// DefaultOutput returns the archive path Create uses when Options.Output is
// empty.
func DefaultOutput(root string) string {
	root = filepath.Clean(root)
	name := strings.TrimSuffix(filepath.Base(root), entry.SourceSuffix)
	return filepath.Join(filepath.Dir(root), name+Suffix)
}

// CreateSource archives root with source units, writing <root>.zip beside it.
func CreateSource(ctx context.Context, root string, key []byte, optimize int) (string, error) {
	return Create(ctx, Options{Root: root, Key: key, Kind: unit.Source, Optimize: optimize, CompressionLevel: DefaultCompressionLevel})
}

// CreateCompiled archives root with compiled units, writing <root>.zip beside it.
func CreateCompiled(ctx context.Context, root string, key []byte, optimize int) (string, error) {
	return Create(ctx, Options{Root: root, Key: key, Kind: unit.Compiled, Optimize: optimize, CompressionLevel: DefaultCompressionLevel})
}

// Create walks opts.Root and writes every unit, converted by the kind's
// strategy and enveloped with opts.Key, into a new archive. The archive is
// assembled in a temporary file in the output directory and renamed into
// place on success, so a failed run never replaces an existing archive.
// The first unit that fails aborts the whole run.
func Create(ctx context.Context, opts Options) (archivePath string, err error) {
	if opts.Root == "" {
		return "", fmt.Errorf("%w: root cannot be empty", ErrInvalidRoot)
	}
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() && !strings.HasSuffix(absRoot, entry.SourceSuffix) {
		return "", fmt.Errorf("%w: %s is neither a directory nor a %s unit", ErrInvalidRoot, absRoot, entry.SourceSuffix)
	}

	strategy, err := unit.New(opts.Kind, unit.Options{Optimize: opts.Optimize})
	if err != nil {
		return "", err
	}

	output := opts.Output
	if output == "" {
		output = DefaultOutput(absRoot)
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absOutput), "."+filepath.Base(absOutput)+".tmp-*")
	if err != nil {
		return "", &IOError{Op: "create", Path: absOutput, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath) // Best-effort cleanup; the original error wins
		}
	}()

	zw := zip.NewWriter(tmp)
	level := opts.CompressionLevel
	if _, flateErr := flate.NewWriter(io.Discard, level); flateErr != nil {
		return "", fmt.Errorf("invalid compression level %d: %w", level, flateErr)
	}
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	w := &writer{zw: zw, strategy: strategy, key: opts.Key, parent: filepath.Dir(absRoot)}
	if walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), entry.SourceSuffix) {
			return nil
		}
		return w.add(path, d)
	}); walkErr != nil {
		return "", fmt.Errorf("failed to archive %s: %w", absRoot, walkErr)
	}

	manifest := Manifest{
		Version:   ManifestVersion,
		Name:      strings.TrimSuffix(filepath.Base(absOutput), Suffix),
		Mode:      opts.Kind.String(),
		Encrypted: len(opts.Key) > 0,
		Optimize:  opts.Optimize,
		Units:     w.units,
		Created:   time.Now().UTC().Truncate(time.Second),
	}
	comment, err := manifest.encode()
	if err != nil {
		return "", err
	}
	if err = zw.SetComment(comment); err != nil {
		return "", &IOError{Op: "write", Path: absOutput, Err: err}
	}
	if err = zw.Close(); err != nil {
		return "", &IOError{Op: "write", Path: absOutput, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return "", &IOError{Op: "write", Path: absOutput, Err: err}
	}
	if err = os.Rename(tmpPath, absOutput); err != nil {
		return "", &IOError{Op: "rename", Path: absOutput, Err: err}
	}

	slog.Debug("created archive", "path", absOutput, "mode", opts.Kind, "units", w.units, "encrypted", manifest.Encrypted)
	return absOutput, nil
}

// writer adds units to an open ZIP writer.
type writer struct {
	zw       *zip.Writer
	strategy unit.Strategy
	key      []byte
	parent   string
	units    int
}

func (w *writer) add(path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(w.parent, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}
	rel = filepath.ToSlash(rel)

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read unit %s: %w", path, err)
	}
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	name, payload, err := w.strategy.CreateEntry(rel, src, info.ModTime())
	if err != nil {
		return err
	}
	sealed, err := envelope.Seal(payload, w.key)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}
	header.SetMode(0o644)
	out, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create ZIP entry %s: %w", name, err)
	}
	if _, err := out.Write(sealed); err != nil {
		return fmt.Errorf("failed to write ZIP entry %s: %w", name, err)
	}
	w.units++
	return nil
}
