// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rescue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/recordings"
)

// Source is what to copy: one file, or segments concatenated in order.
type Source struct {
	Layout   recordings.Layout
	Path     string
	Segments []string
}

// Files returns the input files in copy order.
func (s Source) Files() []string {
	if s.Layout == recordings.LayoutSegments {
		return s.Segments
	}
	return []string{s.Path}
}

// Copier writes a source to a destination path.
type Copier interface {
	Copy(ctx context.Context, src Source, dst string) (int64, error)
}

const defaultBufferSize = 1 << 20

// FileCopier copies through a renameio pending file in the destination
// directory. The destination only appears after a complete, fsynced copy;
// on any error the temp file is removed.
type FileCopier struct {
	BufferSize int
	Perm       os.FileMode
}

// Copy implements Copier.
func (c FileCopier) Copy(ctx context.Context, src Source, dst string) (int64, error) {
	logger := xglog.FromContext(ctx)

	files := src.Files()
	if len(files) == 0 {
		return 0, errors.New("nothing to copy")
	}

	perm := c.Perm
	if perm == 0 {
		perm = 0o644
	}
	pendingFile, err := renameio.NewPendingFile(dst, renameio.WithPermissions(perm))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, dst).Msg("cleanup pending file")
		}
	}()

	size := c.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	buf := make([]byte, size)

	var total int64
	for _, name := range files {
		n, err := copyFile(ctx, pendingFile, name, buf)
		total += n
		if err != nil {
			return total, err
		}
	}

	if err := ctx.Err(); err != nil {
		return total, err
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return total, fmt.Errorf("atomically replace %s: %w", dst, err)
	}
	return total, nil
}

func copyFile(ctx context.Context, w io.Writer, name string, buf []byte) (int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	n, err := io.CopyBuffer(w, ctxReader{ctx: ctx, r: f}, buf)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", name, err)
	}
	return n, nil
}

// ctxReader fails reads once ctx is done, so a copy stops within one chunk.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
