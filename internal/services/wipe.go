package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

const wipeBufferSize = 1 << 20

// wipePath overwrites every regular file under path once with random data,
// syncs it and removes it. Directories are removed bottom-up and symlinks
// are removed without being followed.
func wipePath(ctx context.Context, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return wipeEntry(path, info)
	}

	var dirs []string
	var errs []error
	walkErr := filepath.WalkDir(path, func(child string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			errs = append(errs, err)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			dirs = append(dirs, child)
			return nil
		}
		childInfo, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if err := wipeEntry(child, childInfo); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	slices.Reverse(dirs)
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func wipeEntry(path string, info fs.FileInfo) error {
	if info.Mode().IsRegular() && info.Size() > 0 {
		if err := overwrite(path, info.Size()); err != nil {
			return fmt.Errorf("overwrite %s: %w", path, err)
		}
	}
	return os.Remove(path)
}

func overwrite(path string, size int64) error {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	buffer := make([]byte, min(size, wipeBufferSize))
	for remaining := size; remaining > 0; {
		chunk := buffer[:min(remaining, int64(len(buffer)))]
		if _, err := rand.Read(chunk); err != nil {
			return err
		}
		written, err := file.Write(chunk)
		if err != nil {
			return err
		}
		if written < len(chunk) {
			return io.ErrShortWrite
		}
		remaining -= int64(written)
	}
	return file.Sync()
}
