package trash

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

func copyPath(source, target string) error {
	info, err := os.Lstat(source)
	if err != nil {
		return err
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return copySymlink(source, target)
	case info.IsDir():
		return copyDirectory(source, target, info.Mode())
	default:
		return copyFile(source, target, info)
	}
}

func copyDirectory(source, target string, mode os.FileMode) error {
	if err := os.MkdirAll(target, mode.Perm()); err != nil {
		return err
	}
	return filepath.WalkDir(source, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		outPath := filepath.Join(target, rel)
		info, err := entry.Info()
		if err != nil {
			return err
		}
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, outPath)
		case entry.IsDir():
			return os.MkdirAll(outPath, info.Mode().Perm())
		default:
			return copyFile(path, outPath, info)
		}
	})
}

func copyFile(source, target string, info os.FileInfo) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, input); err != nil {
		_ = output.Close()
		return err
	}
	if err := output.Close(); err != nil {
		return err
	}
	_ = os.Chtimes(target, time.Now(), info.ModTime())
	return nil
}

func copySymlink(source, target string) error {
	link, err := os.Readlink(source)
	if err != nil {
		return err
	}
	return os.Symlink(link, target)
}
