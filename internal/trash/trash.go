// Package trash moves paths into an application trash directory and back.
//
// Layout follows the freedesktop trash: trashed entries live in files/ and a
// JSON record per entry lives in info/, so a trash directory can be audited
// or emptied without the store.
package trash

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"tonic/internal/domain"
)

var (
	ErrRestoreConflict = errors.New("restore target already exists")
	// ErrSourceRemains means the entry was copied into the trash but part of
	// the original could not be removed. The returned record still points at
	// the complete copy.
	ErrSourceRemains = errors.New("source only partly removed")
)

// Facility is the move-to-trash primitive used by cleanup execution.
type Facility interface {
	// Ready reports whether the facility can accept items at all.
	Ready() error
	Put(path string) (domain.TrashRecord, error)
	Restore(record domain.TrashRecord) error
}

type Dir struct {
	root      string
	now       func() time.Time
	rename    func(source, target string) error
	removeAll func(path string) error
}

func NewDir(root string) *Dir {
	return &Dir{root: root, now: time.Now, rename: os.Rename, removeAll: os.RemoveAll}
}

// DefaultRoot resolves the trash directory under the XDG data home.
func DefaultRoot() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "tonic", "trash")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "tonic", "trash")
	}
	return filepath.Join(os.TempDir(), "tonic-trash")
}

func (dir *Dir) Root() string {
	return dir.root
}

func (dir *Dir) Ready() error {
	for _, sub := range []string{dir.filesDir(), dir.infoDir()} {
		if err := os.MkdirAll(sub, 0o700); err != nil {
			return fmt.Errorf("prepare trash %s: %w", sub, err)
		}
	}
	return nil
}

func (dir *Dir) Put(path string) (domain.TrashRecord, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return domain.TrashRecord{}, err
	}
	if err := dir.Ready(); err != nil {
		return domain.TrashRecord{}, err
	}

	target := filepath.Join(dir.filesDir(), filepath.Base(path))
	if _, err := os.Lstat(target); err == nil {
		target += uniqueSuffix()
	}
	record := domain.TrashRecord{
		OriginalPath: path,
		TrashPath:    target,
		IsDirectory:  info.IsDir(),
		Bytes:        info.Size(),
		TrashedAt:    dir.now().UTC(),
	}

	err = dir.rename(path, target)
	switch {
	case err == nil:
	case errors.Is(err, syscall.EXDEV):
		if err := copyPath(path, target); err != nil {
			_ = os.RemoveAll(target)
			return domain.TrashRecord{}, err
		}
		// The copy is complete: record it before the original goes away.
		infoErr := dir.writeInfo(record)
		if err := dir.removeAll(path); err != nil {
			return record, fmt.Errorf("%w: %w", ErrSourceRemains, err)
		}
		if infoErr != nil {
			return record, fmt.Errorf("write trash info: %w", infoErr)
		}
		return record, nil
	default:
		return domain.TrashRecord{}, err
	}

	if err := dir.writeInfo(record); err != nil {
		return record, fmt.Errorf("write trash info: %w", err)
	}
	return record, nil
}

// Restore moves a trashed entry back to its original path. It refuses to
// overwrite anything that now occupies that path.
func (dir *Dir) Restore(record domain.TrashRecord) error {
	if _, err := os.Lstat(record.OriginalPath); err == nil {
		return fmt.Errorf("%s: %w", record.OriginalPath, ErrRestoreConflict)
	}
	if err := os.MkdirAll(filepath.Dir(record.OriginalPath), 0o755); err != nil {
		return err
	}
	if err := dir.move(record.TrashPath, record.OriginalPath); err != nil {
		return err
	}
	_ = os.Remove(dir.infoPath(record.TrashPath))
	return nil
}

func (dir *Dir) filesDir() string {
	return filepath.Join(dir.root, "files")
}

func (dir *Dir) infoDir() string {
	return filepath.Join(dir.root, "info")
}

func (dir *Dir) infoPath(trashPath string) string {
	return filepath.Join(dir.infoDir(), filepath.Base(trashPath)+".json")
}

func (dir *Dir) writeInfo(record domain.TrashRecord) error {
	data, err := json.MarshalIndent(infoFile{
		OriginalPath: record.OriginalPath,
		IsDirectory:  record.IsDirectory,
		Bytes:        record.Bytes,
		TrashedAt:    record.TrashedAt,
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(dir.infoPath(record.TrashPath), data, 0o600)
}

type infoFile struct {
	OriginalPath string    `json:"original_path"`
	IsDirectory  bool      `json:"is_directory"`
	Bytes        int64     `json:"bytes"`
	TrashedAt    time.Time `json:"trashed_at"`
}

// move renames source to target, copying across devices when rename cannot.
func (dir *Dir) move(source, target string) error {
	err := dir.rename(source, target)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyPath(source, target); err != nil {
		_ = os.RemoveAll(target)
		return err
	}
	return dir.removeAll(source)
}

func uniqueSuffix() string {
	buffer := make([]byte, 6)
	if _, err := rand.Read(buffer); err != nil {
		return "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return "-" + hex.EncodeToString(buffer)
}

// writeFileAtomic writes to a temp file and renames it over target.
func writeFileAtomic(target string, data []byte, perm os.FileMode) error {
	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp to target: %w", err)
	}
	return nil
}
