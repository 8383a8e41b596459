package trash

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPutAndRestoreFile(t *testing.T) {
	work := t.TempDir()
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	source := filepath.Join(work, "report.log")
	writeFile(t, source, "hello")

	record, err := facility.Put(source)
	require.NoError(t, err)
	assert.Equal(t, source, record.OriginalPath)
	assert.False(t, record.IsDirectory)
	assert.Equal(t, int64(5), record.Bytes)
	assert.NoFileExists(t, source)
	assert.FileExists(t, record.TrashPath)
	assert.FileExists(t, facility.infoPath(record.TrashPath))

	require.NoError(t, facility.Restore(record))
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.NoFileExists(t, record.TrashPath)
	assert.NoFileExists(t, facility.infoPath(record.TrashPath))
}

func TestPutDirectoryAndNameCollision(t *testing.T) {
	work := t.TempDir()
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	first := filepath.Join(work, "one", "cache")
	second := filepath.Join(work, "two", "cache")
	writeFile(t, filepath.Join(first, "a.bin"), "a")
	writeFile(t, filepath.Join(second, "b.bin"), "b")

	firstRecord, err := facility.Put(first)
	require.NoError(t, err)
	secondRecord, err := facility.Put(second)
	require.NoError(t, err)

	assert.True(t, firstRecord.IsDirectory)
	assert.NotEqual(t, firstRecord.TrashPath, secondRecord.TrashPath)
	assert.FileExists(t, filepath.Join(secondRecord.TrashPath, "b.bin"))

	require.NoError(t, facility.Restore(secondRecord))
	require.NoError(t, facility.Restore(firstRecord))
	assert.FileExists(t, filepath.Join(first, "a.bin"))
	assert.FileExists(t, filepath.Join(second, "b.bin"))
}

// crossDevice makes every rename fail as if source and trash were on
// different filesystems.
func crossDevice(facility *Dir) {
	facility.rename = func(source, target string) error {
		return &os.LinkError{Op: "rename", Old: source, New: target, Err: syscall.EXDEV}
	}
}

func TestPutCopiesAcrossDevices(t *testing.T) {
	work := t.TempDir()
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	crossDevice(facility)
	source := filepath.Join(work, "cache")
	writeFile(t, filepath.Join(source, "a.bin"), "a")

	record, err := facility.Put(source)
	require.NoError(t, err)
	assert.NoDirExists(t, source)
	assert.FileExists(t, filepath.Join(record.TrashPath, "a.bin"))
	assert.FileExists(t, facility.infoPath(record.TrashPath))

	require.NoError(t, facility.Restore(record))
	assert.FileExists(t, filepath.Join(source, "a.bin"))
	assert.NoDirExists(t, record.TrashPath)
}

func TestPartialRemovalKeepsRecord(t *testing.T) {
	work := t.TempDir()
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	crossDevice(facility)
	source := filepath.Join(work, "cache")
	writeFile(t, filepath.Join(source, "a.bin"), "a")
	writeFile(t, filepath.Join(source, "b.bin"), "b")
	facility.removeAll = func(path string) error {
		if err := os.Remove(filepath.Join(path, "a.bin")); err != nil {
			return err
		}
		return errors.New("device busy")
	}

	record, err := facility.Put(source)
	require.ErrorIs(t, err, ErrSourceRemains)
	require.NotEmpty(t, record.TrashPath)
	assert.Equal(t, source, record.OriginalPath)
	assert.FileExists(t, filepath.Join(record.TrashPath, "a.bin"))
	assert.FileExists(t, filepath.Join(record.TrashPath, "b.bin"))
	assert.FileExists(t, facility.infoPath(record.TrashPath))

	assert.ErrorIs(t, facility.Restore(record), ErrRestoreConflict)
	require.NoError(t, os.RemoveAll(source))
	facility.removeAll = os.RemoveAll
	require.NoError(t, facility.Restore(record))
	assert.FileExists(t, filepath.Join(source, "a.bin"))
	assert.FileExists(t, filepath.Join(source, "b.bin"))
}

func TestRestoreRefusesToOverwrite(t *testing.T) {
	work := t.TempDir()
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	source := filepath.Join(work, "notes.txt")
	writeFile(t, source, "old")

	record, err := facility.Put(source)
	require.NoError(t, err)
	writeFile(t, source, "new")

	err = facility.Restore(record)
	assert.ErrorIs(t, err, ErrRestoreConflict)
	assert.FileExists(t, record.TrashPath)
}

func TestRestoreRecreatesParent(t *testing.T) {
	work := t.TempDir()
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	source := filepath.Join(work, "nested", "deep", "file.txt")
	writeFile(t, source, "x")

	record, err := facility.Put(source)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(work, "nested")))

	require.NoError(t, facility.Restore(record))
	assert.FileExists(t, source)
}

func TestPutMissingPath(t *testing.T) {
	facility := NewDir(filepath.Join(t.TempDir(), "trash"))
	_, err := facility.Put(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadyFailsOnUnwritableRoot(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker, "x")
	facility := NewDir(filepath.Join(blocker, "trash"))
	assert.Error(t, facility.Ready())
}

func TestCopyPathPreservesTree(t *testing.T) {
	work := t.TempDir()
	source := filepath.Join(work, "src")
	writeFile(t, filepath.Join(source, "a", "b.txt"), "payload")
	require.NoError(t, os.Symlink("a/b.txt", filepath.Join(source, "link")))

	target := filepath.Join(work, "dst")
	require.NoError(t, copyPath(source, target))

	data, err := os.ReadFile(filepath.Join(target, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	link, err := os.Readlink(filepath.Join(target, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.txt", link)
}
