package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"tonic/internal/classify"
	"tonic/internal/domain"
)

const readBatch = 256

// discovery is what a walker hands to the writer loop: nodes ready to be
// indexed, or a warning.
type discovery struct {
	nodes   []domain.StorageNode
	warning string
}

type dirResult struct {
	bytes     int64
	files     int64
	dirs      int64
	estimated bool
	ok        bool
}

// workerPool bounds the goroutines of one walk. A directory whose slot
// cannot be acquired is walked inline by its parent.
type workerPool struct {
	sem *semaphore.Weighted
}

func newWorkerPool(workers int) workerPool {
	return workerPool{sem: semaphore.NewWeighted(int64(maxInt(workers, 1)))}
}

func (pool workerPool) TryAcquire() bool { return pool.sem.TryAcquire(1) }
func (pool workerPool) Release()         { pool.sem.Release(1) }

type walker struct {
	ctx        context.Context
	found      chan<- discovery
	sem        workerPool
	classifier *classify.Classifier
	estimator  Estimator
	exclusions map[string]struct{}
	showHidden bool
	// cutoff is the depth at which directories are estimated; zero walks
	// everything.
	cutoff int
}

type entryInfo struct {
	path string
	info fs.FileInfo
}

func (walker *walker) visitRoot(root string, info fs.FileInfo) dirResult {
	if !info.IsDir() {
		node := walker.leaf(root, info)
		walker.send(discovery{nodes: []domain.StorageNode{node}})
		return dirResult{bytes: node.LogicalBytes, files: 1, ok: true}
	}
	return walker.visit(root, info, 0)
}

// visit lists path, indexes its files, descends into subdirectories and
// finally emits the directory itself, so children always precede parents.
func (walker *walker) visit(path string, info fs.FileInfo, depth int) dirResult {
	if walker.ctx.Err() != nil {
		return dirResult{}
	}
	if walker.cutoff > 0 && depth >= walker.cutoff {
		return walker.estimate(path, info)
	}

	files, subdirs, err := walker.list(path)
	if err != nil {
		if walker.ctx.Err() == nil {
			walker.warn(path, err)
		}
		return dirResult{}
	}

	result := dirResult{ok: true}
	for _, file := range files {
		result.bytes += file.LogicalBytes
		result.files++
	}
	if len(files) > 0 {
		walker.send(discovery{nodes: files})
	}

	results := make([]dirResult, len(subdirs))
	var wg sync.WaitGroup
	for i, sub := range subdirs {
		if walker.ctx.Err() != nil {
			break
		}
		if walker.sem.TryAcquire() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer walker.sem.Release()
				results[i] = walker.visit(sub.path, sub.info, depth+1)
			}()
			continue
		}
		results[i] = walker.visit(sub.path, sub.info, depth+1)
	}
	wg.Wait()
	if walker.ctx.Err() != nil {
		return dirResult{}
	}

	for _, child := range results {
		if !child.ok {
			continue
		}
		result.bytes += child.bytes
		result.files += child.files
		result.dirs += child.dirs + 1
		result.estimated = result.estimated || child.estimated
	}
	walker.send(discovery{nodes: []domain.StorageNode{walker.directory(path, info, result)}})
	return result
}

// list reads a directory in batches, checking for cancellation between
// them. Nothing is emitted for a directory whose listing fails.
func (walker *walker) list(path string) ([]domain.StorageNode, []entryInfo, error) {
	dir, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer dir.Close()

	var files []domain.StorageNode
	var subdirs []entryInfo
	for {
		if err := walker.ctx.Err(); err != nil {
			return nil, nil, err
		}
		entries, readErr := dir.ReadDir(readBatch)
		for _, entry := range entries {
			name := entry.Name()
			if !walker.showHidden && isHidden(name) {
				continue
			}
			child := filepath.Join(path, name)
			if _, excluded := walker.exclusions[child]; excluded {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					walker.warn(child, err)
				}
				continue
			}
			// Symlinks report as non-directories and are never followed.
			if entry.IsDir() {
				subdirs = append(subdirs, entryInfo{path: child, info: info})
				continue
			}
			files = append(files, walker.leaf(child, info))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, readErr
		}
	}

	slices.SortFunc(files, func(a, b domain.StorageNode) int { return strings.Compare(a.Path, b.Path) })
	slices.SortFunc(subdirs, func(a, b entryInfo) int { return strings.Compare(a.path, b.path) })
	return files, subdirs, nil
}

func (walker *walker) estimate(path string, info fs.FileInfo) dirResult {
	size, err := walker.estimator.Estimate(walker.ctx, path)
	if err != nil {
		if walker.ctx.Err() == nil {
			walker.warn(path, err)
		}
		return dirResult{}
	}
	node := walker.newNode(path, info, true, size)
	node.SizeIsEstimated = true
	walker.send(discovery{nodes: []domain.StorageNode{node}})
	return dirResult{bytes: size, estimated: true, ok: true}
}

func (walker *walker) leaf(path string, info fs.FileInfo) domain.StorageNode {
	return walker.newNode(path, info, false, info.Size())
}

func (walker *walker) directory(path string, info fs.FileInfo, result dirResult) domain.StorageNode {
	node := walker.newNode(path, info, true, result.bytes)
	node.SizeIsEstimated = result.estimated
	node.FileCount = result.files
	node.DirCount = result.dirs
	return node
}

func (walker *walker) newNode(path string, info fs.FileInfo, isDirectory bool, size int64) domain.StorageNode {
	owner := walker.classifier.OwnerApp(path)
	nodeDomain, risk := walker.classifier.Classify(path, isDirectory, size, owner)
	return domain.StorageNode{
		ID:           domain.NodeID(path),
		Path:         path,
		Name:         domain.DisplayName(path),
		IsDirectory:  isDirectory,
		LogicalBytes: size,
		Domain:       nodeDomain,
		RiskLevel:    risk,
		OwnerApp:     owner,
		ModTime:      info.ModTime(),
	}
}

func (walker *walker) warn(path string, err error) {
	message := fmt.Sprintf("%s: %v", path, err)
	if isPermissionErr(err) {
		message = fmt.Sprintf("%s: permission denied", path)
	}
	walker.send(discovery{warning: message})
}

func (walker *walker) send(item discovery) {
	select {
	case walker.found <- item:
	case <-walker.ctx.Done():
	}
}
