//go:build linux || darwin || freebsd

package volume

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func UsageOf(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	blockSize := uint64(stat.Bsize)
	total := uint64(stat.Blocks) * blockSize
	free := uint64(stat.Bfree) * blockSize
	return Usage{
		TotalBytes: total,
		FreeBytes:  uint64(stat.Bavail) * blockSize,
		UsedBytes:  total - free,
	}, nil
}
