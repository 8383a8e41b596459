// Package volume reports usage of the filesystem holding a path.
package volume

import "errors"

var ErrUnsupported = errors.New("volume usage not supported on this platform")

type Usage struct {
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// Used returns the used byte count for path, or nil when it cannot be read.
func Used(path string) *uint64 {
	usage, err := UsageOf(path)
	if err != nil {
		return nil
	}
	used := usage.UsedBytes
	return &used
}
