package domain

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

type Domain string

const (
	DomainSystem       Domain = "system"
	DomainApplications Domain = "applications"
	DomainUserFiles    Domain = "userFiles"
	DomainDeveloper    Domain = "developer"
	DomainCloud        Domain = "cloud"
	DomainOther        Domain = "other"
)

type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskProtected
)

func (risk RiskLevel) String() string {
	switch risk {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskProtected:
		return "protected"
	default:
		return "unknown"
	}
}

func ParseRiskLevel(value string) (RiskLevel, bool) {
	switch value {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	case "protected":
		return RiskProtected, true
	default:
		return RiskLow, false
	}
}

// StorageNode is one filesystem entry as last observed by a scan. Parent and
// child relationships are derived from Path; nodes never reference each other.
type StorageNode struct {
	ID              string
	Path            string
	Name            string
	IsDirectory     bool
	LogicalBytes    int64
	SizeIsEstimated bool
	Domain          Domain
	RiskLevel       RiskLevel
	OwnerApp        string
	ModTime         time.Time
	FileCount       int64
	DirCount        int64
}

func (node StorageNode) ParentPath() string {
	parent := filepath.Dir(node.Path)
	if parent == node.Path {
		return ""
	}
	return parent
}

// NodeID derives the stable identity of a canonical path.
func NodeID(path string) string {
	return strconv.FormatUint(xxhash.Sum64String(path), 16)
}

// CanonicalPath cleans and absolutizes path without resolving symlinks.
func CanonicalPath(path string) string {
	if path == "" {
		return path
	}
	clean := filepath.Clean(path)
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean
	}
	return abs
}

func DisplayName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return path
	}
	return name
}
