// Package classify maps filesystem paths to a storage domain and a removal
// risk level. Classification is pure: it never touches the filesystem.
package classify

import (
	"os"
	"path/filepath"
	"strings"

	"tonic/internal/domain"
)

// Policy holds the machine-specific inputs of classification.
type Policy struct {
	// Home is the user's home directory; "~" in rules expands to it.
	Home string
	// Protected lists path prefixes that can never be cleaned.
	Protected []string
	// Critical lists exact paths that can never be cleaned even though their
	// descendants may be.
	Critical []string
	// ApplicationDirs hold installed applications; bundles inside them are protected.
	ApplicationDirs []string
}

// DefaultPolicy returns the protected-path policy for the current user.
func DefaultPolicy() Policy {
	home, _ := os.UserHomeDir()
	return NewPolicy(home)
}

func NewPolicy(home string) Policy {
	if home != "" {
		home = filepath.Clean(home)
	}
	policy := Policy{
		Home:      home,
		Protected: []string{"/System", "/usr", "/bin", "/sbin", "/private", "/Library"},
		Critical:  []string{"/", "/Users", "/home", "/etc", "/var", "/opt", "/Applications"},
		ApplicationDirs: []string{
			"/Applications",
		},
	}
	if home != "" {
		policy.Critical = append(policy.Critical, home)
		policy.ApplicationDirs = append(policy.ApplicationDirs, filepath.Join(home, "Applications"))
	}
	return policy
}

// Classifier evaluates the rule table against a policy.
type Classifier struct {
	policy  Policy
	rules   []rule
	running func(app string) bool
}

type Option func(*Classifier)

// WithRunningApps supplies the best-effort signal that an owning application
// is currently running; matching nodes are escalated one risk level.
func WithRunningApps(running func(app string) bool) Option {
	return func(classifier *Classifier) {
		classifier.running = running
	}
}

func New(policy Policy, options ...Option) *Classifier {
	classifier := &Classifier{
		policy: policy,
		rules:  expandRules(defaultRules, policy.Home),
	}
	for _, option := range options {
		option(classifier)
	}
	return classifier
}

func (classifier *Classifier) Policy() Policy {
	return classifier.policy
}

// Classify never fails; unrecognized input degrades to (other, low).
func (classifier *Classifier) Classify(path string, isDirectory bool, sizeBytes int64, ownerAppHint string) (domain.Domain, domain.RiskLevel) {
	if path == "" {
		return domain.DomainOther, domain.RiskLow
	}
	path = filepath.Clean(path)

	nodeDomain := domain.DomainOther
	for _, candidate := range classifier.rules {
		if candidate.matches(path, isDirectory) {
			nodeDomain = candidate.domain
			break
		}
	}

	if classifier.IsProtected(path) {
		return nodeDomain, domain.RiskProtected
	}

	risk := baseRisk[nodeDomain]
	if ownerAppHint != "" && classifier.running != nil && classifier.running(ownerAppHint) {
		risk = escalate(risk)
	}
	// Empty entries outside the system domain reclaim nothing and lose nothing.
	if sizeBytes == 0 && nodeDomain != domain.DomainSystem && risk == domain.RiskMedium {
		risk = domain.RiskLow
	}
	return nodeDomain, risk
}

// IsProtected reports whether path matches the protected-path policy.
func (classifier *Classifier) IsProtected(path string) bool {
	path = filepath.Clean(path)
	for _, critical := range classifier.policy.Critical {
		if path == filepath.Clean(critical) {
			return true
		}
	}
	for _, prefix := range classifier.policy.Protected {
		if within(filepath.Clean(prefix), path) {
			return true
		}
	}
	for _, appDir := range classifier.policy.ApplicationDirs {
		if bundle := bundleUnder(appDir, path); bundle != "" {
			return true
		}
	}
	return false
}

// OwnerApp attributes path to an application by name, best effort.
func (classifier *Classifier) OwnerApp(path string) string {
	path = filepath.Clean(path)
	for _, appDir := range classifier.policy.ApplicationDirs {
		if bundle := bundleUnder(appDir, path); bundle != "" {
			return strings.TrimSuffix(bundle, ".app")
		}
	}
	if classifier.policy.Home == "" {
		return ""
	}
	for _, base := range ownerBases {
		root := filepath.Join(classifier.policy.Home, base)
		if !within(root, path) || path == root {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		first := strings.Split(rel, string(filepath.Separator))[0]
		return appNameFromBundleID(first)
	}
	return ""
}

var baseRisk = map[domain.Domain]domain.RiskLevel{
	domain.DomainSystem:       domain.RiskHigh,
	domain.DomainApplications: domain.RiskMedium,
	domain.DomainCloud:        domain.RiskMedium,
	domain.DomainUserFiles:    domain.RiskMedium,
	domain.DomainDeveloper:    domain.RiskLow,
	domain.DomainOther:        domain.RiskLow,
}

var ownerBases = []string{
	filepath.Join("Library", "Application Support"),
	filepath.Join("Library", "Caches"),
	filepath.Join("Library", "Containers"),
	".config",
	filepath.Join(".local", "share"),
}

func escalate(risk domain.RiskLevel) domain.RiskLevel {
	if risk >= domain.RiskHigh {
		return risk
	}
	return risk + 1
}

// bundleUnder returns the .app bundle name when path is a bundle directly in
// appDir or inside one.
func bundleUnder(appDir, path string) string {
	appDir = filepath.Clean(appDir)
	if !within(appDir, path) || path == appDir {
		return ""
	}
	rel, err := filepath.Rel(appDir, path)
	if err != nil {
		return ""
	}
	first := strings.Split(rel, string(filepath.Separator))[0]
	if strings.HasSuffix(first, ".app") {
		return first
	}
	return ""
}

// appNameFromBundleID turns "com.vendor.Editor" into "Editor".
func appNameFromBundleID(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) >= 3 && (parts[0] == "com" || parts[0] == "org" || parts[0] == "io" || parts[0] == "net") {
		return parts[len(parts)-1]
	}
	return name
}

func within(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
