package classify

import (
	"path/filepath"
	"strings"

	"tonic/internal/domain"
)

type ruleKind int

const (
	// prefixRule matches the prefix itself and everything beneath it.
	prefixRule ruleKind = iota
	// componentRule matches when any directory component equals the name.
	componentRule
)

type rule struct {
	kind   ruleKind
	value  string
	domain domain.Domain
}

// defaultRules are evaluated in order; the first match wins. Cloud and
// developer rules precede the broad home rule.
var defaultRules = []rule{
	{prefixRule, "/System", domain.DomainSystem},
	{prefixRule, "/usr", domain.DomainSystem},
	{prefixRule, "/bin", domain.DomainSystem},
	{prefixRule, "/sbin", domain.DomainSystem},
	{prefixRule, "/private", domain.DomainSystem},
	{prefixRule, "/Library", domain.DomainSystem},
	{prefixRule, "/etc", domain.DomainSystem},
	{prefixRule, "/boot", domain.DomainSystem},
	{prefixRule, "/lib", domain.DomainSystem},
	{prefixRule, "/lib64", domain.DomainSystem},

	{prefixRule, "/Applications", domain.DomainApplications},
	{prefixRule, "~/Applications", domain.DomainApplications},
	{prefixRule, "/opt", domain.DomainApplications},
	{prefixRule, "/snap", domain.DomainApplications},
	{prefixRule, "/var/lib/flatpak", domain.DomainApplications},

	{prefixRule, "~/Library/Mobile Documents", domain.DomainCloud},
	{prefixRule, "~/Library/CloudStorage", domain.DomainCloud},
	{prefixRule, "~/iCloud Drive", domain.DomainCloud},
	{prefixRule, "~/Dropbox", domain.DomainCloud},
	{prefixRule, "~/Google Drive", domain.DomainCloud},
	{prefixRule, "~/OneDrive", domain.DomainCloud},
	{prefixRule, "~/Nextcloud", domain.DomainCloud},

	{prefixRule, "~/Library/Developer", domain.DomainDeveloper},
	{prefixRule, "~/Library/Caches/Homebrew", domain.DomainDeveloper},
	{prefixRule, "~/Library/Caches/go-build", domain.DomainDeveloper},
	{prefixRule, "~/.cache/go-build", domain.DomainDeveloper},
	{prefixRule, "~/.cache/pip", domain.DomainDeveloper},
	{prefixRule, "~/go/pkg/mod", domain.DomainDeveloper},
	{prefixRule, "~/.npm", domain.DomainDeveloper},
	{prefixRule, "~/.gradle", domain.DomainDeveloper},
	{prefixRule, "~/.m2", domain.DomainDeveloper},
	{prefixRule, "~/.cargo", domain.DomainDeveloper},
	{prefixRule, "~/.rustup", domain.DomainDeveloper},
	{prefixRule, "~/.conda", domain.DomainDeveloper},
	{componentRule, "node_modules", domain.DomainDeveloper},
	{componentRule, "DerivedData", domain.DomainDeveloper},
	{componentRule, "__pycache__", domain.DomainDeveloper},
	{componentRule, ".venv", domain.DomainDeveloper},
	{componentRule, ".gradle", domain.DomainDeveloper},
	{componentRule, ".pytest_cache", domain.DomainDeveloper},
	{componentRule, ".mypy_cache", domain.DomainDeveloper},
	{componentRule, ".next", domain.DomainDeveloper},
	{componentRule, ".turbo", domain.DomainDeveloper},
	{componentRule, ".git", domain.DomainDeveloper},

	{prefixRule, "~", domain.DomainUserFiles},
}

// expandRules resolves "~" against home and drops home-relative rules when
// home is unknown.
func expandRules(rules []rule, home string) []rule {
	expanded := make([]rule, 0, len(rules))
	for _, candidate := range rules {
		if candidate.kind == prefixRule && strings.HasPrefix(candidate.value, "~") {
			if home == "" {
				continue
			}
			candidate.value = filepath.Join(home, strings.TrimPrefix(candidate.value, "~"))
		}
		expanded = append(expanded, candidate)
	}
	return expanded
}

func (candidate rule) matches(path string, isDirectory bool) bool {
	switch candidate.kind {
	case prefixRule:
		return within(candidate.value, path)
	case componentRule:
		parts := strings.Split(path, string(filepath.Separator))
		for index, part := range parts {
			if part != candidate.value {
				continue
			}
			if index < len(parts)-1 || isDirectory {
				return true
			}
		}
		return false
	default:
		return false
	}
}
