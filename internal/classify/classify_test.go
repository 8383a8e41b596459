package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tonic/internal/domain"
)

const home = "/home/tester"

func TestClassifyDomainAndRisk(t *testing.T) {
	classifier := New(NewPolicy(home))

	cases := []struct {
		name   string
		path   string
		dir    bool
		size   int64
		domain domain.Domain
		risk   domain.RiskLevel
	}{
		{"system binary", "/usr/bin/ls", false, 1024, domain.DomainSystem, domain.RiskProtected},
		{"system library", "/Library/Caches/x", false, 10, domain.DomainSystem, domain.RiskProtected},
		{"etc is high not protected", "/etc/hosts", false, 10, domain.DomainSystem, domain.RiskHigh},
		{"user document", home + "/Documents/report.pdf", false, 10, domain.DomainUserFiles, domain.RiskMedium},
		{"empty user file", home + "/Documents/empty.txt", false, 0, domain.DomainUserFiles, domain.RiskLow},
		{"node_modules dir", home + "/src/app/node_modules", true, 500, domain.DomainDeveloper, domain.RiskLow},
		{"inside node_modules", home + "/src/app/node_modules/lib/index.js", false, 5, domain.DomainDeveloper, domain.RiskLow},
		{"file named like a cache dir", home + "/notes/node_modules", false, 5, domain.DomainUserFiles, domain.RiskMedium},
		{"go module cache", home + "/go/pkg/mod/cache", true, 5, domain.DomainDeveloper, domain.RiskLow},
		{"icloud", home + "/Library/Mobile Documents/com~apple~CloudDocs/a", false, 5, domain.DomainCloud, domain.RiskMedium},
		{"dropbox", home + "/Dropbox/photo.jpg", false, 5, domain.DomainCloud, domain.RiskMedium},
		{"app bundle", "/Applications/Editor.app/Contents/MacOS/Editor", false, 5, domain.DomainApplications, domain.RiskProtected},
		{"applications root", "/Applications", true, 5, domain.DomainApplications, domain.RiskProtected},
		{"opt tool", "/opt/tool/bin/run", false, 5, domain.DomainApplications, domain.RiskMedium},
		{"home itself", home, true, 5, domain.DomainUserFiles, domain.RiskProtected},
		{"unknown", "/tmp/scratch/file", false, 5, domain.DomainOther, domain.RiskLow},
		{"relative", "scratch/file", false, 5, domain.DomainOther, domain.RiskLow},
		{"empty", "", false, 5, domain.DomainOther, domain.RiskLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotDomain, gotRisk := classifier.Classify(tc.path, tc.dir, tc.size, "")
			assert.Equal(t, tc.domain, gotDomain)
			assert.Equal(t, tc.risk, gotRisk)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	classifier := New(NewPolicy(home))
	firstDomain, firstRisk := classifier.Classify(home+"/src/.venv/lib", true, 10, "")
	for range 10 {
		nextDomain, nextRisk := classifier.Classify(home+"/src/.venv/lib", true, 10, "")
		assert.Equal(t, firstDomain, nextDomain)
		assert.Equal(t, firstRisk, nextRisk)
	}
}

func TestRunningAppEscalates(t *testing.T) {
	running := func(app string) bool { return app == "Editor" }
	classifier := New(NewPolicy(home), WithRunningApps(running))

	path := home + "/Library/Caches/com.vendor.Editor/blob"
	owner := classifier.OwnerApp(path)
	assert.Equal(t, "Editor", owner)

	_, risk := classifier.Classify(path, false, 10, owner)
	assert.Equal(t, domain.RiskHigh, risk)

	_, risk = classifier.Classify(path, false, 10, "Other")
	assert.Equal(t, domain.RiskMedium, risk)

	_, risk = classifier.Classify(home+"/src/node_modules", true, 10, "Editor")
	assert.Equal(t, domain.RiskMedium, risk)
}

func TestProtectedWinsOverEscalation(t *testing.T) {
	classifier := New(NewPolicy(home), WithRunningApps(func(string) bool { return true }))
	_, risk := classifier.Classify("/System/Library/Fonts", true, 10, "Finder")
	assert.Equal(t, domain.RiskProtected, risk)
}

func TestIsProtected(t *testing.T) {
	classifier := New(NewPolicy(home))

	assert.True(t, classifier.IsProtected("/"))
	assert.True(t, classifier.IsProtected("/private/var/db"))
	assert.True(t, classifier.IsProtected("/Applications/Editor.app"))
	assert.True(t, classifier.IsProtected(home+"/Applications/Tool.app/Contents"))
	assert.True(t, classifier.IsProtected(home+"/"))

	assert.False(t, classifier.IsProtected("/Applications/readme.txt"))
	assert.False(t, classifier.IsProtected("/var/tmp/cache"))
	assert.False(t, classifier.IsProtected(home+"/Downloads/big.iso"))
	assert.False(t, classifier.IsProtected("/usrlocal/data"))
}

func TestOwnerApp(t *testing.T) {
	classifier := New(NewPolicy(home))

	assert.Equal(t, "Editor", classifier.OwnerApp(home+"/Library/Application Support/com.vendor.Editor/state.db"))
	assert.Equal(t, "nvim", classifier.OwnerApp(home+"/.config/nvim/init.lua"))
	assert.Equal(t, "Browser", classifier.OwnerApp("/Applications/Browser.app/Contents/Info.plist"))
	assert.Equal(t, "", classifier.OwnerApp(home+"/.config"))
	assert.Equal(t, "", classifier.OwnerApp("/tmp/file"))
}

func TestUnknownHomeSkipsHomeRules(t *testing.T) {
	classifier := New(NewPolicy(""))

	gotDomain, gotRisk := classifier.Classify("/home/someone/Documents/a.txt", false, 10, "")
	assert.Equal(t, domain.DomainOther, gotDomain)
	assert.Equal(t, domain.RiskLow, gotRisk)

	gotDomain, _ = classifier.Classify("/home/someone/src/node_modules", true, 10, "")
	assert.Equal(t, domain.DomainDeveloper, gotDomain)
	assert.Equal(t, "", classifier.OwnerApp("/home/someone/.config/nvim/init.lua"))
}
