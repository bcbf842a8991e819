package detector

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Pattern describes a supported dependency file. Lower priorities win.
type Pattern struct {
	Name      string
	Priority  int
	Lockfile  bool
	Ecosystem string
}

const (
	csprojSuffix   = ".csproj"
	csprojPriority = 16
	unknownPriority = 999
)

// Patterns lists the supported dependency files. Lockfiles take precedence over manifests.
var Patterns = []Pattern{
	{Name: "package-lock.json", Priority: 1, Lockfile: true, Ecosystem: "npm"},
	{Name: "yarn.lock", Priority: 2, Lockfile: true, Ecosystem: "npm"},
	{Name: "pnpm-lock.yaml", Priority: 3, Lockfile: true, Ecosystem: "npm"},
	{Name: "package.json", Priority: 10, Ecosystem: "npm"},

	{Name: "poetry.lock", Priority: 4, Lockfile: true, Ecosystem: "PyPI"},
	{Name: "Pipfile.lock", Priority: 5, Lockfile: true, Ecosystem: "PyPI"},
	{Name: "requirements.txt", Priority: 11, Ecosystem: "PyPI"},

	{Name: "composer.lock", Priority: 6, Lockfile: true, Ecosystem: "Packagist"},
	{Name: "composer.json", Priority: 12, Ecosystem: "Packagist"},

	{Name: "go.sum", Priority: 7, Lockfile: true, Ecosystem: "Go"},
	{Name: "go.mod", Priority: 13, Ecosystem: "Go"},

	{Name: "Cargo.lock", Priority: 8, Lockfile: true, Ecosystem: "crates.io"},
	{Name: "Cargo.toml", Priority: 14, Ecosystem: "crates.io"},

	{Name: "Gemfile.lock", Priority: 9, Lockfile: true, Ecosystem: "RubyGems"},

	{Name: "packages.lock.json", Priority: 15, Lockfile: true, Ecosystem: "NuGet"},
}

func find(fileName string) (Pattern, bool) {
	return lo.Find(Patterns, func(p Pattern) bool {
		return p.Name == fileName
	})
}

// Supported reports whether the base name of a file is a supported dependency file.
func Supported(fileName string) bool {
	if _, ok := find(fileName); ok {
		return true
	}
	return strings.HasSuffix(fileName, csprojSuffix)
}

// Priority returns the detection priority of a file name.
func Priority(fileName string) int {
	if p, ok := find(fileName); ok {
		return p.Priority
	}
	if strings.HasSuffix(fileName, csprojSuffix) {
		return csprojPriority
	}
	return unknownPriority
}

// SupportedNames returns the supported file names in priority order.
func SupportedNames() []string {
	sorted := append([]Pattern(nil), Patterns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	names := lo.Map(sorted, func(p Pattern, _ int) string {
		return p.Name
	})
	return append(names, "*"+csprojSuffix)
}
