package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is one dependency manifest: a flat mapping of package name to
// version constraint. An empty constraint means "any version".
type Manifest struct {
	Path     string
	Packages map[string]string
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	packages := make(map[string]string)
	if err := yaml.Unmarshal(data, &packages); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	normalized := make(map[string]string, len(packages))
	for name, constraint := range packages {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("manifest %s: empty package name", path)
		}
		normalized[strings.ToLower(name)] = strings.TrimSpace(constraint)
	}
	return &Manifest{Path: path, Packages: normalized}, nil
}

// LoadAll loads manifests preserving the given install order.
func LoadAll(paths []string) ([]*Manifest, error) {
	manifests := make([]*Manifest, 0, len(paths))
	for _, path := range paths {
		m, err := Load(path)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Specs renders the manifest as environment-manager match specs, sorted by
// package name for deterministic install invocations.
func (m *Manifest) Specs() []string {
	specs := make([]string, 0, len(m.Packages))
	for name, constraint := range m.Packages {
		if constraint == "" {
			specs = append(specs, name)
			continue
		}
		specs = append(specs, name+constraint)
	}
	sort.Strings(specs)
	return specs
}

// CheckLayering verifies that manifests applied in order do not contradict
// one another: a package pinned by an earlier manifest may only reappear
// later with the identical constraint (or none). Later manifests may assume
// earlier ones are already satisfied, so a contradictory re-pin would make
// the install order-dependent.
func CheckLayering(manifests []*Manifest) error {
	pinned := make(map[string]pin)
	for _, m := range manifests {
		for name, constraint := range m.Packages {
			prior, ok := pinned[name]
			if !ok {
				pinned[name] = pin{constraint: constraint, source: m.Path}
				continue
			}
			if constraint == "" || constraint == prior.constraint {
				continue
			}
			if prior.constraint == "" {
				// Earlier manifest accepted any version; a later pin narrows it.
				pinned[name] = pin{constraint: constraint, source: m.Path}
				continue
			}
			return fmt.Errorf(
				"package %q pinned to %q by %s but %q by %s",
				name, prior.constraint, prior.source, constraint, m.Path,
			)
		}
	}
	return nil
}

type pin struct {
	constraint string
	source     string
}
