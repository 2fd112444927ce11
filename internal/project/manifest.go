// Package project locates and loads mica.toml manifests and turns them into
// the package path groups the compiler consumes.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"mica/internal/diag"
	"mica/internal/shared"
)

// ManifestName is the file that marks a package root.
const ManifestName = "mica.toml"

// SourceExt is the extension of mica source files.
const SourceExt = ".mica"

// Manifest is a located and validated mica.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

type Config struct {
	Package      PackageSection        `toml:"package"`
	Addresses    map[string]string     `toml:"addresses"`
	Dependencies map[string]Dependency `toml:"dependencies"`
}

type PackageSection struct {
	Name string `toml:"name"`
	// SuppressWarnings lists filter names applied package-wide, the same
	// identifiers the allow attribute accepts.
	SuppressWarnings []string `toml:"suppress-warnings"`
}

// Dependency is a path dependency: another package root or a directory of
// compiled units.
type Dependency struct {
	Path string `toml:"path"`
}

// Find walks up from startDir looking for a manifest.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := validate(path, meta, &cfg); err != nil {
		return nil, err
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, nil
}

func validate(path string, meta toml.MetaData, cfg *Config) error {
	if !meta.IsDefined("package") {
		return fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return fmt.Errorf("%s: missing [package].name", path)
	}
	for name, addr := range cfg.Addresses {
		if addr == "" {
			continue // declared but unassigned, resolved at build time or reported on use
		}
		if _, err := shared.ParseNumericalAddress(addr); err != nil {
			return fmt.Errorf("%s: [addresses].%s: %w", path, name, err)
		}
	}
	for name, dep := range cfg.Dependencies {
		if strings.TrimSpace(dep.Path) == "" {
			return fmt.Errorf("%s: [dependencies].%s: missing path", path, name)
		}
	}
	return nil
}

// NamedAddressMap resolves the [addresses] section. Unassigned names are
// simply absent from the map; uses of them surface as unassigned-address
// diagnostics.
func (m *Manifest) NamedAddressMap() (shared.NamedAddressMap, error) {
	out := make(shared.NamedAddressMap, len(m.Config.Addresses))
	for name, addr := range m.Config.Addresses {
		if addr == "" {
			continue
		}
		v, err := shared.ParseNumericalAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("%s: [addresses].%s: %w", m.Path, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// PackageConfig builds the compiler-facing configuration, translating
// suppress-warnings names into a default filter set.
func (m *Manifest) PackageConfig(isDependency bool) (*shared.PackageConfig, error) {
	wf := diag.NewWarningFiltersSource()
	for _, name := range m.Config.Package.SuppressWarnings {
		entries := diag.KnownFilters("", name)
		if len(entries) == 0 {
			return nil, fmt.Errorf("%s: unknown warning filter %q in [package].suppress-warnings", m.Path, name)
		}
		for _, f := range entries {
			wf.Add(f)
		}
	}
	return &shared.PackageConfig{IsDependency: isDependency, WarningFilter: wf}, nil
}

// SourcePaths collects the package's source files: sources/ recursively if
// it exists, otherwise every source file directly under the root.
func (m *Manifest) SourcePaths() ([]string, error) {
	srcDir := filepath.Join(m.Root, "sources")
	if info, err := os.Stat(srcDir); err == nil && info.IsDir() {
		return collectSources(srcDir)
	}
	return collectSources(m.Root)
}

func collectSources(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "build" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == SourceExt {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TargetGroup assembles this package as the compilation target.
func (m *Manifest) TargetGroup() (shared.PackagePaths, error) {
	paths, err := m.SourcePaths()
	if err != nil {
		return shared.PackagePaths{}, err
	}
	addrs, err := m.NamedAddressMap()
	if err != nil {
		return shared.PackagePaths{}, err
	}
	cfg, err := m.PackageConfig(false)
	if err != nil {
		return shared.PackagePaths{}, err
	}
	return shared.PackagePaths{
		Name:            m.Config.Package.Name,
		Config:          cfg,
		Paths:           paths,
		NamedAddressMap: addrs,
	}, nil
}

// DependencyGroups loads each path dependency, recursively resolving its
// manifest when one exists; a bare directory of sources or compiled units is
// accepted as an anonymous group sharing the parent's address map.
func (m *Manifest) DependencyGroups() ([]shared.PackagePaths, error) {
	if len(m.Config.Dependencies) == 0 {
		return nil, nil
	}
	parentAddrs, err := m.NamedAddressMap()
	if err != nil {
		return nil, err
	}
	// deterministic order so repeated runs see identical inputs
	names := make([]string, 0, len(m.Config.Dependencies))
	for name := range m.Config.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []shared.PackagePaths
	for _, name := range names {
		dep := m.Config.Dependencies[name]
		root := dep.Path
		if !filepath.IsAbs(root) {
			root = filepath.Join(m.Root, root)
		}
		depManifest := filepath.Join(root, ManifestName)
		if _, err := os.Stat(depManifest); err == nil {
			dm, err := Load(depManifest)
			if err != nil {
				return nil, fmt.Errorf("dependency %s: %w", name, err)
			}
			g, err := dm.TargetGroup()
			if err != nil {
				return nil, fmt.Errorf("dependency %s: %w", name, err)
			}
			if g.Config != nil {
				g.Config.IsDependency = true
			}
			out = append(out, g)
			nested, err := dm.DependencyGroups()
			if err != nil {
				return nil, fmt.Errorf("dependency %s: %w", name, err)
			}
			out = append(out, nested...)
			continue
		}
		paths, err := collectSources(root)
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", name, err)
		}
		out = append(out, shared.PackagePaths{
			Name:            name,
			Config:          &shared.PackageConfig{IsDependency: true},
			Paths:           paths,
			NamedAddressMap: parentAddrs,
		})
	}
	return out, nil
}
