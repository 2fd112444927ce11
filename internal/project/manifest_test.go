package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mica/internal/diag"
	"mica/internal/source"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("module 0x02::m {\n}\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

const minimalManifest = `[package]
name = "demo"
`

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, minimalManifest)
	nested := filepath.Join(root, "sources", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path, found, err := Find(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found {
		t.Fatalf("manifest not found from nested directory")
	}
	if path != filepath.Join(root, ManifestName) {
		t.Fatalf("found %s, want root manifest", path)
	}
}

func TestFindMissesCleanly(t *testing.T) {
	_, found, err := Find(t.TempDir())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found {
		t.Fatalf("found a manifest in an empty tree")
	}
}

func TestLoadValidates(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing package", `[addresses]`, "missing [package]"},
		{"missing name", "[package]\n", "missing [package].name"},
		{"blank name", "[package]\nname = \"  \"\n", "missing [package].name"},
		{"bad address", "[package]\nname = \"x\"\n[addresses]\nstd = \"zz\"\n", "[addresses].std"},
		{"dep without path", "[package]\nname = \"x\"\n[dependencies.core]\n", "missing path"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), c.body)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("invalid manifest accepted")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestNamedAddressMap(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `[package]
name = "demo"

[addresses]
std = "0x1"
demo = "0x42"
pending = ""
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	addrs, err := m.NamedAddressMap()
	if err != nil {
		t.Fatalf("addresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("got %d addresses, want 2 (unassigned omitted): %v", len(addrs), addrs)
	}
	if v, ok := addrs["std"]; !ok || v.String() != "0x01" {
		t.Errorf("std = %v ok=%v", v, ok)
	}
	if v, ok := addrs["demo"]; !ok || v.String() != "0x42" {
		t.Errorf("demo = %v ok=%v", v, ok)
	}
	if _, ok := addrs["pending"]; ok {
		t.Errorf("unassigned address leaked into the map")
	}
}

func TestPackageConfigSuppressWarnings(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `[package]
name = "demo"
suppress-warnings = ["unused_alias"]
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := m.PackageConfig(false)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.IsDependency {
		t.Errorf("target config marked as dependency")
	}
	d := diag.New(diag.UnusedItemAlias, source.Span{File: 1, Start: 1, End: 2}, "unused")
	if !cfg.WarningFilter.IsFiltered(d) {
		t.Errorf("suppress-warnings entry not applied")
	}
	other := diag.New(diag.UnusedItemUseFun, source.Span{File: 1, Start: 1, End: 2}, "unused")
	if cfg.WarningFilter.IsFiltered(other) {
		t.Errorf("unrelated warning filtered")
	}
}

func TestPackageConfigRejectsUnknownFilter(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `[package]
name = "demo"
suppress-warnings = ["no_such_filter"]
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.PackageConfig(false); err == nil {
		t.Fatalf("unknown filter accepted")
	}
}

func TestSourcePathsPrefersSourcesDir(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, minimalManifest)
	writeSource(t, root, "stray.mica")
	inSources := writeSource(t, filepath.Join(root, "sources"), "main.mica")
	writeSource(t, filepath.Join(root, "sources", "nested"), "util.mica")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	paths, err := m.SourcePaths()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %v, want the two files under sources/", paths)
	}
	found := false
	for _, p := range paths {
		if p == inSources {
			found = true
		}
		if strings.Contains(p, "stray") {
			t.Errorf("root-level file collected despite sources/ existing: %s", p)
		}
	}
	if !found {
		t.Errorf("sources/main.mica missing from %v", paths)
	}
}

func TestSourcePathsSkipsBuildDir(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, minimalManifest)
	writeSource(t, root, "main.mica")
	writeSource(t, filepath.Join(root, "build"), "generated.mica")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	paths, err := m.SourcePaths()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	for _, p := range paths {
		if strings.Contains(p, "build") {
			t.Fatalf("build output collected as source: %s", p)
		}
	}
	if len(paths) != 1 {
		t.Fatalf("got %v, want only main.mica", paths)
	}
}

func TestTargetGroup(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, `[package]
name = "demo"

[addresses]
demo = "0x2"
`)
	writeSource(t, filepath.Join(root, "sources"), "main.mica")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g, err := m.TargetGroup()
	if err != nil {
		t.Fatalf("target group: %v", err)
	}
	if g.Name != "demo" {
		t.Errorf("group name = %q", g.Name)
	}
	if g.Config == nil || g.Config.IsDependency {
		t.Errorf("target config wrong: %+v", g.Config)
	}
	if len(g.Paths) != 1 {
		t.Errorf("paths = %v", g.Paths)
	}
	if _, ok := g.NamedAddressMap["demo"]; !ok {
		t.Errorf("address map missing demo: %v", g.NamedAddressMap)
	}
}

func TestDependencyGroupsSortedAndRecursive(t *testing.T) {
	// lib has its own manifest and one transitive bare-directory dependency
	libRoot := t.TempDir()
	vendorDir := filepath.Join(libRoot, "vendor")
	writeSource(t, vendorDir, "raw.mica")
	writeManifest(t, libRoot, `[package]
name = "lib"

[dependencies]
vendor = { path = "vendor" }
`)
	writeSource(t, filepath.Join(libRoot, "sources"), "lib.mica")

	// bare is a manifest-less directory of sources
	bareRoot := t.TempDir()
	writeSource(t, bareRoot, "bare.mica")

	appRoot := t.TempDir()
	path := writeManifest(t, appRoot, `[package]
name = "app"

[dependencies]
zeta = { path = "`+bareRoot+`" }
alpha = { path = "`+libRoot+`" }
`)
	writeSource(t, filepath.Join(appRoot, "sources"), "main.mica")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	groups, err := m.DependencyGroups()
	if err != nil {
		t.Fatalf("dependency groups: %v", err)
	}

	var names []string
	for _, g := range groups {
		names = append(names, g.Name)
		if g.Config == nil || !g.Config.IsDependency {
			t.Errorf("group %q not marked as dependency: %+v", g.Name, g.Config)
		}
	}
	// alpha sorts before zeta; alpha's own dependency follows it
	want := []string{"lib", "vendor", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("groups = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("groups = %v, want %v", names, want)
		}
	}
}

func TestDependencyGroupsEmpty(t *testing.T) {
	path := writeManifest(t, t.TempDir(), minimalManifest)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	groups, err := m.DependencyGroups()
	if err != nil {
		t.Fatalf("dependency groups: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %v, want none", groups)
	}
}
