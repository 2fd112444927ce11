package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mica/internal/shared"
)

func writeUnitFile(t *testing.T, dir, fname string, u CompiledUnit) string {
	t.Helper()
	u.Bytes = encodeUnit(&u)
	path := filepath.Join(dir, fname)
	if err := os.WriteFile(path, u.Bytes, 0o644); err != nil {
		t.Fatalf("write %s: %v", fname, err)
	}
	return path
}

func TestSubstituteCompiledDeps(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()

	compiled := writeUnitFile(t, srcDir, "registry.micb",
		CompiledUnit{Package: "vendor", Address: "0x03", Name: "registry"})
	plain := filepath.Join(srcDir, "helpers.mica")
	if err := os.WriteFile(plain, []byte("module 0x03::helpers {\n}\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	deps := []shared.PackagePaths{{Name: "vendor", Paths: []string{compiled, plain}}}
	out, err := substituteCompiledDeps(deps, root)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if len(out) != 1 || len(out[0].Paths) != 2 {
		t.Fatalf("group shape changed: %+v", out)
	}
	ifc := out[0].Paths[0]
	if ifc == compiled {
		t.Fatalf("compiled dependency not substituted")
	}
	if !strings.HasSuffix(ifc, InterfaceExt) {
		t.Fatalf("interface file %s lacks the %s extension", ifc, InterfaceExt)
	}
	if out[0].Paths[1] != plain {
		t.Fatalf("plain source path rewritten to %s", out[0].Paths[1])
	}

	data, err := os.ReadFile(ifc)
	if err != nil {
		t.Fatalf("read interface: %v", err)
	}
	if !strings.Contains(string(data), "module 0x03::registry {") {
		t.Fatalf("interface body wrong:\n%s", data)
	}
	// original paths stay on disk for other consumers
	if _, err := os.Stat(compiled); err != nil {
		t.Fatalf("compiled input removed: %v", err)
	}
}

func TestSubstituteCompiledDepsNoCompiledInputs(t *testing.T) {
	srcDir := t.TempDir()
	plain := filepath.Join(srcDir, "helpers.mica")
	if err := os.WriteFile(plain, []byte("module 0x03::helpers {\n}\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	deps := []shared.PackagePaths{{Name: "vendor", Paths: []string{plain}}}
	out, err := substituteCompiledDeps(deps, filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if out[0].Paths[0] != plain {
		t.Fatalf("source-only group modified: %+v", out)
	}
}

func TestSubstituteCompiledDepsIsStable(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()
	compiled := writeUnitFile(t, srcDir, "registry.micb",
		CompiledUnit{Package: "vendor", Address: "0x03", Name: "registry"})
	deps := []shared.PackagePaths{{Name: "vendor", Paths: []string{compiled}}}

	first, err := substituteCompiledDeps(deps, root)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := substituteCompiledDeps(deps, root)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first[0].Paths[0] != second[0].Paths[0] {
		t.Fatalf("same inputs produced different interface paths: %s vs %s",
			first[0].Paths[0], second[0].Paths[0])
	}
}

func TestCompiledScriptRejectedAsDependency(t *testing.T) {
	srcDir := t.TempDir()
	compiled := writeUnitFile(t, srcDir, "deploy.micb",
		CompiledUnit{Package: "vendor", Name: "deploy", IsScript: true})
	deps := []shared.PackagePaths{{Name: "vendor", Paths: []string{compiled}}}

	_, err := substituteCompiledDeps(deps, t.TempDir())
	if err == nil {
		t.Fatalf("compiled script accepted as dependency")
	}
	if !strings.Contains(err.Error(), "cannot be a dependency") {
		t.Fatalf("unexpected error: %v", err)
	}
}
