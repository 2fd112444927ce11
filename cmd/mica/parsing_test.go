package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mica/internal/ast"
	"mica/internal/source"
)

func parseText(t *testing.T, text string) ([]ast.Definition, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mica")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := newDeclReader(source.NewFileSet())
	return r.Parse(nil, path)
}

func TestDeclReaderModuleHeaders(t *testing.T) {
	defs, err := parseText(t, `// generated interface for 0x03::registry, do not edit
module 0x03::registry {
}

module std::vector {
    fun inner() { { } }
}
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}

	first, ok := defs[0].(*ast.ModuleDefinition)
	if !ok {
		t.Fatalf("definition 0 is %T", defs[0])
	}
	if first.Name.Value != "registry" {
		t.Errorf("name = %q", first.Name.Value)
	}
	if first.Address == nil || !first.Address.IsAnonymous() || first.Address.Anon.String() != "0x03" {
		t.Errorf("address = %+v", first.Address)
	}

	second := defs[1].(*ast.ModuleDefinition)
	if second.Name.Value != "vector" {
		t.Errorf("name = %q", second.Name.Value)
	}
	if second.Address == nil || second.Address.Name != "std" {
		t.Errorf("address = %+v", second.Address)
	}
}

func TestDeclReaderSkipsCommentsAndNestedBraces(t *testing.T) {
	defs, err := parseText(t, `/* block
comment */
module 0x2::coin {
    struct Coin { value: u64 }
    fun mint() { if (true) { } else { } }
}
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want 1", len(defs))
	}
}

func TestDeclReaderRejectsOtherDeclarations(t *testing.T) {
	_, err := parseText(t, "script { fun main() { } }\n")
	if err == nil {
		t.Fatalf("non-module declaration accepted")
	}
	if !strings.Contains(err.Error(), "module headers only") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeclReaderUnbalancedBraces(t *testing.T) {
	_, err := parseText(t, "module 0x2::coin {\n    fun mint() {\n")
	if err == nil {
		t.Fatalf("unbalanced module body accepted")
	}
	if !strings.Contains(err.Error(), "unbalanced braces") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeclReaderMalformedHeader(t *testing.T) {
	for _, text := range []string{
		"module coin {\n}\n",       // no :: separator
		"module 0x2:: {\n}\n",      // missing name
		"module 0x2::coin\n",       // missing body
		"module ::coin {\n}\n",     // missing address
	} {
		if _, err := parseText(t, text); err == nil {
			t.Errorf("malformed header accepted: %q", text)
		}
	}
}

func TestDeclReaderEmptyFile(t *testing.T) {
	defs, err := parseText(t, "// nothing here\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("got %d definitions from an empty file", len(defs))
	}
}
