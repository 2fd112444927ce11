package main

import (
	"fmt"
	"os"
	"strings"

	"mica/internal/ast"
	"mica/internal/shared"
	"mica/internal/source"
)

// The CLI carries a declaration-level reader, not a full parser: it
// recognizes top-level `module <address>::<name> { ... }` headers (the exact
// shape of generated dependency interfaces) and skips over the balanced
// body. Tooling embedding the compiler supplies a real parser through
// compiler.ParseFn.

// declReader loads files into a shared FileSet so diagnostics can render
// snippets.
type declReader struct {
	fset *source.FileSet
}

func newDeclReader(fset *source.FileSet) *declReader {
	return &declReader{fset: fset}
}

// Parse reads one file and returns its module declarations.
func (r *declReader) Parse(_ *shared.CompilationEnv, path string) ([]ast.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	file := r.fset.Add(path, text)
	s := &declScanner{src: text, file: file}
	var defs []ast.Definition
	for {
		s.skipTrivia()
		if s.eof() {
			return defs, nil
		}
		kwStart := s.pos
		kw := s.ident()
		if kw != "module" {
			return nil, fmt.Errorf("%s: unsupported declaration %q (the CLI reads module headers only)", path, kw)
		}
		def, err := s.moduleHeader(path, kwStart)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
}

type declScanner struct {
	src  string
	pos  int
	file source.FileID
}

func (s *declScanner) eof() bool { return s.pos >= len(s.src) }

func (s *declScanner) span(start int) source.Span {
	return source.Span{File: s.file, Start: uint32(start), End: uint32(s.pos)}
}

func (s *declScanner) skipTrivia() {
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case strings.HasPrefix(s.src[s.pos:], "//"):
			if i := strings.IndexByte(s.src[s.pos:], '\n'); i >= 0 {
				s.pos += i + 1
			} else {
				s.pos = len(s.src)
			}
		case strings.HasPrefix(s.src[s.pos:], "/*"):
			if i := strings.Index(s.src[s.pos+2:], "*/"); i >= 0 {
				s.pos += i + 4
			} else {
				s.pos = len(s.src)
			}
		default:
			return
		}
	}
}

func isIdentByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && c >= '0' && c <= '9'
}

func (s *declScanner) ident() string {
	start := s.pos
	for !s.eof() && isIdentByte(s.src[s.pos], s.pos == start) {
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *declScanner) expect(tok string) error {
	if !strings.HasPrefix(s.src[s.pos:], tok) {
		return fmt.Errorf("expected %q at offset %d", tok, s.pos)
	}
	s.pos += len(tok)
	return nil
}

// moduleHeader parses `<address>::<name> { ... }` after the module keyword,
// skipping the balanced body.
func (s *declScanner) moduleHeader(path string, kwStart int) (ast.Definition, error) {
	s.skipTrivia()
	leading, err := s.leadingName()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.skipTrivia()
	if err := s.expect("::"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.skipTrivia()
	nameStart := s.pos
	name := s.ident()
	if name == "" {
		return nil, fmt.Errorf("%s: expected module name at offset %d", path, s.pos)
	}
	nameSpan := s.span(nameStart)
	s.skipTrivia()
	if err := s.expect("{"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	depth := 1
	for depth > 0 {
		s.skipTrivia()
		if s.eof() {
			return nil, fmt.Errorf("%s: unbalanced braces in module %s", path, name)
		}
		switch s.src[s.pos] {
		case '{':
			depth++
		case '}':
			depth--
		}
		s.pos++
	}
	return &ast.ModuleDefinition{
		Loc:     s.span(kwStart),
		Address: &leading,
		Name:    source.Name{Value: name, Span: nameSpan},
	}, nil
}

func (s *declScanner) leadingName() (ast.LeadingNameAccess, error) {
	start := s.pos
	if strings.HasPrefix(s.src[s.pos:], "0x") {
		s.pos += 2
		for !s.eof() && isHexByte(s.src[s.pos]) {
			s.pos++
		}
		addr, err := shared.ParseNumericalAddress(s.src[start:s.pos])
		if err != nil {
			return ast.LeadingNameAccess{}, err
		}
		a := addr
		return ast.LeadingNameAccess{Loc: s.span(start), Anon: &a}, nil
	}
	name := s.ident()
	if name == "" {
		return ast.LeadingNameAccess{}, fmt.Errorf("expected address at offset %d", s.pos)
	}
	return ast.LeadingNameAccess{Loc: s.span(start), Name: name}, nil
}

func isHexByte(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
