package compiler

import (
	"bytes"
	"encoding/binary"
	"sort"

	"mica/internal/diag"
	"mica/internal/expansion"
	"mica/internal/shared"
	"mica/internal/source"
)

// The stages after expansion are represented as opaque wrappers here. Each
// carries its predecessor so a later pass (or a replacement lowering plugged
// in through PassFuncs) can reach the resolved program.

type NamingProgram struct {
	Inner *expansion.Program
}

type TypedProgram struct {
	Inner *NamingProgram
}

type HLProgram struct {
	Inner *TypedProgram
}

type CFGProgram struct {
	Inner *HLProgram
}

// Resolved walks back to the alias-free program the later stages lower.
func (p *CFGProgram) Resolved() *expansion.Program {
	return p.Inner.Inner.Inner.Inner
}

// CompiledUnit is one emitted module or script. Bytes is the serialized
// unit; Source names the package it came from.
type CompiledUnit struct {
	Package  string `msgpack:"package"`
	Address  string `msgpack:"address"`
	Name     string `msgpack:"name"`
	IsScript bool   `msgpack:"is_script"`
	Bytes    []byte `msgpack:"bytes"`
}

// Key is the unit's stable identity, used for ordering and interface file
// names.
func (u *CompiledUnit) Key() string {
	if u.IsScript {
		return u.Name
	}
	return u.Address + "::" + u.Name
}

// Visitor observes the resolved program right after the alias-resolution
// stage, before the gate out of it is checked.
type Visitor func(env *shared.CompilationEnv, prog *expansion.Program)

// TestPlanHook runs after control-flow lowering when unit tests are being
// compiled.
type TestPlanHook func(env *shared.CompilationEnv, prog *CFGProgram)

// PassFuncs are the pluggable lowerings for the stages past alias
// resolution. Zero-value fields fall back to the defaults.
type PassFuncs struct {
	Naming  func(env *shared.CompilationEnv, prog *expansion.Program) *NamingProgram
	Typing  func(env *shared.CompilationEnv, prog *NamingProgram) *TypedProgram
	HLIR    func(env *shared.CompilationEnv, prog *TypedProgram) *HLProgram
	CFGIR   func(env *shared.CompilationEnv, prog *HLProgram) *CFGProgram
	Compile func(env *shared.CompilationEnv, prog *CFGProgram) []CompiledUnit
}

func (f PassFuncs) withDefaults() PassFuncs {
	out := f
	if out.Naming == nil {
		out.Naming = func(_ *shared.CompilationEnv, p *expansion.Program) *NamingProgram {
			return &NamingProgram{Inner: p}
		}
	}
	if out.Typing == nil {
		out.Typing = func(_ *shared.CompilationEnv, p *NamingProgram) *TypedProgram {
			return &TypedProgram{Inner: p}
		}
	}
	if out.HLIR == nil {
		out.HLIR = func(_ *shared.CompilationEnv, p *TypedProgram) *HLProgram {
			return &HLProgram{Inner: p}
		}
	}
	if out.CFGIR == nil {
		out.CFGIR = func(_ *shared.CompilationEnv, p *HLProgram) *CFGProgram {
			return &CFGProgram{Inner: p}
		}
	}
	if out.Compile == nil {
		out.Compile = defaultCompile
	}
	return out
}

// Serialized unit format. The magic prefix is what interface generation
// sniffs to tell compiled dependencies from source files.
var unitMagic = [4]byte{'M', 'I', 'C', 'B'}

const unitFormatVersion uint16 = 1

// defaultCompile emits one unit per source module and per script, in
// deterministic key order. Dependency modules are resolved but not emitted.
func defaultCompile(_ *shared.CompilationEnv, prog *CFGProgram) []CompiledUnit {
	resolved := prog.Resolved()
	var units []CompiledUnit
	resolved.Modules.Each(func(_ string, _ source.Span, m *expansion.ModuleDefinition) {
		if !m.IsSourceModule {
			return
		}
		u := CompiledUnit{
			Package: m.PackageName,
			Address: m.Ident.Address.Key(),
			Name:    m.Ident.Module.Value,
		}
		u.Bytes = encodeUnit(&u)
		units = append(units, u)
	})
	scriptNames := make([]string, 0, len(resolved.Scripts))
	for name := range resolved.Scripts {
		scriptNames = append(scriptNames, name)
	}
	sort.Strings(scriptNames)
	for _, name := range scriptNames {
		s := resolved.Scripts[name]
		u := CompiledUnit{
			Package:  s.PackageName,
			Name:     name,
			IsScript: true,
		}
		u.Bytes = encodeUnit(&u)
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Key() < units[j].Key() })
	return units
}

// encodeUnit lays out the unit header: magic, format version, script flag,
// then length-prefixed address and name.
func encodeUnit(u *CompiledUnit) []byte {
	var buf bytes.Buffer
	buf.Write(unitMagic[:])
	var ver [2]byte
	binary.BigEndian.PutUint16(ver[:], unitFormatVersion)
	buf.Write(ver[:])
	if u.IsScript {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeLenPrefixed(&buf, u.Address)
	writeLenPrefixed(&buf, u.Name)
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

// decodeUnitHeader reads back an encoded unit's identity. ok is false when
// the bytes are not a serialized unit.
func decodeUnitHeader(b []byte) (addr, name string, isScript bool, ok bool) {
	if len(b) < 7 || !bytes.Equal(b[:4], unitMagic[:]) {
		return "", "", false, false
	}
	isScript = b[6] == 1
	rest := b[7:]
	addr, rest, ok = readLenPrefixed(rest)
	if !ok {
		return "", "", false, false
	}
	name, _, ok = readLenPrefixed(rest)
	if !ok {
		return "", "", false, false
	}
	return addr, name, isScript, true
}

func readLenPrefixed(b []byte) (string, []byte, bool) {
	if len(b) < 4 {
		return "", nil, false
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, false
	}
	return string(b[:n]), b[n:], true
}

// warningsOrEmpty keeps result fields non-nil for callers that iterate.
func warningsOrEmpty(b *diag.Bag) *diag.Bag {
	if b == nil {
		return diag.NewBag()
	}
	return b
}
