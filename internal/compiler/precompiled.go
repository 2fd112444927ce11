package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/expansion"
	"mica/internal/shared"
)

// FullyCompiledProgram holds one snapshot of every pipeline stage for a
// dependency library compiled ahead of time. Later compilations reuse the
// parser-stage snapshot as dependency input, which resolves to the same
// modules the library was built from.
type FullyCompiledProgram struct {
	Parser    *ast.Program
	Expansion *expansion.Program
	Naming    *NamingProgram
	Typing    *TypedProgram
	HLIR      *HLProgram
	CFGIR     *CFGProgram
	Compiled  []CompiledUnit
}

// ConstructPreCompiledLib compiles dependency-only sources through the full
// pipeline, snapshotting every stage. A failed gate returns the diagnostic
// bag instead of a library.
func ConstructPreCompiledLib(deps []shared.PackagePaths, parse ParseFn, flags shared.Flags) (*FullyCompiledProgram, *diag.Bag, error) {
	return constructPreCompiledLib(New(deps, nil, parse).WithFlags(flags))
}

// ConstructPreCompiledLibFromProgram is the pre-assembled-program variant.
func ConstructPreCompiledLibFromProgram(prog *ast.Program, flags shared.Flags) (*FullyCompiledProgram, *diag.Bag, error) {
	return constructPreCompiledLib(NewFromProgram(prog).WithFlags(flags))
}

func constructPreCompiledLib(c *Compiler) (*FullyCompiledProgram, *diag.Bag, error) {
	pre := &FullyCompiledProgram{}
	seen := make(map[Stage]bool)
	hook := func(stage Stage, p *Program) {
		if seen[stage] {
			panic(fmt.Sprintf("ICE duplicate snapshot for stage %s", stage))
		}
		seen[stage] = true
		switch stage {
		case StageParser:
			pre.Parser = p.Parser
		case StageExpansion:
			pre.Expansion = p.Expansion
		case StageNaming:
			pre.Naming = p.Naming
		case StageTyping:
			pre.Typing = p.Typing
		case StageHLIR:
			pre.HLIR = p.HLIR
		case StageCFGIR:
			pre.CFGIR = p.CFGIR
		case StageCompilation:
			pre.Compiled = p.Units
		}
	}
	res, err := c.run(StageCompilation, hook)
	if err != nil {
		return nil, nil, err
	}
	if res.Failed() {
		return nil, res.Failure, nil
	}
	return pre, nil, nil
}

// Unit bundle cache. Compiled units for a fixed input set are cached on
// disk, keyed by a content hash, so unchanged dependency libraries skip
// recompilation. Intermediate ASTs are process-lifetime only and never hit
// disk.

const bundleSchemaVersion uint32 = 1

const bundleExt = ".mp"

type bundlePayload struct {
	Schema uint32         `msgpack:"schema"`
	Units  []CompiledUnit `msgpack:"units"`
}

// UnitCache is a directory of msgpack unit bundles, one file per hex key.
// Safe for concurrent use within a process; cross-process writers stay
// consistent through atomic renames.
type UnitCache struct {
	mu  sync.RWMutex
	dir string
}

// DefaultCacheDir resolves the per-user cache root, honoring XDG_CACHE_HOME.
func DefaultCacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "mica"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "mica"), nil
}

// NewUnitCache opens (creating if needed) a cache rooted at dir; an empty
// dir selects the default per-user location.
func NewUnitCache(dir string) (*UnitCache, error) {
	if dir == "" {
		var err error
		dir, err = DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}
	dir = filepath.Join(dir, "units")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &UnitCache{dir: dir}, nil
}

func (c *UnitCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+bundleExt)
}

// Get loads the bundle for key. A missing file or a schema mismatch is a
// miss, not an error; stale-schema files are left for Put to overwrite.
func (c *UnitCache) Get(key string) ([]CompiledUnit, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	var payload bundlePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, nil
	}
	if payload.Schema != bundleSchemaVersion {
		return nil, false, nil
	}
	return payload.Units, true, nil
}

// Put writes the bundle through a temp file and an atomic rename, so
// readers never observe a partial bundle.
func (c *UnitCache) Put(key string, units []CompiledUnit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tmp, err := os.CreateTemp(c.dir, "bundle-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	payload := bundlePayload{Schema: bundleSchemaVersion, Units: units}
	if err := msgpack.NewEncoder(tmp).Encode(&payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, c.pathFor(key))
}
