package compiler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mica/internal/shared"
)

// InterfaceExt is the extension of generated dependency interface sources.
const InterfaceExt = ".mica"

// substituteCompiledDeps scans dependency paths for serialized units and
// replaces each with a generated interface source. Interfaces for one
// dependency set live together under a directory keyed by a hash of the
// set's contents, so any change to any compiled dependency lands in a fresh
// directory.
func substituteCompiledDeps(deps []shared.PackagePaths, root string) ([]shared.PackagePaths, error) {
	type compiledFile struct {
		path string
		data []byte
	}
	var compiled []compiledFile
	for _, g := range deps {
		for _, p := range g.Paths {
			data, ok, err := sniffUnitFile(p)
			if err != nil {
				return nil, err
			}
			if ok {
				compiled = append(compiled, compiledFile{path: p, data: data})
			}
		}
	}
	if len(compiled) == 0 {
		return deps, nil
	}

	sort.Slice(compiled, func(i, j int) bool { return compiled[i].path < compiled[j].path })
	h := sha256.New()
	for _, cf := range compiled {
		h.Write([]byte(cf.path))
		h.Write([]byte{0})
		h.Write(cf.data)
	}
	dir := filepath.Join(root, hex.EncodeToString(h.Sum(nil))[:16])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	generated := make(map[string]string, len(compiled))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, cf := range compiled {
		cf := cf
		g.Go(func() error {
			out, err := writeInterfaceFile(dir, cf.path, cf.data)
			if err != nil {
				return err
			}
			mu.Lock()
			generated[cf.path] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]shared.PackagePaths, len(deps))
	for i, grp := range deps {
		ng := grp
		ng.Paths = make([]string, len(grp.Paths))
		for j, p := range grp.Paths {
			if ifc, ok := generated[p]; ok {
				ng.Paths[j] = ifc
			} else {
				ng.Paths[j] = p
			}
		}
		out[i] = ng
	}
	return out, nil
}

// sniffUnitFile reads the file and reports whether it starts with the unit
// magic. The contents are returned so the caller hashes each file once.
func sniffUnitFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if len(data) < len(unitMagic) || !bytes.Equal(data[:len(unitMagic)], unitMagic[:]) {
		return nil, false, nil
	}
	return data, true, nil
}

// writeInterfaceFile materializes the interface source for one serialized
// unit. Concurrent compilations may race on the same hash directory, so the
// protocol is check, write to a temp file, rename, check: the rename is
// atomic and losing a race is harmless since both writers produce identical
// bytes.
func writeInterfaceFile(dir, src string, data []byte) (string, error) {
	addr, name, isScript, ok := decodeUnitHeader(data)
	if !ok {
		return "", fmt.Errorf("malformed compiled unit %s", src)
	}
	if isScript {
		return "", fmt.Errorf("compiled script %s cannot be a dependency", src)
	}
	fname := strings.ReplaceAll(addr, "0x", "") + "_" + name + InterfaceExt
	out := filepath.Join(dir, fname)
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}
	tmp, err := os.CreateTemp(dir, "ifc-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(interfaceSource(addr, name)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, out); err != nil {
		return "", err
	}
	if _, err := os.Stat(out); err != nil {
		return "", err
	}
	return out, nil
}

// interfaceSource renders a module stub naming the dependency's identity.
// Bodies are not reconstructed; later passes only need the declaration to
// exist.
func interfaceSource(addr, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// generated interface for %s::%s, do not edit\n", addr, name)
	fmt.Fprintf(&b, "module %s::%s {\n}\n", addr, name)
	return b.String()
}
