package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mica/internal/compiler"
	"mica/internal/diag"
	"mica/internal/project"
	"mica/internal/shared"
	"mica/internal/source"
)

const noManifestMessage = "no mica.toml found\nrun from inside a package or pass its directory, e.g.:\n  mica check path/to/package"

// buildContext bundles everything one command invocation needs: the located
// manifest, the file set backing diagnostic snippets, and a configured
// compiler.
type buildContext struct {
	manifest *project.Manifest
	fset     *source.FileSet
	comp     *compiler.Compiler
}

func newBuildContext(cmd *cobra.Command, args []string) (*buildContext, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	manifestPath, found, err := project.Find(dir)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(noManifestMessage)
	}
	manifest, err := project.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	target, err := manifest.TargetGroup()
	if err != nil {
		return nil, err
	}
	deps, err := manifest.DependencyGroups()
	if err != nil {
		return nil, err
	}

	testMode, err := cmd.Root().PersistentFlags().GetBool("test")
	if err != nil {
		return nil, err
	}
	keepDepWarnings, err := cmd.Root().PersistentFlags().GetBool("keep-warnings-on-deps")
	if err != nil {
		return nil, err
	}
	flags := shared.Flags{Test: testMode, KeepWarningsOnDeps: keepDepWarnings}

	fset := source.NewFileSet()
	reader := newDeclReader(fset)
	comp := compiler.New([]shared.PackagePaths{target}, deps, reader.Parse).
		WithFlags(flags).
		WithInterfaceFilesDir(filepath.Join(manifest.Root, "build", "interfaces"))
	return &buildContext{manifest: manifest, fset: fset, comp: comp}, nil
}

// reportResult renders diagnostics and converts a gated run into a command
// error.
func (bc *buildContext) reportResult(res *compiler.Result) error {
	if res.Failed() {
		diag.Render(os.Stderr, bc.fset, res.Failure)
		n := res.Failure.CountAtOrAbove(diag.SevNonblockingError)
		return fmt.Errorf("failed with %d error(s)", n)
	}
	if res.Warnings != nil && !res.Warnings.IsEmpty() {
		diag.Render(os.Stderr, bc.fset, res.Warnings)
	}
	return nil
}
