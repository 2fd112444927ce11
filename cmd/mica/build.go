package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mica/internal/compiler"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [path]",
	Short: "Build a mica package",
	Long:  "Build a mica package using mica.toml as the entrypoint definition and write compiled units under build/.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().String("ui", "auto", "interactive progress (auto|on|off)")
	buildCmd.Flags().Bool("no-cache", false, "skip writing the compiled unit cache")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	bc, err := newBuildContext(cmd, args)
	if err != nil {
		return err
	}

	var res *compiler.Result
	if shouldUseUI(uiValue) {
		res, err = runBuildWithUI("mica build "+bc.manifest.Config.Package.Name, bc.comp)
	} else {
		res, err = bc.comp.Build()
	}
	if err != nil {
		return err
	}
	if err := bc.reportResult(res); err != nil {
		return err
	}

	outDir := filepath.Join(bc.manifest.Root, "build", bc.manifest.Config.Package.Name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for i := range res.Units {
		u := &res.Units[i]
		out := filepath.Join(outDir, unitFileName(u))
		if err := os.WriteFile(out, u.Bytes, 0o644); err != nil {
			return err
		}
	}

	if !noCache {
		if err := warmUnitCache(bc, res.Units); err != nil {
			// cache trouble never fails a successful build
			fmt.Fprintf(os.Stderr, "warning: unit cache: %v\n", err)
		}
	}

	fmt.Fprintf(os.Stdout, "built %d unit(s) into %s\n", len(res.Units), outDir)
	return nil
}

func unitFileName(u *compiler.CompiledUnit) string {
	return strings.ReplaceAll(u.Key(), "::", "_") + ".micb"
}

// warmUnitCache stores the built units keyed by a digest of the package
// sources, so sibling tooling can fetch them without rebuilding.
func warmUnitCache(bc *buildContext, units []compiler.CompiledUnit) error {
	paths, err := bc.manifest.SourcePaths()
	if err != nil {
		return err
	}
	h := sha256.New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(data)
	}
	cache, err := compiler.NewUnitCache("")
	if err != nil {
		return err
	}
	return cache.Put(hex.EncodeToString(h.Sum(nil)), units)
}

func shouldUseUI(mode string) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}
