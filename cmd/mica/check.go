package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [path]",
	Short: "Resolve and validate a mica package without emitting units",
	Args:  cobra.MaximumNArgs(1),
	RunE:  checkExecution,
}

func checkExecution(cmd *cobra.Command, args []string) error {
	bc, err := newBuildContext(cmd, args)
	if err != nil {
		return err
	}
	res, err := bc.comp.Check()
	if err != nil {
		return err
	}
	if err := bc.reportResult(res); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "checked %s\n", bc.manifest.Config.Package.Name)
	return nil
}
