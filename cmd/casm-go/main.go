// Command casm-go drives the CASM engine through its C API.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/prisms-center/casm-go/pkg/casm"
)

// exitError carries a process exit code, normally a casm Status.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type app struct {
	stdout io.Writer
	stderr io.Writer

	opts globalOptions
	open func(casm.Config) (*casm.Library, error)
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr, open: casm.Open}
	if err := a.command().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "casm-go:", err)
		os.Exit(1)
	}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "casm-go",
		Short:         "Run CASM commands through libccasm",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	a.opts.register(root)

	root.AddCommand(
		a.locateCommand(),
		a.runCommand(),
		a.structuresCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the binding version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), casm.WrapperVersion())
			},
		},
	)
	return root
}

// library opens the native session with the resolved configuration.
func (a *app) library(cmd *cobra.Command) (*casm.Library, error) {
	cfg, err := a.opts.config(cmd)
	if err != nil {
		return nil, err
	}
	return a.open(cfg)
}
