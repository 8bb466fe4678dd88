package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prisms-center/casm-go/pkg/casm"
	"github.com/prisms-center/casm-go/pkg/casm/structure"
)

func (a *app) locateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Print the library paths derived from the casm executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.opts.config(cmd)
			if err != nil {
				return err
			}
			p, err := casm.Locate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if p.Executable != "" {
				fmt.Fprintf(w, "executable: %s\n", p.Executable)
			}
			fmt.Fprintf(w, "engine:     %s\n", p.Engine)
			fmt.Fprintf(w, "binding:    %s\n", p.Binding)
			return nil
		},
	}
}

func projectRoot(root string) (string, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

type capturedOutput struct {
	Args   string `json:"args"`
	Status int    `json:"status"`
	Name   string `json:"name"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

func (a *app) runCommand() *cobra.Command {
	var (
		root      string
		noProject bool
		capture   bool
	)
	cmd := &cobra.Command{
		Use:   "run [flags] -- <casm arguments>",
		Short: "Dispatch one casm command; the exit code is its status",
		Long: `Dispatch one casm command; the exit code is its status.

The project at --root is loaded first, except for init, help and format,
which run without a project context. When no project can be loaded the
command is still dispatched without one, so the engine reports its own
status (3 for a missing project). --no-project always skips the load.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := projectRoot(root)
			if err != nil {
				return err
			}
			lib, err := a.library(cmd)
			if err != nil {
				return err
			}

			line := joinArgs(args)
			var st casm.Status
			dispatch := func(p *casm.Project) error {
				if !capture {
					st, err = lib.Dispatch(line, p, abs, casm.Sinks{})
					return err
				}
				out, err := lib.Capture(line, p, abs, casm.CaptureOptions{})
				if err != nil {
					return err
				}
				st = out.Status
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(capturedOutput{
					Args:   line,
					Status: int(out.Status),
					Name:   out.Status.String(),
					Stdout: string(out.Stdout),
					Stderr: string(out.Stderr),
				})
			}

			if noProject || contextFree[args[0]] {
				err = dispatch(nil)
			} else {
				opened := false
				err = lib.WithProject(abs, casm.Sinks{}, func(p *casm.Project) error {
					opened = true
					return dispatch(p)
				})
				if !opened && errors.Is(err, casm.ErrNullHandle) {
					err = dispatch(nil)
				}
			}
			if err != nil {
				return err
			}
			if st != casm.StatusOK {
				return &exitError{code: int(st)}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&root, "root", "", "project root (default: current directory)")
	f.BoolVar(&noProject, "no-project", false, "dispatch without opening a project context")
	f.BoolVar(&capture, "capture", false, "capture output and print it as JSON")
	return cmd
}

// contextFree lists commands that never read a loaded project.
var contextFree = map[string]bool{
	"init":   true,
	"help":   true,
	"format": true,
}

func (a *app) structuresCommand() *cobra.Command {
	var (
		root      string
		names     []string
		selection string
		outputDir string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "structures",
		Short: "Write configuration structures as structure.casm.json files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(names) == 0 && selection == "" {
				return fmt.Errorf("one of --names or --selection is required")
			}
			abs, err := projectRoot(root)
			if err != nil {
				return err
			}
			dir := outputDir
			if dir == "" {
				dir = filepath.Join(abs, "training_data")
			}
			lib, err := a.library(cmd)
			if err != nil {
				return err
			}

			return lib.WithProject(abs, casm.Sinks{}, func(p *casm.Project) error {
				var recs []structure.Record
				if selection != "" {
					sel, err := structure.QuerySelection(lib, p, abs, selection)
					if err != nil {
						return err
					}
					recs = append(recs, sel...)
				}
				named, err := structure.QueryNames(lib, p, abs, names)
				if err != nil {
					return err
				}
				recs = append(recs, named...)

				files, err := structure.Export(dedupe(recs), dir, force)
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&root, "root", "", "project root (default: current directory)")
	f.StringSliceVar(&names, "names", nil, "configuration names to export")
	f.StringVar(&selection, "selection", "", "selection whose selected configurations are exported")
	f.StringVar(&outputDir, "output-dir", "", "output directory (default: <root>/training_data)")
	f.BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

// dedupe keeps the last record for each configuration name, in first-seen
// order.
func dedupe(recs []structure.Record) []structure.Record {
	idx := make(map[string]int, len(recs))
	out := make([]structure.Record, 0, len(recs))
	for _, r := range recs {
		if i, ok := idx[r.Name]; ok {
			out[i] = r
			continue
		}
		idx[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}

// joinArgs rebuilds a command line for the engine's shell-style tokeniser.
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
