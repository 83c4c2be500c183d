package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/render"
	"github.com/yarmol/bnd/pkg/resolver"
	"github.com/yarmol/bnd/pkg/solver"
)

// Output formats for the resolve command.
const (
	formatText = "text"
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatPNG  = "png"
)

var resolveFormats = []string{formatText, formatDOT, formatSVG, formatPNG}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		repoSources []string
		formatsStr  string
		output      string
		detailed    bool
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [runfile.toml]",
		Short: "Resolve a runfile against its repositories",
		Long: `Resolve a runfile against its repositories.

The runfile declares the top-level requirements, the framework, the
selection policy (blacklist, preferences, effective tags) and the
repositories to consult. Repositories listed in the runfile are local
index files or http(s) index URLs; --repo overrides the list.

On success the resolved resources print grouped into required and
optional. With --format dot, svg or png, the wiring graph is also
written next to the runfile (or to --output).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := parseFormats(formatsStr)
			for _, f := range formats {
				if !slices.Contains(resolveFormats, f) {
					return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (valid: %s)", f, strings.Join(resolveFormats, ", "))
				}
			}
			return c.runResolve(cmd.Context(), args[0], repoSources, formats, output, detailed, noCache)
		},
	}

	cmd.Flags().StringArrayVarP(&repoSources, "repo", "r", nil, "index file or URL (repeatable, overrides runfile repositories)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): text (default), dot, svg, png (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include requirement filters in graph edge labels")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable HTTP index caching")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, runfile string, repoSources, formats []string, output string, detailed, noCache bool) error {
	model, err := resolver.LoadRunFile(runfile)
	if err != nil {
		return err
	}

	sources := repoSources
	if len(sources) == 0 {
		sources = model.Repositories
	}
	if len(sources) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no repositories: add a repositories list to %s or pass --repo", runfile)
	}
	repos, err := c.openRepositories(sources, noCache)
	if err != nil {
		return err
	}

	rc := resolver.NewContext(model, repos, resolver.WithLogger(c.Logger))
	proc := resolver.NewProcess(solver.New(), resolver.WithProcessLogger(c.Logger))

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, "Resolving...")
	spinner.Start()

	result, err := proc.Resolve(ctx, rc)
	if err != nil {
		spinner.StopWithError("Resolution failed")
		printUnresolved(err)
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Resolved %d resources", len(result.RequiredResources())))

	for _, format := range formats {
		if format == formatText {
			printResult(result)
			printNextStep("Render the wiring graph", fmt.Sprintf("%s resolve %s -f svg", appName, runfile))
			continue
		}
		path := outputPath(runfile, output, format, len(formats) > 1)
		if err := writeGraph(ctx, result, format, path, detailed); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

// printUnresolved lists the requirements a failed resolution could not
// satisfy, one detail line each.
func printUnresolved(err error) {
	var rerr *resolver.ResolutionError
	if !stderrors.As(err, &rerr) {
		return
	}
	for _, req := range rerr.Unresolved {
		printDetail("missing %s", fmtRequirement(req))
	}
}

func fmtRequirement(req *capability.Requirement) string {
	if f := req.Filter(); f != "" {
		return fmt.Sprintf("%s %s", req.Namespace(), f)
	}
	return req.Namespace()
}

func printResult(result *resolver.Result) {
	required := result.RequiredResources()
	optional := result.OptionalResources()

	printNewline()
	for _, res := range required {
		printResource(res.String(), false)
	}
	for _, res := range optional {
		printResource(res.String(), true)
	}
	printStats(len(required), len(optional))
}

// outputPath picks the file to write for one format. With multiple formats
// the explicit output acts as a base path and gets the format extension.
func outputPath(runfile, output, format string, multi bool) string {
	if output != "" {
		if multi {
			return output + "." + format
		}
		return output
	}
	base := strings.TrimSuffix(runfile, filepath.Ext(runfile))
	return base + "." + format
}

func writeGraph(ctx context.Context, result *resolver.Result, format, path string, detailed bool) error {
	dot := render.ToDOT(result, render.Options{Detailed: detailed})

	var data []byte
	var err error
	switch format {
	case formatDOT:
		data = []byte(dot)
	case formatSVG:
		data, err = render.RenderSVG(ctx, dot)
	case formatPNG:
		data, err = render.RenderPNG(ctx, dot)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
