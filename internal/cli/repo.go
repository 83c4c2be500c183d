package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/repository"
	"github.com/yarmol/bnd/pkg/version"
)

// repoCommand creates the repository inspection command.
func (c *CLI) repoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Inspect and fetch from index repositories",
	}

	cmd.AddCommand(c.repoListCommand())
	cmd.AddCommand(c.repoFetchCommand())

	return cmd
}

// repoListCommand creates the "repo list" subcommand.
func (c *CLI) repoListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [index.json]",
		Short: "List the resources of a local index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repository.LoadIndexFile(args[0])
			if err != nil {
				return err
			}

			resources := repo.Resources()
			printKeyValue("repository", repo.Name())
			printKeyValue("resources", fmt.Sprintf("%d", len(resources)))
			printNewline()
			for _, res := range resources {
				caps := len(res.Capabilities(""))
				reqs := len(res.Requirements(""))
				printResource(resourceSummary(res), false)
				printDetail("%d capabilities, %d requirements", caps, reqs)
			}
			return nil
		},
	}
}

// repoFetchCommand creates the "repo fetch" subcommand.
func (c *CLI) repoFetchCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch [index.json] [identity] [version]",
		Short: "Fetch a resource's content from a local index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repository.LoadIndexFile(args[0])
			if err != nil {
				return err
			}
			v, err := version.Parse(args[2])
			if err != nil {
				return err
			}

			rc, err := repo.Fetch(cmd.Context(), args[1], v)
			if err != nil {
				return err
			}
			defer rc.Close()

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			n, err := io.Copy(out, rc)
			if err != nil {
				return err
			}
			if output != "" {
				printSuccess("Fetched %s/%s (%d bytes)", args[1], v, n)
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write content to file instead of stdout")

	return cmd
}

// resourceSummary is used by repo list to keep identity formatting in one
// place when a resource lacks an identity capability.
func resourceSummary(res *capability.Resource) string {
	if name := res.IdentityName(); name != "" {
		return res.String()
	}
	return "<no identity>"
}
