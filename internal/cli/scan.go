package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/deps/apkbuild"
	"github.com/matzehuels/depmap/pkg/deps/aports"
	"github.com/matzehuels/depmap/pkg/integrations/gitlab"
	"github.com/matzehuels/depmap/pkg/io"
	"github.com/matzehuels/depmap/pkg/pipeline"
)

// scanCommand scans the tree, reports statistics and optionally exports
// the package set.
func (c *CLI) scanCommand() *cobra.Command {
	var (
		output     string
		showErrors bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan an aports tree and build its dependency graph",
		Long: `Scan parses every APKBUILD under the aports root in parallel and builds
the dependency graph. Results are cached, keyed on the size and mtime of
every descriptor, so an unchanged tree loads instantly the next time.

Descriptors that fail to parse are skipped and counted.`,
		Example: `  depmap scan --aports ~/aports --repos main,community
  depmap scan -o packages.json
  depmap --from packages.json stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			printSuccess("Dependency graph ready")
			printStats(res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.Unresolved, res.Source == pipeline.SourceCache)
			if s := res.Scan; s != nil {
				writeKeyValue(w, "Root", s.Root)
				writeKeyValue(w, "Repositories", fmt.Sprint(s.Repositories))
				writeKeyValue(w, "Files", fmt.Sprint(s.Stats.Files))
				writeKeyValue(w, "Parsed", fmt.Sprint(s.Stats.Parsed))
				writeKeyValue(w, "Failed", fmt.Sprint(s.Stats.Failed))
				writeKeyValue(w, "Scan time", s.Stats.Duration.Round(time.Millisecond).String())
				if showErrors && len(s.Errors) > 0 {
					rows := make([][]string, len(s.Errors))
					for i, e := range s.Errors {
						rows[i] = []string{e.Path, string(e.Code), e.Message}
					}
					writeTable(w, []string{"File", "Code", "Error"}, rows)
				} else if s.Stats.Failed > 0 {
					printDetail("Run with --errors to list the %d failed descriptors", s.Stats.Failed)
				}
			}
			writeKeyValue(w, "Packages", fmt.Sprint(res.Stats.NodeCount))
			writeKeyValue(w, "Edges", fmt.Sprint(res.Stats.EdgeCount))
			writeKeyValue(w, "Unresolved", fmt.Sprint(res.Stats.Unresolved))

			if output != "" {
				if err := io.ExportPackages(res.Packages, output); err != nil {
					return err
				}
				printFile(output)
				printNextStep("Query it", "depmap --from "+output+" stats")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the package set as JSON")
	cmd.Flags().BoolVar(&showErrors, "errors", false, "list descriptors that failed to parse")
	return cmd
}

// parseCommand parses a single descriptor without scanning the tree.
func (c *CLI) parseCommand() *cobra.Command {
	var (
		remote  bool
		ref     string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "parse <APKBUILD | repo/pkg | pkg>",
		Short: "Parse one APKBUILD and print the packages it declares",
		Long: `Parse prints the package records one descriptor yields: the primary
package followed by its sub-packages. The argument is a path to an
APKBUILD file, or a package directory looked up under the aports root.

With --remote the descriptor is downloaded from the aports GitLab project
instead (argument "repo/pkg") and cached like scan results.`,
		Example: `  depmap parse ./main/curl/APKBUILD
  depmap parse main/curl --aports ~/aports
  depmap parse --remote community/git --ref 3.19-stable`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pkgs []deps.Package
				err  error
			)
			if remote {
				pkgs, err = c.parseRemote(cmd, args[0], ref, baseURL)
			} else {
				pkgs, err = c.parseOne(cmd, args[0])
			}
			if err != nil {
				return err
			}
			return io.WritePackages(pkgs, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the descriptor from GitLab")
	cmd.Flags().StringVar(&ref, "ref", gitlab.DefaultRef, "branch or tag for --remote")
	cmd.Flags().StringVar(&baseURL, "gitlab-url", gitlab.DefaultBaseURL, "GitLab instance for --remote")
	return cmd
}

func (c *CLI) parseOne(cmd *cobra.Command, arg string) ([]deps.Package, error) {
	if fi, err := os.Stat(arg); err == nil && fi.Mode().IsRegular() {
		return apkbuild.ParseFile(arg, apkbuild.RepositoryFromPath(arg))
	}
	opts, err := c.options()
	if err != nil {
		return nil, err
	}
	s, err := aports.New(opts.Root, aports.Options{Repositories: opts.Repositories, Vars: opts.Vars, Logger: c.Logger})
	if err != nil {
		return nil, err
	}
	return s.ScanSingle(cmd.Context(), arg)
}

func (c *CLI) parseRemote(cmd *cobra.Command, arg, ref, baseURL string) ([]deps.Package, error) {
	repo, name, err := gitlab.SplitRef(arg)
	if err != nil {
		return nil, err
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	var backend cache.Cache = cache.NewNullCache()
	if !c.src.noCache {
		if backend, err = cfg.OpenCache(cmd.Context(), c.Logger); err != nil {
			return nil, err
		}
	}
	defer backend.Close()

	client := gitlab.NewClient(backend, gitlab.Options{BaseURL: baseURL, TTL: cfg.Cache.TTL})
	spinner := newSpinnerWithContext(cmd.Context(), "Fetching "+client.RawURL(repo, name, ref)+"...")
	spinner.Start()
	pkgs, err := client.FetchPackages(cmd.Context(), repo, name, ref, c.src.refresh)
	if err != nil {
		spinner.Stop()
		return nil, err
	}
	spinner.StopWithSuccess("Fetched " + repo + "/" + name)
	return pkgs, nil
}
