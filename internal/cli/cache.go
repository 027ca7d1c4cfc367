package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/internal/config"
	"github.com/matzehuels/depmap/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the scan cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == config.BackendNone {
				printInfo("Caching is disabled")
				return nil
			}
			sc, err := cfg.OpenCache(cmd.Context(), c.Logger)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer sc.Close()

			count, err := cache.Clear(cmd.Context(), sc)
			if err != nil {
				return err
			}
			printSuccess("Cleared %d cached entries", count)
			if _, ok := sc.(*cache.FileCache); ok {
				printDetail("Directory: %s", cfg.Cache.Dir)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Dir)
			return nil
		},
	}
}

// configCommand prints the effective configuration.
func (c *CLI) configCommand() *cobra.Command {
	var pathOnly bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Config prints the settings in effect after merging the config file,
a .env file in the working directory and DEPMAP_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pathOnly {
				path := c.configPath
				if path == "" {
					path = config.Path()
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&pathOnly, "path", false, "print the config file location")
	return cmd
}
