package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/pkg/store"
)

// snapshotCommand groups the snapshot subcommands.
func (c *CLI) snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and manage package set snapshots",
		Long: `Snapshots store a loaded package set so it can be queried later with
--snapshot, without the aports tree. Refer to a snapshot by its ID, a
unique ID prefix, its name or "latest".`,
	}
	cmd.AddCommand(c.snapshotSaveCommand())
	cmd.AddCommand(c.snapshotListCommand())
	cmd.AddCommand(c.snapshotShowCommand())
	cmd.AddCommand(c.snapshotDeleteCommand())
	return cmd
}

func (c *CLI) snapshotSaveCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the current package set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := newProgress(loggerFromContext(ctx))
			res, err := c.load(ctx)
			if err != nil {
				return err
			}
			var root, fingerprint string
			var repos []string
			if res.Scan != nil {
				root, repos, fingerprint = res.Scan.Root, res.Scan.Repositories, res.Scan.Fingerprint
			}
			snap := store.NewSnapshot(name, root, repos, fingerprint, res.Packages)

			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Save(ctx, snap); err != nil {
				return err
			}
			p.done("Snapshot written")
			printSuccess("Saved snapshot %s", snap.ID)
			printDetail("%d packages", snap.PackageCount)
			printNextStep("Query it with", "depmap stats --snapshot "+snapshotRef(snap.Summary))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "snapshot name")
	return cmd
}

func (c *CLI) snapshotListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved snapshots, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			list, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, list)
			}
			if len(list) == 0 {
				printInfo("No snapshots")
				return nil
			}
			rows := make([][]string, len(list))
			for i, s := range list {
				rows[i] = []string{s.ID[:min(8, len(s.ID))], s.Name, s.CreatedAt.Local().Format(time.DateTime),
					strconv.Itoa(s.PackageCount), strings.Join(s.Repositories, ",")}
			}
			writeTable(w, []string{"ID", "Name", "Created", "Packages", "Repositories"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func (c *CLI) snapshotShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show snapshot details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			snap, err := store.Resolve(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			writeKeyValue(w, "ID", snap.ID)
			if snap.Name != "" {
				writeKeyValue(w, "Name", snap.Name)
			}
			writeKeyValue(w, "Created", snap.CreatedAt.Local().Format(time.DateTime))
			writeKeyValue(w, "Packages", strconv.Itoa(snap.PackageCount))
			if snap.Root != "" {
				writeKeyValue(w, "Root", snap.Root)
			}
			if len(snap.Repositories) > 0 {
				writeKeyValue(w, "Repositories", strings.Join(snap.Repositories, ", "))
			}
			if snap.Fingerprint != "" {
				writeKeyValue(w, "Fingerprint", snap.Fingerprint)
			}
			return nil
		},
	}
}

func (c *CLI) snapshotDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <ref>",
		Aliases: []string{"rm"},
		Short:   "Delete a snapshot",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			snap, err := store.Resolve(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if err := st.Delete(cmd.Context(), snap.ID); err != nil {
				return err
			}
			printSuccess("Deleted snapshot %s", snap.ID)
			return nil
		},
	}
}

func snapshotRef(s store.Summary) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
