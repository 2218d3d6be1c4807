package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/internal/config"
	"github.com/nieksand/pman/internal/vaultfile"
)

// mergeCmd folds a second vault into the current one.
var mergeCmd = &cobra.Command{
	Use:   "merge <other-vault>",
	Short: "Merge another vault into this one, keeping the newest records",
	Long: `Copy credentials from another vault into this one.

Names missing here are added. For names present in both vaults the record
with the later update time wins; on a tie this vault's record is kept. The
other vault is never modified. The result stays encrypted with this vault's
password.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		otherPath, err := config.ExpandHome(args[0])
		if err != nil {
			return err
		}
		otherBlob, err := vaultfile.Read(otherPath)
		if err != nil {
			return err
		}
		otherPassword, err := prompter.Password("second vault password: ")
		if err != nil {
			return err
		}
		defer otherPassword.Destroy()

		sealed, report, err := store.Merge(blob, password.Bytes(), otherBlob, otherPassword.Bytes())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range report.Added {
			fmt.Fprintf(out, "add:  %s\n", name)
		}
		for _, name := range report.Updated {
			fmt.Fprintf(out, "pull: %s\n", name)
		}
		for _, name := range report.Skipped {
			fmt.Fprintf(out, "skip: %s\n", name)
		}

		if !report.Changed() {
			fmt.Fprintln(out, "nothing to merge, vault unchanged")
			return nil
		}
		if err := vaultfile.Write(path, sealed); err != nil {
			return err
		}
		fmt.Fprintf(out, "merged %d added, %d updated\n", len(report.Added), len(report.Updated))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
