package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/internal/vaultfile"
	"github.com/nieksand/pman/pkg/importer"
)

var (
	importFrom      string
	importOverwrite bool
	importDryRun    bool
)

// importCmd copies credentials from another password manager's export.
var importCmd = &cobra.Command{
	Use:   "import <export-file>",
	Short: "Import credentials from 1Password, Bitwarden or LastPass",
	Long: `Import credentials from an unencrypted export of another password manager.

Supported formats:
  1password   1Password CSV export
  bitwarden   Bitwarden JSON export (unencrypted)
  lastpass    LastPass CSV export

URLs, notes, tags and folders are kept in the description. Names that already
exist in the vault are skipped unless --overwrite is given. Delete the export
file after importing: it holds every secret in plain text.

Example:
  pman import --from bitwarden bitwarden_export.json
  pman import --from lastpass --dry-run lastpass.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := importer.GetParser(importer.Source(importFrom))
		if err != nil {
			return fmt.Errorf("%w (valid: %s)", err, strings.Join(importer.ValidSources(), ", "))
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read export file: %w", err)
		}
		result, err := parser.Parse(data)
		if err != nil {
			return err
		}

		path, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		v, err := store.Open(blob, password.Bytes())
		if err != nil {
			return err
		}
		defer v.Close()

		warn := prompter.Out()
		for _, w := range result.Warnings {
			fmt.Fprintf(warn, "Warning: %s\n", w)
		}
		for _, s := range result.Skipped {
			fmt.Fprintf(warn, "Skipped %q: %s\n", s.OriginalName, s.Reason)
		}

		out := cmd.OutOrStdout()
		imported, existing := 0, 0
		for _, c := range result.Credentials {
			if v.Contains(c.Name) && !importOverwrite {
				fmt.Fprintf(out, "exists: %s\n", c.Name)
				existing++
				continue
			}
			if _, err := v.Set(c); err != nil {
				fmt.Fprintf(warn, "Skipped %q: %v\n", c.Name, err)
				continue
			}
			fmt.Fprintf(out, "import: %s\n", c.Name)
			imported++
		}

		fmt.Fprintf(out, "\n%d imported, %d already present, %d skipped\n", imported, existing, len(result.Skipped))
		if importDryRun {
			fmt.Fprintln(out, "dry run, vault unchanged")
			return nil
		}
		if imported == 0 {
			return nil
		}

		sealed, err := v.Seal()
		if err != nil {
			return err
		}
		return vaultfile.Write(path, sealed)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importFrom, "from", "", "export format: "+strings.Join(importer.ValidSources(), ", "))
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "replace credentials whose name already exists")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be imported without changing the vault")
	_ = importCmd.MarkFlagRequired("from")
}
