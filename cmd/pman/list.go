package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/pkg/vault"
)

// listCmd shows every credential without secrets.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		summaries, err := store.List(blob, password.Bytes())
		if err != nil {
			return err
		}
		printSummaries(cmd.OutOrStdout(), "Vault contents", summaries)
		return nil
	},
}

// searchCmd lists credentials whose name contains a substring.
var searchCmd = &cobra.Command{
	Use:   "search <substr>",
	Short: "Search credential names (case-insensitive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		summaries, err := store.Search(blob, password.Bytes(), args[0])
		if err != nil {
			return err
		}
		printSummaries(cmd.OutOrStdout(), "Search results", summaries)
		return nil
	},
}

// printSummaries writes one line per credential between two rules.
func printSummaries(w io.Writer, title string, summaries []vault.Summary) {
	rule := strings.Repeat("-", len(title))
	fmt.Fprintf(w, "\n%s\n%s\n", title, rule)
	for _, s := range summaries {
		fmt.Fprintf(w, "%-20s - u=%-30s d=%-40s (%d days)\n", s.Name, s.Username, s.Description, s.DaysSinceUpdate)
	}
	fmt.Fprintln(w, rule)
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
}
