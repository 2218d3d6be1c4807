package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/pkg/security"
)

var checkJSON bool

// checkCmd reports duplicate, weak and stale secrets.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report duplicate, weak and stale secrets",
	Long: `Check the secrets in the vault for common problems:

  - duplicate: the same secret is used by more than one credential
  - weak:      the secret is shorter than 8 characters
  - empty:     the credential has no secret
  - stale:     not updated for longer than stale_after_days (config, default 365)

Secrets are compared through a keyed hash that only lives for this run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		v, err := store.Open(blob, password.Bytes())
		if err != nil {
			return err
		}
		defer v.Close()

		checker, err := security.NewChecker()
		if err != nil {
			return err
		}
		report := checker.Check(v.Credentials(), time.Now(), cfg.StaleAfter())

		if checkJSON {
			return outputCheckJSON(cmd.OutOrStdout(), report)
		}
		outputCheckText(cmd.OutOrStdout(), report)
		return nil
	},
}

func outputCheckJSON(w io.Writer, report security.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// outputCheckText outputs the report as numbered issues.
func outputCheckText(w io.Writer, report security.Report) {
	if len(report.Issues) == 0 {
		fmt.Fprintf(w, "Checked %d credentials: no issues found\n", report.Checked)
		return
	}

	fmt.Fprintf(w, "Checked %d credentials: %d issues\n\n", report.Checked, len(report.Issues))
	for i, issue := range report.Issues {
		typeLabel := strings.ToUpper(string(issue.Type))
		fmt.Fprintf(w, "  %d. [%s] %s: %s\n", i+1, typeLabel, strings.Join(issue.Names, ", "), issue.Description)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output in JSON format")
}
