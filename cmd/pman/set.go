package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/internal/vaultfile"
	"github.com/nieksand/pman/pkg/vault"
)

var setForce bool

// errAborted is returned when the user declines a change.
var errAborted = errors.New("aborted, vault unchanged")

// setCmd creates or replaces a credential. The secret is only ever read
// from the terminal, never from arguments.
var setCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or replace a credential",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		// Unlock first so a wrong password fails before any typing.
		v, err := store.Open(blob, password.Bytes())
		if err != nil {
			return err
		}
		defer v.Close()

		var name string
		if len(args) == 1 {
			name = args[0]
		} else if name, err = prompter.Line(fmt.Sprintf("%-20s", "credential:")); err != nil {
			return err
		}
		name = vault.NormalizeName(name)
		if err := vault.ValidateName(name); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if prev, err := v.Get(name); err == nil {
			fmt.Fprintf(out, "\nreplacing: %s\n\n", prev)
			if !setForce {
				ok, err := prompter.Confirm("replace existing credential?")
				if err != nil {
					return err
				}
				if !ok {
					return errAborted
				}
			}
		}

		username, err := prompter.Line(fmt.Sprintf("%-20s", "username:"))
		if err != nil {
			return err
		}
		secret, err := prompter.NewPassword(fmt.Sprintf("%-20s", "secret:"), passwordAttempts)
		if err != nil {
			return err
		}
		defer secret.Destroy()
		description, err := prompter.Line(fmt.Sprintf("%-20s", "description:"))
		if err != nil {
			return err
		}

		if _, err := v.Set(vault.Credential{
			Name:        name,
			Username:    username,
			Secret:      string(secret.Bytes()),
			Description: description,
		}); err != nil {
			return err
		}

		sealed, err := v.Seal()
		if err != nil {
			return err
		}
		if err := vaultfile.Write(path, sealed); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved: %s\n", name)
		return nil
	},
}

// removeCmd deletes a credential and prints what was removed.
var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		sealed, removed, err := store.Remove(blob, password.Bytes(), args[0])
		if err != nil {
			return err
		}
		if err := vaultfile.Write(path, sealed); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nremoved: %s\n\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(removeCmd)
	setCmd.Flags().BoolVarP(&setForce, "force", "f", false, "replace an existing credential without asking")
}
