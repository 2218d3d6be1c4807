package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/internal/vaultfile"
)

// rekeyCmd changes the master password and the salt.
var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Change the vault password and salt",
	Long: `Re-encrypt the vault under a new master password and a fresh salt.

The records are unchanged. The new vault is written atomically: a failure at
any step leaves the old vault in place, still readable with the old password.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, blob, oldPassword, err := unlockInput()
		if err != nil {
			return err
		}
		defer oldPassword.Destroy()

		// Unlock first so a wrong old password fails before the new one is typed.
		v, err := store.Open(blob, oldPassword.Bytes())
		if err != nil {
			return err
		}
		defer v.Close()

		newPassword, err := prompter.NewPassword("new vault password: ", passwordAttempts)
		if err != nil {
			return err
		}
		defer newPassword.Destroy()

		if err := checkMasterPassword(newPassword.Bytes(), []string{filepath.Base(path)}); err != nil {
			return err
		}

		if err := store.ChangePassword(v, newPassword.Bytes()); err != nil {
			return err
		}
		sealed, err := v.Seal()
		if err != nil {
			return err
		}
		if err := vaultfile.Write(path, sealed); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "vault key changed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rekeyCmd)
	rekeyCmd.Flags().BoolVar(&allowWeak, "allow-weak", false, "accept a weak master password")
}
