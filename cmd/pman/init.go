package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nieksand/pman/internal/config"
	"github.com/nieksand/pman/internal/vaultfile"
	"github.com/nieksand/pman/pkg/security"
)

var allowWeak bool

// initCmd creates a new, empty vault file.
var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create a new empty vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ExpandHome(args[0])
		if err != nil {
			return err
		}

		// Fail before asking for a password; Create re-checks with O_EXCL.
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", vaultfile.ErrExists, path)
		}

		password, err := prompter.NewPassword("vault password: ", passwordAttempts)
		if err != nil {
			return err
		}
		defer password.Destroy()

		if err := checkMasterPassword(password.Bytes(), []string{filepath.Base(path)}); err != nil {
			return err
		}

		blob, err := store.Init(password.Bytes())
		if err != nil {
			return err
		}
		if err := vaultfile.Create(path, blob); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\ninitialized new vault: %s\n\n", path)
		if abs, err := filepath.Abs(path); err == nil {
			fmt.Fprintf(out, "you will want: export %s=%s\n\n", config.EnvVault, abs)
		}
		return nil
	},
}

// errWeakPassword is returned when a weak master password is refused.
var errWeakPassword = errors.New("master password is too weak (use --allow-weak to override)")

// checkMasterPassword prints the strength of a new master password and
// refuses weak ones unless --allow-weak is set.
func checkMasterPassword(password []byte, userInputs []string) error {
	eval := security.EvaluatePassword(string(password), userInputs)

	out := prompter.Out()
	fmt.Fprintf(out, "Password strength: %s (estimated crack time: %s)\n", eval.Strength, eval.CrackTime)
	for _, warning := range eval.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}

	if !eval.Acceptable() {
		if !allowWeak {
			return errWeakPassword
		}
		logger.Warn("accepting weak master password")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&allowWeak, "allow-weak", false, "accept a weak master password")
}
