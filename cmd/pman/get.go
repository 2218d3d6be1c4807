package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// getCmd prints one credential including its secret.
var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a credential and its secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, blob, password, err := unlockInput()
		if err != nil {
			return err
		}
		defer password.Destroy()

		c, err := store.Get(blob, password.Bytes(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s - u=%s p=%s d=%s\n", c.Name, c.Username, c.Secret, c.Description)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
