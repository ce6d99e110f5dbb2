package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/gatekey/keystore"
	"github.com/jmcleod/gatekey/localauth"
)

var prefSecure bool

var prefCmd = &cobra.Command{
	Use:   "pref",
	Short: "Manage preferences",
}

var prefSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a preference; --secure routes it through the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		err = eng.prefs.Set(args[0], args[1], prefSecure)
		if errors.Is(err, keystore.ErrNotAuthenticated) {
			// A secure write needs the vault key; authenticate inline.
			if err := eng.authn.Login(cmd.Context(), localauth.FactorPIN); err != nil {
				return err
			}
			err = eng.prefs.Set(args[0], args[1], prefSecure)
		}
		return err
	},
}

var prefGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a preference value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		value, err := eng.prefs.Get(args[0])
		if errors.Is(err, keystore.ErrNotAuthenticated) {
			if err := eng.authn.Login(cmd.Context(), localauth.FactorPIN); err != nil {
				return err
			}
			value, err = eng.prefs.Get(args[0])
		}
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var prefRemoveCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Remove a preference from both tiers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()
		return eng.prefs.Remove(args[0])
	},
}

func init() {
	rootCmd.AddCommand(prefCmd)
	prefCmd.AddCommand(prefSetCmd)
	prefSetCmd.Flags().BoolVar(&prefSecure, "secure", false, "Encrypt the value in the vault")
	prefCmd.AddCommand(prefGetCmd)
	prefCmd.AddCommand(prefRemoveCmd)
}
