package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/gatekey/localauth"
)

var loginFactor string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a local factor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := localauth.ParseFactorType(loginFactor)
		if err != nil {
			return err
		}
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.authn.Login(cmd.Context(), factor); err != nil {
			return err
		}
		fmt.Println("Authenticated")
		return nil
	},
}

var forgetDevice bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the authenticated state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.authn.Logout(forgetDevice); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var changePinCmd = &cobra.Command{
	Use:   "change-pin",
	Short: "Rotate the PIN after re-proving the current one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.authn.ChangePin(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("PIN changed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginFactor, "factor", "pin", "Factor to authenticate with")
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&forgetDevice, "forget-device", false, "Also remove the biometric enrollment")
	rootCmd.AddCommand(changePinCmd)
}
