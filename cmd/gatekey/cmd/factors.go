package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/gatekey/localauth"
)

var enableCmd = &cobra.Command{
	Use:   "enable <factor>",
	Short: "Enable a local authentication factor (pin, biometric)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := localauth.ParseFactorType(args[0])
		if err != nil {
			return err
		}
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.authn.Enable(cmd.Context(), factor); err != nil {
			return err
		}
		fmt.Printf("Factor %s enabled\n", factor)
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <factor>",
	Short: "Disable a local authentication factor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := localauth.ParseFactorType(args[0])
		if err != nil {
			return err
		}
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.authn.Disable(cmd.Context(), factor); err != nil {
			return err
		}
		fmt.Printf("Factor %s disabled\n", factor)
		return nil
	},
}

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "List the enabled authentication factors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		factors, err := eng.authn.EnabledFactors()
		if err != nil {
			return err
		}
		if len(factors) == 0 {
			fmt.Println("No factors enabled")
			return nil
		}
		for _, f := range factors {
			fmt.Println(f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(factorsCmd)
}
