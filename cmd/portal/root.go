package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal",
		Short: "Member portal with provider login and a hosted-checkout storefront",
		Long: `portal runs the member portal: an OAuth login against an external
provider with sessions kept in Redis, and a small storefront API backed by
a payment provider.

Configuration is read from PORTAL_* environment variables. Flags override
the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newLoadtestCmd())
	root.AddCommand(newCheckConfigCmd())
	return root
}
