package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/onecloud"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the account balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.GetBalance(ctx)
		})
	},
}

var dcCmd = &cobra.Command{
	Use:   "dc",
	Short: "Datacenter locations",
}

var dcListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datacenter locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.ListDCLocations(ctx)
		})
	},
}

func init() {
	dcCmd.AddCommand(dcListCmd)
	rootCmd.AddCommand(balanceCmd, dcCmd)
}
