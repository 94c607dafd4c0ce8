package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/onecloud"
)

var networkName string

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage private networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List private networks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.ListNetworks(ctx)
		})
	},
}

var networkGetCmd = &cobra.Command{
	Use:   "get <network-id>",
	Short: "Show a private network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "network id")
		if err != nil {
			return err
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.GetNetwork(ctx, id)
		})
	},
}

var networkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a private network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(networkName) == "" {
			return errors.New("--name is required")
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.CreateNetwork(ctx, networkName)
		})
	},
}

var networkDeleteCmd = &cobra.Command{
	Use:   "delete <network-id>",
	Short: "Delete a private network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "network id")
		if err != nil {
			return err
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.DeleteNetwork(ctx, id)
		})
	},
}

func init() {
	networkCreateCmd.Flags().StringVar(&networkName, "name", "", "network name")

	networkCmd.AddCommand(networkListCmd, networkGetCmd, networkCreateCmd, networkDeleteCmd)
	rootCmd.AddCommand(networkCmd)
}
