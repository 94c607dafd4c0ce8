package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/onecloud"
)

var (
	serverCreate   onecloud.CreateServerRequest
	serverUpdate   onecloud.UpdateServerRequest
	serverValidate bool
	serverNetwork  int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage virtual servers",
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.ListServers(ctx)
		})
	},
}

var serverGetCmd = &cobra.Command{
	Use:   "get <server-id>",
	Short: "Show a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "server id")
		if err != nil {
			return err
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.GetServer(ctx, id)
		})
	},
}

var serverCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := serverCreate
		return runWithClient(cmd, serverValidate, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.CreateServer(ctx, req)
		})
	},
}

var serverUpdateCmd = &cobra.Command{
	Use:   "update <server-id>",
	Short: "Change a server's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "server id")
		if err != nil {
			return err
		}
		req := serverUpdate
		return runWithClient(cmd, serverValidate, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.UpdateServer(ctx, id, req)
		})
	},
}

var serverDeleteCmd = &cobra.Command{
	Use:   "delete <server-id>",
	Short: "Delete a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "server id")
		if err != nil {
			return err
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.DeleteServer(ctx, id)
		})
	},
}

func serverActionCmd(use, short string, action func(ctx context.Context, c *onecloud.Client, id int) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <server-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "server id")
			if err != nil {
				return err
			}
			return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
				return action(ctx, c, id)
			})
		},
	}
}

func networkActionCmd(use, short string, action func(ctx context.Context, c *onecloud.Client, id, networkID int) (any, error)) *cobra.Command {
	cmd := serverActionCmd(use, short, func(ctx context.Context, c *onecloud.Client, id int) (any, error) {
		if serverNetwork <= 0 {
			return nil, errors.New("--network-id must be a positive integer")
		}
		return action(ctx, c, id, serverNetwork)
	})
	cmd.Flags().IntVar(&serverNetwork, "network-id", 0, "private network id")
	return cmd
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func init() {
	f := serverCreateCmd.Flags()
	f.StringVar(&serverCreate.Name, "name", "", "server name")
	f.IntVar(&serverCreate.CPU, "cpu", 0, "vCPU count [1..8]")
	f.IntVar(&serverCreate.RAM, "ram", 0, "memory in MB")
	f.IntVar(&serverCreate.HDD, "hdd", 0, "disk size in GB")
	f.IntVar(&serverCreate.ImageID, "image-id", 0, "image id")
	f.StringVar(&serverCreate.HDDType, "hdd-type", onecloud.HDDTypeSAS, "disk type: SAS|SSD")
	f.BoolVar(&serverCreate.IsHighPerformance, "high-performance", false, "place on high performance hosts")
	f.StringVar(&serverCreate.DCLocation, "dc", "", "datacenter tech title (e.g. SdnSpb)")
	f.BoolVar(&serverValidate, "validate", false, "check sizing locally before dispatch")
	markRequired(serverCreateCmd, "name", "cpu", "ram", "hdd", "image-id", "dc")

	// The provider replaces the whole configuration, so every field is
	// required rather than defaulted.
	f = serverUpdateCmd.Flags()
	f.IntVar(&serverUpdate.CPU, "cpu", 0, "vCPU count [1..8]")
	f.IntVar(&serverUpdate.RAM, "ram", 0, "memory in MB")
	f.IntVar(&serverUpdate.HDD, "hdd", 0, "disk size in GB")
	f.StringVar(&serverUpdate.HDDType, "hdd-type", "", "disk type: SAS|SSD")
	f.BoolVar(&serverUpdate.IsHighPerformance, "high-performance", false, "place on high performance hosts (pass =true or =false)")
	f.BoolVar(&serverValidate, "validate", false, "check sizing locally before dispatch")
	markRequired(serverUpdateCmd, "cpu", "ram", "hdd", "hdd-type", "high-performance")

	serverCmd.AddCommand(
		serverListCmd,
		serverGetCmd,
		serverCreateCmd,
		serverUpdateCmd,
		serverDeleteCmd,
		serverActionCmd("power-on", "Power a server on", func(ctx context.Context, c *onecloud.Client, id int) (any, error) {
			return c.PowerOn(ctx, id)
		}),
		serverActionCmd("power-off", "Power a server off", func(ctx context.Context, c *onecloud.Client, id int) (any, error) {
			return c.PowerOff(ctx, id)
		}),
		serverActionCmd("shutdown", "Shut down the guest OS", func(ctx context.Context, c *onecloud.Client, id int) (any, error) {
			return c.ShutdownGuestOS(ctx, id)
		}),
		serverActionCmd("reboot", "Reboot a server", func(ctx context.Context, c *onecloud.Client, id int) (any, error) {
			return c.Reboot(ctx, id)
		}),
		networkActionCmd("attach-network", "Attach a private network", func(ctx context.Context, c *onecloud.Client, id, networkID int) (any, error) {
			return c.AttachNetwork(ctx, id, networkID)
		}),
		networkActionCmd("detach-network", "Detach a private network", func(ctx context.Context, c *onecloud.Client, id, networkID int) (any, error) {
			return c.DetachNetwork(ctx, id, networkID)
		}),
	)
	rootCmd.AddCommand(serverCmd)
}
