package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/onecloud"
)

var (
	imageName     string
	imageTechName string
	imageServerID int
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage server images",
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List public and custom images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.ListImages(ctx)
		})
	},
}

var imageCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a custom image from a server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(imageName) == "" {
			return errors.New("--name is required")
		}
		if imageServerID <= 0 {
			return errors.New("--server-id must be a positive integer")
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.CreateImage(ctx, imageName, imageTechName, imageServerID)
		})
	},
}

var imageDeleteCmd = &cobra.Command{
	Use:   "delete <image-id>",
	Short: "Delete a custom image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "image id")
		if err != nil {
			return err
		}
		return runWithClient(cmd, false, func(ctx context.Context, c *onecloud.Client) (any, error) {
			return c.DeleteImage(ctx, id)
		})
	},
}

func init() {
	imageCreateCmd.Flags().StringVar(&imageName, "name", "", "image name")
	imageCreateCmd.Flags().StringVar(&imageTechName, "tech-name", "", "technical image name")
	imageCreateCmd.Flags().IntVar(&imageServerID, "server-id", 0, "source server id")

	imageCmd.AddCommand(imageListCmd, imageCreateCmd, imageDeleteCmd)
	rootCmd.AddCommand(imageCmd)
}
