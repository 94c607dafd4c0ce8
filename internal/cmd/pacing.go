package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/core"
	"github.com/onecloud/onecloud/internal/core/store"
)

var (
	pacingAll    bool
	pacingScope  string
	pacingVerb   string
	pacingYes    bool
	pacingDryRun bool
)

var pacingCmd = &cobra.Command{
	Use:   "pacing",
	Short: "Inspect and reset persisted pacing markers",
}

var pacingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted pacing markers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := pacingQuery()
		if !query.All && query.Scope == "" && query.Verb == "" {
			query.All = true
		}

		admin, closer, err := openMarkerAdmin(cmd.Context())
		if err != nil {
			return err
		}
		defer closer() // nolint:errcheck // best-effort cleanup

		markers, err := admin.ListMarkers(cmd.Context(), query)
		if err != nil {
			return err
		}
		if markers == nil {
			markers = []core.PacingMarker{}
		}
		return writeResult(cmd, markers)
	},
}

// resetResult is printed by pacing reset.
type resetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

var pacingResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted pacing markers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := pacingQuery()
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !pacingYes && !pacingDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		admin, closer, err := openMarkerAdmin(cmd.Context())
		if err != nil {
			return err
		}
		defer closer() // nolint:errcheck // best-effort cleanup

		matched, err := countMarkers(cmd.Context(), admin, query)
		if err != nil {
			return err
		}
		result := resetResult{Matched: matched, DryRun: pacingDryRun}
		if !pacingDryRun {
			result.Deleted, err = admin.ResetMarkers(cmd.Context(), query)
			if err != nil {
				return err
			}
		}
		return writeResult(cmd, result)
	},
}

// markerCounter is implemented by stores that can count without listing.
type markerCounter interface {
	CountMarkers(ctx context.Context, q store.MarkerQuery) (int, error)
}

func countMarkers(ctx context.Context, admin markerAdmin, q store.MarkerQuery) (int, error) {
	if counter, ok := admin.(markerCounter); ok {
		return counter.CountMarkers(ctx, q)
	}
	markers, err := admin.ListMarkers(ctx, q)
	return len(markers), err
}

func pacingQuery() store.MarkerQuery {
	return store.MarkerQuery{
		All:   pacingAll,
		Scope: strings.TrimSpace(pacingScope),
		Verb:  strings.ToUpper(strings.TrimSpace(pacingVerb)),
	}
}

func init() {
	for _, c := range []*cobra.Command{pacingListCmd, pacingResetCmd} {
		c.Flags().BoolVar(&pacingAll, "all", false, "match every marker")
		c.Flags().StringVar(&pacingScope, "scope", "", "match one token scope")
		c.Flags().StringVar(&pacingVerb, "verb", "", "match one HTTP verb")
	}
	pacingResetCmd.Flags().BoolVar(&pacingYes, "yes", false, "confirm destructive reset")
	pacingResetCmd.Flags().BoolVar(&pacingDryRun, "dry-run", false, "show what would be deleted")

	pacingCmd.AddCommand(pacingListCmd, pacingResetCmd)
	rootCmd.AddCommand(pacingCmd)
}
