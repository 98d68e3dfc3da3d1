package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Restore the persisted session and print the resolved state",
		Long: `Bootstraps the store exactly as an application would at startup:
stale credentials are purged, the provider reports its initial session and the
profile is resolved. The resulting snapshot is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(_ context.Context, rt *runtime) error {
				return opts.print(cmd.OutOrStdout(), rt.store.Snapshot())
			})
		},
	}
}
