package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tbourn/meme-daily-backend/internal/app"
)

// NewSettleCommand creates the settle command.
func NewSettleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Run the daily settlement once and print the result",
		Long: `Run the daily settlement once and print the result as JSON.

Running it again on the same day prints status "already_settled".

Example:
  memed settle
  TIMEZONE=Europe/Athens memed settle`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := rootOpts.setup(cmd)
			if err != nil {
				return err
			}
			defer startTracing(ctx, cfg, rootOpts.Version)()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			in, closeIntegrations, err := app.NewIntegrations(ctx, db, cfg)
			if err != nil {
				return err
			}
			defer closeIntegrations()

			res, err := app.Build(db, cfg, in).Settlement.Run(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
