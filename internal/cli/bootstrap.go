package cli

import (
	"github.com/spf13/cobra"

	"github.com/weavefeed/accounts/internal/bootstrap"
	"github.com/weavefeed/accounts/internal/metrics"
	"github.com/weavefeed/accounts/internal/migrations"
)

func (a *app) bootstrapCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the baseline schema and the administrator account",
		Long: `Creates the users, profiles and auth_providers tables if they are missing and
seeds the administrator account with its profile, all in one transaction.
Running it again leaves an existing administrator untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint: errcheck

			b := bootstrap.New(
				db.SQL(),
				db.Dialect(),
				bootstrap.SeedFromConfig(a.cfg.Admin),
				a.logger,
				metrics.NewNoop(),
				bootstrap.WithHasher(a.opts.Hasher),
			)

			result, err := b.Bootstrap(ctx)
			if err != nil {
				return err
			}

			if migrate {
				if _, err := migrations.Run(ctx, db.SQL(), db.Dialect(), migrations.CommandUp); err != nil {
					return err
				}
			}

			return a.printJSON(result)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations after bootstrapping")
	return cmd
}
