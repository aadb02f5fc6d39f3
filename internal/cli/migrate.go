package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weavefeed/accounts/internal/migrations"
)

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|version|reset]",
		Short: "Run database migrations",
		Long:  `Applies, rolls back or reports versioned schema migrations. Defaults to "up".`,
		Args:  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{
			migrations.CommandUp,
			migrations.CommandDown,
			migrations.CommandStatus,
			migrations.CommandVersion,
			migrations.CommandReset,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := migrations.CommandUp
			if len(args) == 1 {
				command = args[0]
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint: errcheck

			report, err := migrations.Run(ctx, db.SQL(), db.Dialect(), command)
			if err != nil {
				return err
			}

			a.logger.Info("migrations finished",
				slog.String("command", command),
				slog.Int64("version", report.Version),
				slog.Int("applied", len(report.Applied)),
			)
			return a.printJSON(report)
		},
	}
}
