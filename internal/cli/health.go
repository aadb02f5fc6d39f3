package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/weavefeed/accounts/internal/health"
)

// errCritical makes the command exit non-zero after printing the report.
var errCritical = errors.New("service health is critical")

func (a *app) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report database and cache health as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			state := health.NewState(a.opts.Version, time.Now())

			var probes []health.Probe
			db, err := a.openDB(ctx)
			if err != nil {
				state.Set(health.ComponentDatabase, health.LevelFullyDegraded, err.Error())
			} else {
				defer db.Close() //nolint: errcheck
				probes = append(probes, health.Probe{
					Component: health.ComponentDatabase,
					Checker:   db,
					OnFailure: health.LevelFullyDegraded,
				})
			}

			if c := a.openCache(ctx); c != nil {
				defer c.Close() //nolint: errcheck
				probes = append(probes, health.Probe{
					Component: health.ComponentCache,
					Checker:   c,
					OnFailure: health.LevelPartial,
				})
			} else if a.cfg.Redis.URL != "" {
				state.Set(health.ComponentCache, health.LevelPartial, "redis unreachable")
			}

			report := health.NewReporter(state, a.logger, probes...).Report(ctx)
			if err := a.printJSON(report); err != nil {
				return err
			}
			if report.Status == health.StatusCritical {
				return errCritical
			}
			return nil
		},
	}
}
