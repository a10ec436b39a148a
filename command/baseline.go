package command

import (
	"context"
	"time"

	"github.com/hhandoko/cassandra-migration-go/errs"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// Baseline inserts a BASELINE marker row at config.BaselineVersion,
// provided the ledger has no row above it (spec §4.8).
func Baseline(ctx context.Context, c Context) error {
	d := c.dao()

	baselineVersion, err := version.FromString(c.Config.BaselineVersion)
	if err != nil {
		return logError(c, err)
	}

	return logError(c, withLock(ctx, c, d, func() error {
		applied, err := d.FindAppliedMigrations(ctx)
		if err != nil {
			return err
		}
		for _, am := range applied {
			if am.Version.IsNewerThan(baselineVersion) {
				return errs.ErrBaselineNotAllowed
			}
		}

		rank, err := d.AllocateInstalledRank(ctx)
		if err != nil {
			return err
		}

		if err := d.AddAppliedMigration(ctx, migration.AppliedMigration{
			InstalledRank: rank,
			VersionRank:   1,
			Version:       baselineVersion,
			Description:   c.Config.BaselineDescription,
			Type:          migration.TypeBaseline,
			InstalledOn:   time.Now().UTC(),
			InstalledBy:   currentUser(),
			Success:       true,
		}); err != nil {
			return err
		}
		if c.Log != nil {
			c.Log.Info("baselined the ledger at version %s", baselineVersion)
		}
		return nil
	}))
}
