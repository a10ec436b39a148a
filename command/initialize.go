package command

import (
	"context"
	"time"

	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// Initialize ensures the ledger and counter tables exist and, if the ledger
// is empty, inserts a SCHEMA marker row at version "0" (spec §4.8).
// Initialize is the one command that does not acquire the ledger lock — the
// lock row lives in the very table Initialize may be creating.
func Initialize(ctx context.Context, c Context) error {
	d := c.dao()
	if err := d.CreateTablesIfMissing(ctx); err != nil {
		return logError(c, err)
	}

	applied, err := d.FindAppliedMigrations(ctx)
	if err != nil {
		return logError(c, err)
	}
	if len(applied) > 0 {
		return nil // already initialized; idempotent
	}

	rank, err := d.AllocateInstalledRank(ctx)
	if err != nil {
		return logError(c, err)
	}

	if err := d.AddAppliedMigration(ctx, migration.AppliedMigration{
		InstalledRank: rank,
		VersionRank:   1,
		Version:       version.MustFromString("0"),
		Description:   "<< Cassandra Initialize >>",
		Type:          migration.TypeSchema,
		InstalledOn:   time.Now().UTC(),
		InstalledBy:   currentUser(),
		Success:       true,
	}); err != nil {
		return logError(c, err)
	}
	if c.Log != nil {
		c.Log.Info("initialized the migration ledger")
	}
	return nil
}
