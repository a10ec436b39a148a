package command

import (
	"context"
	"errors"
	"time"

	"github.com/hhandoko/cassandra-migration-go/dao"
	"github.com/hhandoko/cassandra-migration-go/errs"
	"github.com/hhandoko/cassandra-migration-go/info"
	"github.com/hhandoko/cassandra-migration-go/migration"
)

// Migrate resolves pending migrations up to the configured target,
// validates them against the ledger, then applies each in ascending
// version order, stopping at the first failure (spec §4.8).
func Migrate(ctx context.Context, c Context) (int, error) {
	d := c.dao()

	var applied int
	err := logError(c, withLock(ctx, c, d, func() error {
		svc, err := refreshedInfo(ctx, c, d)
		if err != nil {
			return err
		}

		if hasFailedEntry(svc) {
			return errs.ErrFailedMigrationPresent
		}

		// pendingOrFuture=true: an unapplied resolved migration at or below
		// target is exactly what Migrate is about to fix, not a
		// discrepancy — only checksum/description/type mismatches and
		// unresolved applied rows are reported here (spec §4.8 step 3).
		if err := firstDiscrepancy(svc, true); err != nil {
			return err
		}

		if err := rejectOutOfOrderPending(svc, c.Config.AllowOutOfOrder); err != nil {
			return err
		}

		n, err := applyPending(ctx, c, d, svc)
		applied = n
		return err
	}))
	return applied, err
}

// hasFailedEntry reports whether the ledger holds a row Migrate refuses to
// skip over (spec §4.8: "the command refuses to skip a FAILED entry").
func hasFailedEntry(svc *info.Service) bool {
	for _, e := range svc.All() {
		if e.State == info.StateFailed {
			return true
		}
	}
	return false
}

// rejectOutOfOrderPending flags a PENDING entry whose version is below the
// highest already-successful version as a discrepancy, unless
// AllowOutOfOrder permits applying it (spec §8 scenario 2: "allowOutOfOrder
// =false ⇒ Validate fails ... state IGNORED").
func rejectOutOfOrderPending(svc *info.Service, allowOutOfOrder bool) error {
	if allowOutOfOrder {
		return nil
	}
	current := svc.Current()
	if current == nil {
		return nil
	}
	for _, e := range svc.Pending() {
		if e.Version.Less(current.Version) {
			return &errs.ValidationFailed{Detail: "Detected resolved migration not applied: " + e.Version.String()}
		}
	}
	return nil
}

// applyPending applies every PENDING entry, in the ascending version order
// info.Service.Pending already guarantees, stopping at the first failure.
func applyPending(ctx context.Context, c Context, d *dao.SchemaVersionDAO, svc *info.Service) (int, error) {
	applied := 0
	for _, e := range svc.Pending() {
		if e.Resolved == nil {
			continue
		}
		if err := applyOne(ctx, c, d, *e.Resolved); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func applyOne(ctx context.Context, c Context, d *dao.SchemaVersionDAO, rm migration.ResolvedMigration) error {
	rank, err := d.AllocateInstalledRank(ctx)
	if err != nil {
		return err
	}

	am := migration.AppliedMigration{
		InstalledRank: rank,
		Version:       rm.Version,
		Description:   rm.Description,
		Type:          rm.Type,
		Script:        rm.Script,
		Checksum:      rm.Checksum,
		InstalledOn:   time.Now().UTC(),
		InstalledBy:   currentUser(),
		Success:       false,
	}
	if err := d.AddAppliedMigration(ctx, am); err != nil {
		return err
	}

	if c.Log != nil {
		c.Log.Info("migrating schema to version %s - %s", rm.Version, rm.Description)
	}

	statementCtx, cancel := context.WithTimeout(ctx, c.Config.Timeout)
	defer cancel()

	start := time.Now()
	result := rm.Executor(statementCtx, c.session())
	elapsed := time.Since(start)

	if !result.Success {
		cause := result.Cause
		if errors.Is(cause, context.DeadlineExceeded) {
			cause = errs.ErrStatementTimeout
		}
		return &errs.MigrationFailed{Version: rm.Version.String(), Cause: cause}
	}

	am.Success = true
	am.ExecutionTime = elapsed
	if err := d.AddAppliedMigration(ctx, am); err != nil {
		return err
	}
	if c.Log != nil {
		c.Log.Info("successfully applied migration %s in %s", rm.Version, elapsed)
	}
	return nil
}
