package command

import (
	"context"
	"fmt"

	"github.com/hhandoko/cassandra-migration-go/errs"
	"github.com/hhandoko/cassandra-migration-go/info"
	"github.com/hhandoko/cassandra-migration-go/migration"
)

// Validate iterates the merged resolved+applied view and returns the first
// discrepancy found, in version-ascending order, or nil on success
// (spec §4.8). pendingOrFuture controls whether an unapplied resolved
// migration at or below target is itself a discrepancy.
func Validate(ctx context.Context, c Context, pendingOrFuture bool) error {
	d := c.dao()

	var validateErr error
	err := withLock(ctx, c, d, func() error {
		svc, err := refreshedInfo(ctx, c, d)
		if err != nil {
			return err
		}
		validateErr = firstDiscrepancy(svc, pendingOrFuture)
		return nil
	})
	if err != nil {
		return logError(c, err)
	}
	return logError(c, validateErr)
}

func firstDiscrepancy(svc *info.Service, pendingOrFuture bool) error {
	for _, e := range svc.All() {
		resolved, applied := e.Resolved, e.Applied

		switch {
		case applied != nil && resolved == nil &&
			applied.Type != migration.TypeSchema && applied.Type != migration.TypeBaseline:
			return &errs.ValidationFailed{Detail: fmt.Sprintf("Detected applied migration not resolved locally: %s", e.Version)}

		case resolved != nil && applied == nil && !pendingOrFuture && e.State != info.StateAboveTarget:
			return &errs.ValidationFailed{Detail: fmt.Sprintf("Detected resolved migration not applied: %s", e.Version)}

		case resolved != nil && applied != nil:
			if resolved.Checksum != nil && applied.Checksum != nil && *resolved.Checksum != *applied.Checksum {
				return &errs.ValidationFailed{Detail: fmt.Sprintf(
					"Migration checksum mismatch for version %s: applied=%d, resolved=%d",
					e.Version, *applied.Checksum, *resolved.Checksum,
				)}
			}
			if resolved.Description != applied.Description {
				return &errs.ValidationFailed{Detail: fmt.Sprintf("Migration description mismatch for version %s", e.Version)}
			}
			if resolved.Type != applied.Type {
				return &errs.ValidationFailed{Detail: fmt.Sprintf("Migration type mismatch for version %s", e.Version)}
			}
		}
	}
	return nil
}
