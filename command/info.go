package command

import (
	"context"

	"github.com/hhandoko/cassandra-migration-go/info"
)

// Info returns the full annotated resolved+applied view for display by an
// embedding harness (SPEC_FULL.md "command.Info"). Unlike Validate, it
// reports the whole merged list rather than the first discrepancy, and
// never errors on a discrepancy — only on a failure to read the resolver
// or the ledger.
func Info(ctx context.Context, c Context) ([]info.Entry, error) {
	d := c.dao()

	var entries []info.Entry
	err := withLock(ctx, c, d, func() error {
		svc, err := refreshedInfo(ctx, c, d)
		if err != nil {
			return err
		}
		entries = svc.All()
		return nil
	})
	return entries, logError(c, err)
}
