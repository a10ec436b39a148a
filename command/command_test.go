package command

import (
	"context"
	"time"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/config"
	"github.com/hhandoko/cassandra-migration-go/logger"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// ledgerTable mirrors dao's unexported baseName with the default (empty)
// TablePrefix, for tests that inspect cluster.MemorySession rows directly.
const ledgerTable = "cassandra_migration_version"

type fakeResolver struct {
	migrations []migration.ResolvedMigration
}

func (f *fakeResolver) Resolve() ([]migration.ResolvedMigration, error) {
	return f.migrations, nil
}

// cqlMigration builds a ResolvedMigration whose Executor runs a single
// fixed statement against whatever cluster.Session it's given — enough to
// exercise the command layer without a real .cql file on disk.
func cqlMigration(v, desc, stmt string) migration.ResolvedMigration {
	return migration.ResolvedMigration{
		Version:     version.MustFromString(v),
		Description: desc,
		Type:        migration.TypeCQL,
		Script:      "V" + v + "__" + desc + ".cql",
		Executor: func(ctx context.Context, session cluster.Session) migration.Result {
			if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
				return migration.Result{Success: false, Cause: err}
			}
			return migration.Result{Success: true}
		},
	}
}

func failingMigration(v, desc string) migration.ResolvedMigration {
	return migration.ResolvedMigration{
		Version:     version.MustFromString(v),
		Description: desc,
		Type:        migration.TypeCQL,
		Script:      "V" + v + "__" + desc + ".cql",
		Executor: func(ctx context.Context, session cluster.Session) migration.Result {
			return migration.Result{Success: false, Cause: context.DeadlineExceeded}
		},
	}
}

func newTestContext(resolved []migration.ResolvedMigration) (Context, *cluster.MemorySession) {
	session := cluster.NewMemorySession("ks")
	cfg := config.Default()
	cfg.LockRetry = config.LockRetry{BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 4 * time.Millisecond, MaxAttempts: 5}
	c := Context{
		Acquire:  cluster.Acquire{Session: session, Owned: false},
		Resolver: &fakeResolver{migrations: resolved},
		Config:   cfg,
		Log:      logger.NewDefaultLogger("test"),
	}
	return c, session
}
