// Package dao implements the Schema-Version DAO: the ledger table that
// durably records AppliedMigration rows, a companion counter table for
// installedRank allocation, and the advisory lock row (spec §4.6).
package dao

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/config"
	"github.com/hhandoko/cassandra-migration-go/errs"
	"github.com/hhandoko/cassandra-migration-go/logger"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

const baseName = "cassandra_migration_version"

// lockInstalledRank is the distinguished installed_rank used for the
// advisory lock row (spec §4.6: "installed_rank = 0, version = '?'").
const lockInstalledRank = 0

// SchemaVersionDAO is the ledger table's DAO. It does not own a session;
// the caller (a command) supplies one per the "driver ownership" design
// note (spec §9).
type SchemaVersionDAO struct {
	session     cluster.Session
	table       string
	countsTable string
	lockRetry   config.LockRetry
	timeout     time.Duration
	log         logger.Logger
}

// New builds a DAO bound to session, with table names derived from
// cfg.TablePrefix (spec §4.6, spec §9's Open Question resolution: the
// table prefix is the only table-naming knob). Every statement the DAO
// issues is bounded by cfg.Timeout (spec §5: "every DAO operation ... is
// subject to the configured per-statement timeout"). log receives the
// lock contention Warn events AcquireLock emits on every retry; a nil log
// is replaced with a no-op logger.NullLogger.
func New(session cluster.Session, cfg config.Config, log logger.Logger) *SchemaVersionDAO {
	if log == nil {
		log = logger.NewNullLogger()
	}
	table := cfg.TablePrefix + baseName
	return &SchemaVersionDAO{
		session:     session,
		table:       table,
		countsTable: table + "_counts",
		lockRetry:   cfg.LockRetry,
		timeout:     cfg.Timeout,
		log:         log,
	}
}

// statementCtx derives a per-statement deadline from ctx, per spec §5. A
// zero timeout (unconfigured) leaves ctx unbounded.
func (d *SchemaVersionDAO) statementCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}

// mapStoreErr classifies a driver-level failure: a deadline hit becomes
// errs.ErrStatementTimeout (spec §5), anything else is wrapped as
// errs.StoreFailure.
func mapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ErrStatementTimeout
	}
	return &errs.StoreFailure{Op: op, Cause: err}
}

// CreateTablesIfMissing idempotently creates the ledger and counter tables.
func (d *SchemaVersionDAO) CreateTablesIfMissing(ctx context.Context) error {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (installed_rank int PRIMARY KEY, version_rank int, version text, description text, type text, script text, checksum int, installed_on timestamp, installed_by text, execution_time int, success boolean)`,
		d.table,
	)
	stmtCtx, cancel := d.statementCtx(ctx)
	err := d.session.Query(ddl).WithContext(stmtCtx).Exec()
	cancel()
	if err != nil {
		return mapStoreErr("createTablesIfMissing", err)
	}

	countsDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name text PRIMARY KEY, value counter)`, d.countsTable)
	stmtCtx, cancel = d.statementCtx(ctx)
	err = d.session.Query(countsDDL).WithContext(stmtCtx).Exec()
	cancel()
	if err != nil {
		return mapStoreErr("createTablesIfMissing", err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS ON %s (version_rank)`, d.table)
	stmtCtx, cancel = d.statementCtx(ctx)
	err = d.session.Query(idx).WithContext(stmtCtx).Exec()
	cancel()
	if err != nil {
		return mapStoreErr("createTablesIfMissing", err)
	}

	d.log.Info("ledger tables ready: %s, %s", d.table, d.countsTable)
	return nil
}

// AllocateInstalledRank increments the counter and returns the new value.
func (d *SchemaVersionDAO) AllocateInstalledRank(ctx context.Context) (int, error) {
	incr := fmt.Sprintf(`UPDATE %s SET value = value + 1 WHERE name = ?`, d.countsTable)
	stmtCtx, cancel := d.statementCtx(ctx)
	err := d.session.Query(incr, "installed_rank").WithContext(stmtCtx).Exec()
	cancel()
	if err != nil {
		return 0, mapStoreErr("allocateInstalledRank", err)
	}

	read := fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, d.countsTable)
	stmtCtx, cancel = d.statementCtx(ctx)
	defer cancel()
	iter := d.session.Query(read, "installed_rank").WithContext(stmtCtx).Iter()
	defer iter.Close()

	var rank int64
	if !iter.Scan(&rank) {
		return 0, mapStoreErr("allocateInstalledRank", fmt.Errorf("counter row missing after increment"))
	}
	if err := iter.Close(); err != nil {
		return 0, mapStoreErr("allocateInstalledRank", err)
	}
	return int(rank), nil
}

// FindAppliedMigrations reads every ledger row, sorted by version ascending
// (EMPTY/sentinels first) — excluding the lock row.
func (d *SchemaVersionDAO) FindAppliedMigrations(ctx context.Context) ([]migration.AppliedMigration, error) {
	q := fmt.Sprintf(
		`SELECT version_rank, installed_rank, version, description, type, script, checksum, installed_on, installed_by, execution_time, success FROM %s`,
		d.table,
	)
	stmtCtx, cancel := d.statementCtx(ctx)
	defer cancel()
	iter := d.session.Query(q).WithContext(stmtCtx).Iter()
	defer iter.Close()

	var rows []migration.AppliedMigration
	for {
		var (
			versionRank, installedRank int64
			versionStr, description    string
			typeStr, script            string
			checksum                   *int32
			installedOn                time.Time
			installedBy                string
			executionTimeMS            int64
			success                    bool
		)
		if !iter.Scan(&versionRank, &installedRank, &versionStr, &description, &typeStr, &script,
			&checksum, &installedOn, &installedBy, &executionTimeMS, &success) {
			break
		}
		if installedRank == lockInstalledRank {
			continue // the advisory lock row is not a migration
		}

		v, err := version.FromString(versionStr)
		if err != nil {
			return nil, mapStoreErr("findAppliedMigrations", err)
		}

		rows = append(rows, migration.AppliedMigration{
			VersionRank:   int(versionRank),
			InstalledRank: int(installedRank),
			Version:       v,
			Description:   description,
			Type:          migration.Type(typeStr),
			Script:        script,
			Checksum:      checksum,
			InstalledOn:   installedOn,
			InstalledBy:   installedBy,
			ExecutionTime: time.Duration(executionTimeMS) * time.Millisecond,
			Success:       success,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, mapStoreErr("findAppliedMigrations", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Version.Less(rows[j].Version) })
	return rows, nil
}

// HasAppliedMigration reports whether v already has a ledger row.
func (d *SchemaVersionDAO) HasAppliedMigration(ctx context.Context, v version.Version) (bool, error) {
	q := fmt.Sprintf(`SELECT installed_rank FROM %s WHERE version = ?`, d.table)
	stmtCtx, cancel := d.statementCtx(ctx)
	defer cancel()
	iter := d.session.Query(q, v.String()).WithContext(stmtCtx).Iter()
	defer iter.Close()

	var rank int64
	found := iter.Scan(&rank)
	if err := iter.Close(); err != nil {
		return false, mapStoreErr("hasAppliedMigration", err)
	}
	return found, nil
}

// AddAppliedMigration inserts or upserts am. Cassandra's INSERT is itself an
// upsert keyed by the primary key (installed_rank), so the same statement
// serves both the initial success=false insert and the later success=true
// flip — no UPDATE is needed for a full-row write.
func (d *SchemaVersionDAO) AddAppliedMigration(ctx context.Context, am migration.AppliedMigration) error {
	q := fmt.Sprintf(
		`INSERT INTO %s (installed_rank, version_rank, version, description, type, script, checksum, installed_on, installed_by, execution_time, success) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.table,
	)

	var checksum any
	if am.Checksum != nil {
		checksum = *am.Checksum
	}

	stmtCtx, cancel := d.statementCtx(ctx)
	err := d.session.Query(
		q,
		int64(am.InstalledRank),
		int64(am.VersionRank),
		am.Version.String(),
		am.Description,
		string(am.Type),
		am.Script,
		checksum,
		am.InstalledOn,
		am.InstalledBy,
		am.ExecutionTime.Milliseconds(),
		am.Success,
	).WithContext(stmtCtx).Exec()
	cancel()
	if err != nil {
		return mapStoreErr("addAppliedMigration", err)
	}

	if am.Success {
		return d.recomputeVersionRanks(ctx)
	}
	return nil
}

// recomputeVersionRanks assigns 1..n to every successful row in ascending
// version order (spec §4.6 "recompute dense versionRank").
func (d *SchemaVersionDAO) recomputeVersionRanks(ctx context.Context) error {
	applied, err := d.FindAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	rank := 0
	for _, am := range applied {
		if !am.Success {
			continue
		}
		rank++
		if am.VersionRank == rank {
			continue
		}
		am.VersionRank = rank
		if err := d.updateVersionRank(ctx, am); err != nil {
			return err
		}
	}
	return nil
}

func (d *SchemaVersionDAO) updateVersionRank(ctx context.Context, am migration.AppliedMigration) error {
	q := fmt.Sprintf(
		`INSERT INTO %s (installed_rank, version_rank, version, description, type, script, checksum, installed_on, installed_by, execution_time, success) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.table,
	)
	var checksum any
	if am.Checksum != nil {
		checksum = *am.Checksum
	}
	stmtCtx, cancel := d.statementCtx(ctx)
	err := d.session.Query(
		q,
		int64(am.InstalledRank),
		int64(am.VersionRank),
		am.Version.String(),
		am.Description,
		string(am.Type),
		am.Script,
		checksum,
		am.InstalledOn,
		am.InstalledBy,
		am.ExecutionTime.Milliseconds(),
		am.Success,
	).WithContext(stmtCtx).Exec()
	cancel()
	if err != nil {
		return mapStoreErr("updateVersionRank", err)
	}
	return nil
}

// AcquireLock attempts the conditional insert of the distinguished lock row
// (spec §4.6), retrying with the configured exponential backoff (spec §5,
// policy resolved in SPEC_FULL.md) before giving up with
// errs.ErrLockUnavailable.
func (d *SchemaVersionDAO) AcquireLock(ctx context.Context, owner string) error {
	q := fmt.Sprintf(
		`INSERT INTO %s (installed_rank, version, installed_by, installed_on, success) VALUES (?,?,?,?,?) IF NOT EXISTS`,
		d.table,
	)

	delay := d.lockRetry.BaseDelay
	for attempt := 0; attempt < d.lockRetry.MaxAttempts; attempt++ {
		stmtCtx, cancel := d.statementCtx(ctx)
		iter := d.session.Query(q, int64(lockInstalledRank), "?", owner, time.Now().UTC(), true).WithContext(stmtCtx).Iter()
		var applied bool
		iter.Scan(&applied)
		err := iter.Close()
		cancel()
		if err != nil {
			return mapStoreErr("acquireLock", err)
		}
		if applied {
			return nil
		}

		if attempt == d.lockRetry.MaxAttempts-1 {
			break
		}
		d.log.Warn("migration lock held by another owner, retrying in %s (attempt %d/%d)", delay, attempt+1, d.lockRetry.MaxAttempts)
		select {
		case <-ctx.Done():
			// The caller's own deadline, not a single statement's — kept
			// distinct from mapStoreErr's per-statement timeout mapping.
			return &errs.StoreFailure{Op: "acquireLock", Cause: ctx.Err()}
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * d.lockRetry.Factor)
		if delay > d.lockRetry.MaxDelay {
			delay = d.lockRetry.MaxDelay
		}
	}
	return errs.ErrLockUnavailable
}

// ReleaseLock deletes the lock row.
func (d *SchemaVersionDAO) ReleaseLock(ctx context.Context) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE installed_rank = ?`, d.table)
	stmtCtx, cancel := d.statementCtx(ctx)
	defer cancel()
	if err := d.session.Query(q, int64(lockInstalledRank)).WithContext(stmtCtx).Exec(); err != nil {
		return mapStoreErr("releaseLock", err)
	}
	return nil
}
