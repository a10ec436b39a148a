// Package command implements the four engine commands — Initialize,
// Baseline, Migrate, Validate — plus the supplemented read-only Info
// command, each operating on the merged resolved+applied view (spec §4.8).
package command

import (
	"context"
	"os/user"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/config"
	"github.com/hhandoko/cassandra-migration-go/dao"
	"github.com/hhandoko/cassandra-migration-go/info"
	"github.com/hhandoko/cassandra-migration-go/logger"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// Context bundles what every command needs: a session, its owning DAO, the
// resolver used to discover migration units, configuration, and a logger.
// Commands never construct their own session — they receive a
// cluster.Acquire and do not release it; whoever built the Acquire calls
// Release when it is done with the session.
type Context struct {
	Acquire  cluster.Acquire
	Resolver migration.Resolver
	Config   config.Config
	Log      logger.Logger
}

func (c Context) session() cluster.Session { return c.Acquire.Session }

func (c Context) dao() *dao.SchemaVersionDAO { return dao.New(c.session(), c.Config, c.Log) }

func (c Context) target() (version.Version, error) {
	return version.FromString(c.Config.Target)
}

// withLock acquires the advisory ledger lock, runs fn, and releases the lock
// on every exit path (spec §4.8 "All commands except Initialize acquire the
// ledger lock before reading the ledger; they release it in all exit
// paths").
func withLock(ctx context.Context, c Context, d *dao.SchemaVersionDAO, fn func() error) error {
	owner := currentUser()
	if err := d.AcquireLock(ctx, owner); err != nil {
		return err
	}
	defer func() {
		if err := d.ReleaseLock(ctx); err != nil && c.Log != nil {
			c.Log.Error("failed to release migration lock: %v", err)
		}
	}()
	return fn()
}

// logError logs err at Error immediately before a command returns it to its
// caller — the ambient logging contract every exported command honors. A
// nil err or a nil c.Log are both no-ops.
func logError(c Context, err error) error {
	if err != nil && c.Log != nil {
		c.Log.Error("%v", err)
	}
	return err
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// refreshedInfo builds and refreshes an info.Service bound to c's resolver
// and DAO.
func refreshedInfo(ctx context.Context, c Context, d *dao.SchemaVersionDAO) (*info.Service, error) {
	target, err := c.target()
	if err != nil {
		return nil, err
	}
	svc := info.New(c.Resolver, d, target, c.Config.AllowOutOfOrder)
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
