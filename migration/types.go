// Package migration resolves on-disk or scripted migration units into
// ResolvedMigration records (spec §4.3) and executes them against a live
// cluster session.
package migration

import (
	"context"
	"time"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// Type tags the kind of migration unit (spec §3).
type Type string

const (
	TypeCQL      Type = "CQL"
	TypeJSDriver Type = "JAVA_DRIVER"
	TypeSchema   Type = "SCHEMA"
	TypeBaseline Type = "BASELINE"
)

// Result is what an Executor reports after running a migration.
type Result struct {
	Success bool
	Cause   error
}

// Executor runs a resolved migration against a live session. Per spec §9
// ("anonymous action objects ... a single method ... or a closure"),
// Executor is a function type rather than an interface with one method —
// CQL and JS resolvers each construct a closure over their own state.
type Executor func(ctx context.Context, session cluster.Session) Result

// ResolvedMigration is a migration unit discovered by a Resolver but not
// yet applied (spec §3).
type ResolvedMigration struct {
	Version          version.Version
	Description      string
	Type             Type
	Script           string
	Checksum         *int32
	PhysicalLocation string
	Executor         Executor
}

// IdentityKey returns the (version, description, type, checksum) tuple
// spec §3 defines as a resolved migration's identity.
func (m ResolvedMigration) IdentityKey() (version.Version, string, Type, *int32) {
	return m.Version, m.Description, m.Type, m.Checksum
}

// AppliedMigration is a ledger row (spec §3, §4.6). Rows are insert-once;
// only Success, ExecutionTime and the two ranks may change after insertion.
type AppliedMigration struct {
	VersionRank   int
	InstalledRank int
	Version       version.Version
	Description   string
	Type          Type
	Script        string
	Checksum      *int32
	InstalledOn   time.Time
	InstalledBy   string
	ExecutionTime time.Duration
	Success       bool
}

// IdentityKey returns the (version, description, type, checksum) tuple
// spec §3 defines as an applied migration's identity, mirroring
// ResolvedMigration.IdentityKey for the Validate comparisons in §4.8.
func (m AppliedMigration) IdentityKey() (version.Version, string, Type, *int32) {
	return m.Version, m.Description, m.Type, m.Checksum
}
