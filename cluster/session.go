// Package cluster defines the contract the migration engine requires from
// the wide-column, Cassandra-style driver (spec §6). The engine never
// manages connections, SSL/auth or load-balancing itself — that is the
// caller's responsibility (spec §1) — it only consumes this interface.
//
// The shape mirrors the public surface of the de facto standard Go
// Cassandra driver (gocql): Session.Query(stmt, args...).Iter().Scan(...),
// so a production adapter backed by a real cluster can satisfy this
// interface with a thin wrapper and no behavioural translation.
package cluster

import "context"

// Session is a live connection to a keyspace.
type Session interface {
	// Query prepares a statement for execution. Placeholders use "?".
	Query(stmt string, args ...any) Query

	// Keyspace returns the name of the keyspace this session is bound to
	// (the driver contract's "loggedKeyspace").
	Keyspace() string

	// KeyspaceExists reports whether name appears in the cluster's
	// keyspace metadata (the driver contract's
	// "cluster.metadata.keyspaces").
	KeyspaceExists(ctx context.Context, name string) (bool, error)

	// Close releases the session. Calling it more than once is safe.
	Close()

	// Closed reports whether Close has been called.
	Closed() bool
}

// Query is a single statement awaiting execution.
type Query interface {
	// WithContext binds ctx (used for per-statement timeouts) and returns
	// the same Query for chaining.
	WithContext(ctx context.Context) Query

	// Exec runs the statement and discards any result rows.
	Exec() error

	// Iter runs the statement and returns an iterator over result rows.
	Iter() Iter
}

// Iter iterates the rows returned by a Query.
type Iter interface {
	// Scan copies the next row's columns into dest, in query-select
	// order, and reports whether a row was available.
	Scan(dest ...any) bool

	// Close finalizes iteration and returns the first error encountered,
	// if any (spec §5: driver-level failures surface as errs.StoreFailure
	// at the DAO layer that calls this).
	Close() error
}

// Acquire captures the "driver ownership" design note (spec §9): it holds
// either a borrowed, caller-supplied Session (Owned=false, which Release
// leaves open) or one the engine owns (Owned=true, which Release closes).
// The command package never calls Release; the holder of the Acquire does.
type Acquire struct {
	Session Session
	Owned   bool
}

// Release closes the session only if this engine instance owns it.
func (a Acquire) Release() {
	if a.Owned && a.Session != nil {
		a.Session.Close()
	}
}
