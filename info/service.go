// Package info implements the Migration Info Service (spec §4.7): it merges
// resolved and applied migrations into a single version-sorted view and
// annotates each entry with a state drawn from spec §4.7's state table.
package info

import (
	"context"
	"sort"

	"github.com/hhandoko/cassandra-migration-go/dao"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// State is a migration's position in the state machine described by
// spec §4.7's resolved/applied/success/relation table.
type State string

const (
	StatePending        State = "PENDING"
	StateAboveTarget    State = "ABOVE_TARGET"
	StateSuccess        State = "SUCCESS"
	StateOutOfOrder     State = "OUT_OF_ORDER"
	StateIgnored        State = "IGNORED"
	StateFailed         State = "FAILED"
	StateMissingSuccess State = "MISSING_SUCCESS"
	StateMissingFailed  State = "MISSING_FAILED"
	StateBaseline       State = "BASELINE"
)

// Entry is one unified row in the merged view: a resolved migration, an
// applied migration, or both, with its computed State.
type Entry struct {
	Version  version.Version
	Resolved *migration.ResolvedMigration
	Applied  *migration.AppliedMigration
	State    State
}

// Service merges resolved and applied migrations for a single target
// version, honouring the AllowOutOfOrder configuration flag.
type Service struct {
	Resolver        migration.Resolver
	DAO             *dao.SchemaVersionDAO
	Target          version.Version
	AllowOutOfOrder bool

	entries []Entry
}

// New builds an info Service.
func New(resolver migration.Resolver, d *dao.SchemaVersionDAO, target version.Version, allowOutOfOrder bool) *Service {
	return &Service{Resolver: resolver, DAO: d, Target: target, AllowOutOfOrder: allowOutOfOrder}
}

// Refresh reads resolved + applied and rebuilds the unified, state-annotated,
// version-sorted list. Call it once per command invocation before Current
// or Pending.
func (s *Service) Refresh(ctx context.Context) error {
	resolved, err := s.Resolver.Resolve()
	if err != nil {
		return err
	}
	applied, err := s.DAO.FindAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	byVersion := make(map[string]*Entry)
	order := make([]string, 0, len(resolved)+len(applied))

	for i := range resolved {
		key := resolved[i].Version.String()
		if byVersion[key] == nil {
			order = append(order, key)
		}
		if byVersion[key] == nil {
			byVersion[key] = &Entry{Version: resolved[i].Version}
		}
		byVersion[key].Resolved = &resolved[i]
	}
	for i := range applied {
		key := applied[i].Version.String()
		if byVersion[key] == nil {
			order = append(order, key)
			byVersion[key] = &Entry{Version: applied[i].Version}
		}
		byVersion[key].Applied = &applied[i]
	}

	outOfOrder := outOfOrderVersions(applied)

	entries := make([]Entry, 0, len(order))
	for _, key := range order {
		e := *byVersion[key]
		e.State = classify(e, s.Target, outOfOrder[key], s.AllowOutOfOrder)
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Version.Less(entries[j].Version) })
	s.entries = entries
	return nil
}

// outOfOrderVersions walks applied rows in installedRank (insertion) order
// and flags the version string of every successful, non-baseline/schema row
// whose version is lower than one already applied before it — the
// definition of "out of order" spec §4.7's state table and §8 scenario 2
// rely on (installedRank is strictly increasing; versionRank is the
// after-the-fact sorted position, and does not by itself say whether a row
// arrived out of sequence).
func outOfOrderVersions(applied []migration.AppliedMigration) map[string]bool {
	byInstall := make([]migration.AppliedMigration, len(applied))
	copy(byInstall, applied)
	sort.Slice(byInstall, func(i, j int) bool { return byInstall[i].InstalledRank < byInstall[j].InstalledRank })

	flagged := make(map[string]bool)
	runningMax := version.Empty
	for _, am := range byInstall {
		if !am.Success || am.Type == migration.TypeBaseline || am.Type == migration.TypeSchema {
			continue
		}
		if am.Version.Less(runningMax) {
			flagged[am.Version.String()] = true
		} else {
			runningMax = am.Version
		}
	}
	return flagged
}

func classify(e Entry, target version.Version, outOfOrder, allowOutOfOrder bool) State {
	resolved, applied := e.Resolved != nil, e.Applied != nil

	if applied && e.Applied.Type == migration.TypeBaseline {
		return StateBaseline
	}
	if applied && e.Applied.Type == migration.TypeSchema {
		// The Initialize marker row has no resolved counterpart by design;
		// it is never a discrepancy (mirrors Validate's own exclusion).
		return StateSuccess
	}

	switch {
	case resolved && !applied:
		if e.Version.IsNewerThan(target) {
			return StateAboveTarget
		}
		return StatePending

	case resolved && applied && e.Applied.Success:
		if !outOfOrder {
			return StateSuccess
		}
		if allowOutOfOrder {
			return StateOutOfOrder
		}
		return StateIgnored

	case resolved && applied && !e.Applied.Success:
		return StateFailed

	case !resolved && applied && e.Applied.Success:
		return StateMissingSuccess

	case !resolved && applied && !e.Applied.Success:
		return StateMissingFailed
	}

	return StatePending
}

// Current returns the entry with the highest version among success-variant
// states (SUCCESS, OUT_OF_ORDER, BASELINE), or nil if none exist.
func (s *Service) Current() *Entry {
	var current *Entry
	for i := range s.entries {
		e := &s.entries[i]
		if e.State != StateSuccess && e.State != StateOutOfOrder && e.State != StateBaseline {
			continue
		}
		if current == nil || e.Version.IsNewerThan(current.Version) {
			current = e
		}
	}
	return current
}

// Pending returns entries in state PENDING with version <= target, in
// ascending version order.
func (s *Service) Pending() []Entry {
	var out []Entry
	for _, e := range s.entries {
		if e.State == StatePending {
			out = append(out, e)
		}
	}
	return out
}

// All returns the full merged, sorted, state-annotated list.
func (s *Service) All() []Entry {
	return s.entries
}
