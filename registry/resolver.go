package registry

import (
	"fmt"
	"sort"

	"github.com/hhandoko/cassandra-migration-go/checksum"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/scanner"
)

// Resolver discovers resources matching grammar under locations and resolves
// each one to a ResolvedMigration whose Executor is sourced from the
// registry rather than a hardcoded closure. It lives in this package, not
// migration, because it depends on Get — and migration must not import
// registry, or the two packages would cycle.
//
// This is what makes Register a real extension seam: composing a Resolver
// here alongside migration.CQLResolver/JSResolver under migration.Composite
// makes a type registered with Register actually reachable from Resolve.
type Resolver struct {
	Scanner   scanner.Scanner
	Locations []string
	Grammar   migration.NameGrammar
	Type      migration.Type
	Encoding  string
}

// NewResolver builds a Resolver for migration type t, using grammar to parse
// filenames and factory (via Get) to build each unit's Executor.
func NewResolver(s scanner.Scanner, locations []string, grammar migration.NameGrammar, t migration.Type) *Resolver {
	return &Resolver{
		Scanner:   s,
		Locations: locations,
		Grammar:   grammar,
		Type:      t,
		Encoding:  "UTF-8",
	}
}

// Resolve implements migration.Resolver.
func (r *Resolver) Resolve() ([]migration.ResolvedMigration, error) {
	factory, err := Get(r.Type)
	if err != nil {
		return nil, err
	}

	var out []migration.ResolvedMigration

	for _, location := range r.Locations {
		resources, err := r.Scanner.Scan(location, r.Grammar.Suffix)
		if err != nil {
			return nil, fmt.Errorf("registry: scan %s: %w", location, err)
		}

		for _, resource := range resources {
			parsed, err := r.Grammar.Parse(resource.Filename())
			if err != nil {
				return nil, err
			}
			if parsed == nil {
				continue // does not match the naming grammar; silently ignored
			}

			content, err := resource.LoadAsString(r.Encoding)
			if err != nil {
				return nil, fmt.Errorf("registry: load %s: %w", resource.LogicalPath(), err)
			}

			sum := checksum.OfString(content)

			out = append(out, migration.ResolvedMigration{
				Version:          parsed.Version,
				Description:      parsed.Description,
				Type:             r.Type,
				Script:           resource.Filename(),
				Checksum:         &sum,
				PhysicalLocation: resource.LogicalPath(),
				Executor:         factory(resource.LogicalPath(), content),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Version.Less(out[j].Version) })
	return out, nil
}
