package migration

import (
	"context"
	"fmt"
	"sort"

	"github.com/hhandoko/cassandra-migration-go/checksum"
	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/cqlparser"
	"github.com/hhandoko/cassandra-migration-go/scanner"
)

// CQLResolver discovers "V<version>__<description>.cql" resources under a
// set of location prefixes and resolves each to a ResolvedMigration whose
// Executor parses and runs the script statement by statement (spec §4.3).
type CQLResolver struct {
	Scanner   scanner.Scanner
	Locations []string
	Grammar   NameGrammar
	Encoding  string
}

// NewCQLResolver builds a resolver with the default grammar and UTF-8
// encoding.
func NewCQLResolver(s scanner.Scanner, locations []string) *CQLResolver {
	return &CQLResolver{
		Scanner:   s,
		Locations: locations,
		Grammar:   DefaultCQLGrammar,
		Encoding:  "UTF-8",
	}
}

// Resolve implements Resolver.
func (r *CQLResolver) Resolve() ([]ResolvedMigration, error) {
	var out []ResolvedMigration

	for _, location := range r.Locations {
		resources, err := r.Scanner.Scan(location, r.Grammar.Suffix)
		if err != nil {
			return nil, fmt.Errorf("migration: scan %s: %w", location, err)
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
				return nil, fmt.Errorf("migration: load %s: %w", resource.LogicalPath(), err)
			}

			sum := checksum.OfString(content)

			out = append(out, ResolvedMigration{
				Version:          parsed.Version,
				Description:      parsed.Description,
				Type:             TypeCQL,
				Script:           resource.Filename(),
				Checksum:         &sum,
				PhysicalLocation: resource.LogicalPath(),
				Executor:         cqlExecutor(resource.LogicalPath(), content),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Version.Less(out[j].Version) })
	return out, nil
}

func cqlExecutor(script, content string) Executor {
	return func(ctx context.Context, session cluster.Session) Result {
		statements, err := cqlparser.Parse(content)
		if err != nil {
			return Result{Success: false, Cause: fmt.Errorf("migration: parse %s: %w", script, err)}
		}

		for _, stmt := range statements {
			if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
				return Result{Success: false, Cause: fmt.Errorf("migration: execute %s: %w", script, err)}
			}
		}
		return Result{Success: true}
	}
}
