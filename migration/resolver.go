package migration

import (
	"sort"

	"github.com/hhandoko/cassandra-migration-go/errs"
)

// Resolver discovers migration units and turns them into ResolvedMigration
// records, sorted ascending by version (spec §4.3).
type Resolver interface {
	Resolve() ([]ResolvedMigration, error)
}

// Composite concatenates the output of several resolvers, enforces version
// uniqueness across all of them, and returns the merged, sorted result.
type Composite struct {
	Resolvers []Resolver
}

// NewComposite builds a Composite over resolvers.
func NewComposite(resolvers ...Resolver) *Composite {
	return &Composite{Resolvers: resolvers}
}

// Resolve implements Resolver.
func (c *Composite) Resolve() ([]ResolvedMigration, error) {
	var all []ResolvedMigration
	for _, r := range c.Resolvers {
		migrations, err := r.Resolve()
		if err != nil {
			return nil, err
		}
		all = append(all, migrations...)
	}

	if err := checkUnique(all); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Version.Less(all[j].Version)
	})
	return all, nil
}

func checkUnique(migrations []ResolvedMigration) error {
	seen := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		key := m.Version.String()
		if seen[key] {
			return errs.ErrDuplicateVersion
		}
		seen[key] = true
	}
	return nil
}
