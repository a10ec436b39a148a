package registry

import (
	"fmt"
	"sync"

	"github.com/hhandoko/cassandra-migration-go/migration"
)

// ExecutorFactory builds an Executor for a resolved migration of a given
// type. Resolvers normally build their own Executor inline (see
// migration.CQLResolver, migration.JSResolver); the registry exists for
// migration types contributed out-of-tree, the way the original engine's
// SPI lets a deployment register a custom resolver/executor pair for its
// own code-unit format.
type ExecutorFactory func(script, content string) migration.Executor

var (
	mu        sync.RWMutex
	factories = make(map[migration.Type]ExecutorFactory)
)

// Register associates a migration type with the factory that builds its
// Executor. Panics on re-registration of the same type.
func Register(t migration.Type, factory ExecutorFactory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[t]; exists {
		panic(fmt.Sprintf("registry: migration type %s already registered", t))
	}
	factories[t] = factory
}

// Get retrieves the executor factory registered for t.
func Get(t migration.Type) (ExecutorFactory, error) {
	mu.RLock()
	defer mu.RUnlock()

	factory, exists := factories[t]
	if !exists {
		return nil, fmt.Errorf("registry: no executor factory registered for migration type %s", t)
	}
	return factory, nil
}
