package migration

import (
	"context"
	"fmt"
	"sort"

	js "github.com/dop251/goja"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/scanner"
)

// JSResolver discovers "V<version>__<description>.js" resources and
// resolves each to a ResolvedMigration of type JAVA_DRIVER whose execution
// is delegated to a goja host runtime — the Go-native stand-in for a
// compiled class implementing the original engine's migration interface
// (spec §3, §4.3 "code-unit resolver").
//
// Version and description come from the filename, as for CQL scripts; the
// script itself supplies a migrate function and, optionally, a checksum as
// top-level bindings:
//
//	var checksum = 482910321   // optional: omit if the unit cannot compute one
//	function migrate(session) { session.execute("INSERT INTO t ..."); }
//
// Any version or description binding in the script is not read.
//
// migrate receives a host object exposing execute(stmt, ...args), mirroring
// the execute(statement) contract §6 requires of the driver.
type JSResolver struct {
	Scanner   scanner.Scanner
	Locations []string
	Grammar   NameGrammar
}

// NewJSResolver builds a resolver with the default ".js" grammar.
func NewJSResolver(s scanner.Scanner, locations []string) *JSResolver {
	return &JSResolver{Scanner: s, Locations: locations, Grammar: DefaultJSGrammar}
}

// Resolve implements Resolver.
func (r *JSResolver) Resolve() ([]ResolvedMigration, error) {
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
				continue
			}

			content, err := resource.LoadAsString("UTF-8")
			if err != nil {
				return nil, fmt.Errorf("migration: load %s: %w", resource.LogicalPath(), err)
			}

			meta, err := inspectJSUnit(resource.Filename(), content)
			if err != nil {
				return nil, err
			}

			out = append(out, ResolvedMigration{
				Version:          parsed.Version,
				Description:      parsed.Description,
				Type:             TypeJSDriver,
				Script:           resource.Filename(),
				Checksum:         meta.checksum,
				PhysicalLocation: resource.LogicalPath(),
				Executor:         jsExecutor(resource.LogicalPath(), content),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Version.Less(out[j].Version) })
	return out, nil
}

type jsUnitMeta struct {
	checksum *int32
}

// inspectJSUnit evaluates the unit once, outside of any session context,
// purely to read its declared metadata. The unit must not assume "session"
// is defined at this stage.
func inspectJSUnit(script, content string) (jsUnitMeta, error) {
	vm := js.New()
	if _, err := vm.RunString(content); err != nil {
		return jsUnitMeta{}, fmt.Errorf("migration: evaluate %s: %w", script, err)
	}

	migrateFn, ok := js.AssertFunction(vm.Get("migrate"))
	if !ok || migrateFn == nil {
		return jsUnitMeta{}, fmt.Errorf("migration: %s does not export a migrate(session) function", script)
	}

	checksumVal := vm.Get("checksum")
	if checksumVal == nil || js.IsUndefined(checksumVal) || js.IsNull(checksumVal) {
		return jsUnitMeta{}, nil // checksum capability not implemented; None is permitted
	}

	sum := int32(checksumVal.ToInteger())
	return jsUnitMeta{checksum: &sum}, nil
}

func jsExecutor(script, content string) Executor {
	return func(ctx context.Context, session cluster.Session) Result {
		vm := js.New()

		host := vm.NewObject()
		host.Set("execute", func(call js.FunctionCall) js.Value {
			if len(call.Arguments) == 0 {
				panic(vm.NewTypeError("execute() requires a CQL statement"))
			}
			stmt := call.Arguments[0].String()
			args := make([]any, 0, len(call.Arguments)-1)
			for _, a := range call.Arguments[1:] {
				args = append(args, a.Export())
			}
			if err := session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return js.Undefined()
		})
		vm.Set("session", host)

		if _, err := vm.RunString(content); err != nil {
			return Result{Success: false, Cause: fmt.Errorf("migration: evaluate %s: %w", script, err)}
		}

		migrateFn, ok := js.AssertFunction(vm.Get("migrate"))
		if !ok {
			return Result{Success: false, Cause: fmt.Errorf("migration: %s does not export a migrate(session) function", script)}
		}

		if _, err := migrateFn(js.Undefined(), host); err != nil {
			return Result{Success: false, Cause: fmt.Errorf("migration: execute %s: %w", script, err)}
		}
		return Result{Success: true}
	}
}
