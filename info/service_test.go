package info

import (
	"context"
	"testing"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/config"
	"github.com/hhandoko/cassandra-migration-go/dao"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/version"
)

type fakeResolver struct {
	migrations []migration.ResolvedMigration
}

func (f *fakeResolver) Resolve() ([]migration.ResolvedMigration, error) {
	return f.migrations, nil
}

func newTestService(t *testing.T, resolved []migration.ResolvedMigration, target string, allowOutOfOrder bool) (*Service, *dao.SchemaVersionDAO) {
	t.Helper()
	session := cluster.NewMemorySession("ks")
	d := dao.New(session, config.Default(), nil)
	if err := d.CreateTablesIfMissing(context.Background()); err != nil {
		t.Fatalf("CreateTablesIfMissing: %v", err)
	}
	svc := New(&fakeResolver{migrations: resolved}, d, version.MustFromString(target), allowOutOfOrder)
	return svc, d
}

func resolvedAt(v string) migration.ResolvedMigration {
	return migration.ResolvedMigration{Version: version.MustFromString(v), Type: migration.TypeCQL}
}

func TestFreshApplyHasNoAppliedRowsAllPending(t *testing.T) {
	svc, _ := newTestService(t, []migration.ResolvedMigration{resolvedAt("1"), resolvedAt("2")}, "LATEST", false)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	pending := svc.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(pending))
	}
	if svc.Current() != nil {
		t.Error("expected no current entry before anything is applied")
	}
}

func TestCurrentIsHighestSuccessfulVersion(t *testing.T) {
	svc, d := newTestService(t, []migration.ResolvedMigration{resolvedAt("1"), resolvedAt("2")}, "LATEST", false)
	ctx := context.Background()
	for i, v := range []string{"1", "2"} {
		am := migration.AppliedMigration{InstalledRank: i + 1, VersionRank: i + 1, Version: version.MustFromString(v), Type: migration.TypeCQL, Success: true}
		if err := d.AddAppliedMigration(ctx, am); err != nil {
			t.Fatalf("AddAppliedMigration: %v", err)
		}
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	current := svc.Current()
	if current == nil || current.Version.String() != "2" {
		t.Fatalf("current = %v, want 2", current)
	}
}

func TestOutOfOrderClassification(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestService(t, []migration.ResolvedMigration{resolvedAt("1"), resolvedAt("2"), resolvedAt("3")}, "LATEST", false)

	// Applied: 1, then 3 (installed in that order). 2 lands later, out of order.
	for i, v := range []string{"1", "3"} {
		am := migration.AppliedMigration{InstalledRank: i + 1, VersionRank: i + 1, Version: version.MustFromString(v), Type: migration.TypeCQL, Success: true}
		if err := d.AddAppliedMigration(ctx, am); err != nil {
			t.Fatalf("AddAppliedMigration: %v", err)
		}
	}
	am2 := migration.AppliedMigration{InstalledRank: 3, VersionRank: 0, Version: version.MustFromString("2"), Type: migration.TypeCQL, Success: true}
	if err := d.AddAppliedMigration(ctx, am2); err != nil {
		t.Fatalf("AddAppliedMigration(2): %v", err)
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var got2 *Entry
	for i := range svc.entries {
		if svc.entries[i].Version.String() == "2" {
			got2 = &svc.entries[i]
		}
	}
	if got2 == nil {
		t.Fatal("expected an entry for version 2")
	}
	if got2.State != StateIgnored {
		t.Errorf("state = %s, want IGNORED (allowOutOfOrder=false)", got2.State)
	}

	svc.AllowOutOfOrder = true
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for i := range svc.entries {
		if svc.entries[i].Version.String() == "2" {
			got2 = &svc.entries[i]
		}
	}
	if got2.State != StateOutOfOrder {
		t.Errorf("state = %s, want OUT_OF_ORDER (allowOutOfOrder=true)", got2.State)
	}
}

func TestFailedAppliedMigrationClassifiesFailed(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestService(t, []migration.ResolvedMigration{resolvedAt("1")}, "LATEST", false)

	am := migration.AppliedMigration{InstalledRank: 1, Version: version.MustFromString("1"), Type: migration.TypeCQL, Success: false}
	if err := d.AddAppliedMigration(ctx, am); err != nil {
		t.Fatalf("AddAppliedMigration: %v", err)
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if svc.entries[0].State != StateFailed {
		t.Errorf("state = %s, want FAILED", svc.entries[0].State)
	}
}

func TestMissingSuccessClassification(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestService(t, nil, "LATEST", false)

	am := migration.AppliedMigration{InstalledRank: 1, Version: version.MustFromString("1"), Type: migration.TypeCQL, Success: true}
	if err := d.AddAppliedMigration(ctx, am); err != nil {
		t.Fatalf("AddAppliedMigration: %v", err)
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if svc.entries[0].State != StateMissingSuccess {
		t.Errorf("state = %s, want MISSING_SUCCESS", svc.entries[0].State)
	}
}
