package migration

import (
	"testing"

	"github.com/hhandoko/cassandra-migration-go/version"
)

type fakeResolver struct {
	migrations []ResolvedMigration
}

func (f *fakeResolver) Resolve() ([]ResolvedMigration, error) {
	return f.migrations, nil
}

func TestCompositeMergesAndSorts(t *testing.T) {
	a := &fakeResolver{migrations: []ResolvedMigration{
		{Version: version.MustFromString("2"), Description: "second"},
	}}
	b := &fakeResolver{migrations: []ResolvedMigration{
		{Version: version.MustFromString("1"), Description: "first"},
	}}

	composite := NewComposite(a, b)
	got, err := composite.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].Description != "first" || got[1].Description != "second" {
		t.Errorf("not sorted ascending: %q, %q", got[0].Description, got[1].Description)
	}
}

func TestCompositeRejectsDuplicateVersions(t *testing.T) {
	a := &fakeResolver{migrations: []ResolvedMigration{
		{Version: version.MustFromString("1"), Description: "a"},
	}}
	b := &fakeResolver{migrations: []ResolvedMigration{
		{Version: version.MustFromString("1"), Description: "b"},
	}}

	composite := NewComposite(a, b)
	if _, err := composite.Resolve(); err == nil {
		t.Fatal("expected a duplicate version error")
	}
}
