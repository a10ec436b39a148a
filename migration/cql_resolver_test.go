package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/scanner"
)

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCQLResolverResolve(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "V1__init.cql", "CREATE TABLE t(id int PRIMARY KEY);")
	writeMigration(t, dir, "V2__add_col.cql", "ALTER TABLE t ADD v text;")
	writeMigration(t, dir, "notes.txt", "ignore me")

	r := NewCQLResolver(scanner.NewFilesystemScanner(dir), []string{""})
	migrations, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version.String() != "1" || migrations[1].Version.String() != "2" {
		t.Errorf("unexpected order: %s, %s", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Checksum == nil {
		t.Error("expected a checksum")
	}
}

func TestCQLResolverExecutesStatements(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "V1__init.cql", "CREATE TABLE IF NOT EXISTS ledger (installed_rank int, version text);")

	r := NewCQLResolver(scanner.NewFilesystemScanner(dir), []string{""})
	migrations, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	session := cluster.NewMemorySession("ks")
	result := migrations[0].Executor(context.Background(), session)
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Cause)
	}
}

func TestCQLResolverHonorsConfiguredEncoding(t *testing.T) {
	dir := t.TempDir()
	bom := "\ufeff"
	writeMigration(t, dir, "V1__init.cql", bom+"CREATE TABLE IF NOT EXISTS t(id int PRIMARY KEY);")

	utf8 := NewCQLResolver(scanner.NewFilesystemScanner(dir), []string{""})
	utf8Migrations, err := utf8.Resolve()
	if err != nil {
		t.Fatalf("Resolve (UTF-8): %v", err)
	}
	if result := utf8Migrations[0].Executor(context.Background(), cluster.NewMemorySession("ks")); !result.Success {
		t.Fatalf("expected the UTF-8-decoded script to execute after its BOM is stripped, got %v", result.Cause)
	}

	other := NewCQLResolver(scanner.NewFilesystemScanner(dir), []string{""})
	other.Encoding = "ASCII"
	otherMigrations, err := other.Resolve()
	if err != nil {
		t.Fatalf("Resolve (ASCII): %v", err)
	}
	// LoadAsString only strips a leading BOM for the UTF-8 encoding (spec
	// §4.5 "decode as the configured encoding"); with any other configured
	// encoding the BOM survives into the statement and the in-memory
	// session no longer recognizes it.
	if result := otherMigrations[0].Executor(context.Background(), cluster.NewMemorySession("ks")); result.Success {
		t.Fatal("expected the non-UTF-8 decode to leave the BOM in place and fail to execute")
	}
}

func TestCQLResolverDuplicateVersionViaComposite(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "V1__a.cql", "CREATE TABLE a(id int PRIMARY KEY);")
	writeMigration(t, dir, "V1__b.cql", "CREATE TABLE b(id int PRIMARY KEY);")

	r := NewCQLResolver(scanner.NewFilesystemScanner(dir), []string{""})
	composite := NewComposite(r)
	if _, err := composite.Resolve(); err == nil {
		t.Fatal("expected a duplicate version error")
	}
}
