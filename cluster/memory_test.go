package cluster

import "testing"

func TestMemorySessionInsertAndSelect(t *testing.T) {
	s := NewMemorySession("ks")

	if err := s.Query(`CREATE TABLE IF NOT EXISTS ledger (version_rank int, installed_rank int, version text)`).Exec(); err != nil {
		t.Fatalf("create table: %v", err)
	}

	if err := s.Query(`INSERT INTO ledger (version_rank, installed_rank, version) VALUES (?, ?, ?)`, 1, 1, "1").Exec(); err != nil {
		t.Fatalf("insert: %v", err)
	}

	iter := s.Query(`SELECT version_rank, installed_rank, version FROM ledger`).Iter()
	var rank int64
	var installed int64
	var ver string
	if !iter.Scan(&rank, &installed, &ver) {
		t.Fatal("expected a row")
	}
	if rank != 1 || installed != 1 || ver != "1" {
		t.Errorf("got (%d, %d, %s)", rank, installed, ver)
	}
	if iter.Scan(&rank, &installed, &ver) {
		t.Error("expected only one row")
	}
}

func TestMemorySessionConditionalInsert(t *testing.T) {
	s := NewMemorySession("ks")
	s.Query(`CREATE TABLE IF NOT EXISTS ledger (installed_rank int, version text)`).Exec()

	var applied bool
	s.Query(`INSERT INTO ledger (installed_rank, version) VALUES (?, ?) IF NOT EXISTS`, 0, "?").Iter().Scan(&applied)
	if !applied {
		t.Fatal("first conditional insert should apply")
	}

	applied = true
	s.Query(`INSERT INTO ledger (installed_rank, version) VALUES (?, ?) IF NOT EXISTS`, 0, "?").Iter().Scan(&applied)
	if applied {
		t.Fatal("second conditional insert should not apply")
	}
}

func TestMemorySessionCounter(t *testing.T) {
	s := NewMemorySession("ks")
	s.Query(`CREATE TABLE IF NOT EXISTS counts (name text, count counter)`).Exec()

	s.Query(`UPDATE counts SET count = count + 1 WHERE name = ?`, "installed_rank").Exec()
	s.Query(`UPDATE counts SET count = count + 1 WHERE name = ?`, "installed_rank").Exec()

	iter := s.Query(`SELECT count FROM counts WHERE name = ?`, "installed_rank").Iter()
	var count int64
	if !iter.Scan(&count) {
		t.Fatal("expected a row")
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestMemorySessionDelete(t *testing.T) {
	s := NewMemorySession("ks")
	s.Query(`CREATE TABLE IF NOT EXISTS ledger (installed_rank int, version text)`).Exec()
	s.Query(`INSERT INTO ledger (installed_rank, version) VALUES (?, ?)`, 0, "?").Exec()

	if err := s.Query(`DELETE FROM ledger WHERE installed_rank = ?`, 0).Exec(); err != nil {
		t.Fatalf("delete: %v", err)
	}

	iter := s.Query(`SELECT installed_rank FROM ledger`).Iter()
	var rank int64
	if iter.Scan(&rank) {
		t.Error("expected no rows after delete")
	}
}
