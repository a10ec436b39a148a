package command

import (
	"context"
	"testing"
)

func TestInitializeInsertsSchemaMarkerOnce(t *testing.T) {
	c, session := newTestContext(nil)
	ctx := context.Background()

	if err := Initialize(ctx, c); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	rows := session.Rows(ledgerTable)
	if len(rows) != 1 {
		t.Fatalf("expected 1 ledger row after Initialize, got %d", len(rows))
	}

	// Idempotent: a second call must not insert another row.
	if err := Initialize(ctx, c); err != nil {
		t.Fatalf("Initialize (second call): %v", err)
	}
	rows = session.Rows(ledgerTable)
	if len(rows) != 1 {
		t.Fatalf("expected Initialize to stay idempotent, got %d rows", len(rows))
	}
}
