package store

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dnscp/dnscp/internal/apperrors"
)

func TestMapErr_NoRows(t *testing.T) {
	err := mapErr(pgx.ErrNoRows, "zone", "internal.local")
	if !apperrors.Is(err, apperrors.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestMapErr_UniqueViolation(t *testing.T) {
	err := mapErr(&pgconn.PgError{Code: pgUniqueViolation}, "zone", "name")
	if !apperrors.Is(err, apperrors.KindConflict) {
		t.Fatalf("expected KindConflict, got %v", err)
	}
}

func TestMapErr_ForeignKeyViolation(t *testing.T) {
	err := mapErr(&pgconn.PgError{Code: pgForeignKeyViolation}, "record", "zone_id")
	if !apperrors.Is(err, apperrors.KindReferential) {
		t.Fatalf("expected KindReferential, got %v", err)
	}
}

func TestMapErr_Other(t *testing.T) {
	err := mapErr(pgx.ErrTxClosed, "zone", "")
	if !apperrors.Is(err, apperrors.KindStoreUnavailable) {
		t.Fatalf("expected KindStoreUnavailable, got %v", err)
	}
}

func TestPlaceholder_Increments(t *testing.T) {
	argN := 1
	first := placeholder("AND type = ANY($%d)", &argN)
	second := placeholder("AND created_at >= to_timestamp($%d)", &argN)

	if first != " AND type = ANY($1)" {
		t.Errorf("first clause = %q", first)
	}
	if second != " AND created_at >= to_timestamp($2)" {
		t.Errorf("second clause = %q", second)
	}
	if argN != 3 {
		t.Errorf("argN = %d, want 3", argN)
	}
}
