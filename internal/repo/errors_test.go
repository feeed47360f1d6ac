package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslatePgError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "flows_pkey"}, ErrAlreadyExists},
		{"foreign key", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503", ConstraintName: "runs_flow_id_fkey"}), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translatePgError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	// Остальные ошибки проходят без изменений
	other := &pgconn.PgError{Code: "42P01"}
	if got := translatePgError(other); got != error(other) {
		t.Errorf("unexpected translation: %v", got)
	}
	plain := errors.New("boom")
	if got := translatePgError(plain); got != plain {
		t.Errorf("unexpected translation: %v", got)
	}
}

func TestNullHelpers(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string should become NULL")
	}
	if s := nullString("x"); s == nil || *s != "x" {
		t.Errorf("unexpected value %v", s)
	}
	if deref(nil) != "" {
		t.Error("nil should deref to empty string")
	}

	nilID := uuid.Nil
	if nullUUID(&nilID) != nil || nullUUID(nil) != nil {
		t.Error("nil uuid should become NULL")
	}
	id := uuid.New()
	if got := nullUUID(&id); got == nil || *got != id {
		t.Errorf("unexpected uuid %v", got)
	}
}

func TestMarshalResults(t *testing.T) {
	data, err := marshalResults(nil)
	if err != nil || data != nil {
		t.Errorf("nil results should give NULL, got %q (%v)", data, err)
	}
}
