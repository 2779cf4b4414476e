package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInsufficient, status: http.StatusUnprocessableEntity, publicMsg: "insufficient balance", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeAndRetryable(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := fmt.Errorf("credit wallet: %w", Wrap(CodeDependency, cause, "ledger write failed"))
	if !IsCode(err, CodeDependency) {
		t.Fatalf("expected dependency code in chain")
	}
	if IsCode(err, CodeValidation) {
		t.Fatalf("unexpected validation code")
	}
	if !Retryable(err) {
		t.Fatalf("dependency errors must be retryable")
	}
	if Retryable(New(CodeInsufficient, "balance too low")) {
		t.Fatalf("insufficient balance must not be retryable")
	}
	if !Retryable(cause) {
		t.Fatalf("uncoded errors default to retryable")
	}
}

func TestDumpCapturesPgxConstraint(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_transactions_external_reference",
		TableName:      "transactions",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("append transaction: %w", pgErr), "ledger entry exists")

	dump := Dump(err)
	if dump.Code != CodeConflict || dump.Retryable {
		t.Fatalf("unexpected code/retryable: %s %v", dump.Code, dump.Retryable)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %v", dump.Chain)
	}
	if !dump.PG.UniqueViolation() || dump.PG.Constraint != "ux_transactions_external_reference" {
		t.Fatalf("unexpected pg details %+v", dump.PG)
	}
}

func TestDumpCapturesPqCheckViolation(t *testing.T) {
	err := fmt.Errorf("reserve: %w", &pq.Error{Code: "23514", Constraint: "chk_wallets_reconciles", Table: "wallets"})

	dump := Dump(err)
	if dump.Code != CodeInternal || !dump.Retryable {
		t.Fatalf("uncoded errors dump as retryable internal, got %s %v", dump.Code, dump.Retryable)
	}
	if !dump.PG.CheckViolation() || dump.PG.Table != "wallets" {
		t.Fatalf("unexpected pg details %+v", dump.PG)
	}
}

func TestDumpListsAggregatedCauses(t *testing.T) {
	err := multierr.Combine(stdErrors.New("credit vendor"), stdErrors.New("credit platform"))

	dump := Dump(err)
	if len(dump.Causes) != 2 {
		t.Fatalf("expected 2 causes, got %v", dump.Causes)
	}
	if !dump.PG.Empty() {
		t.Fatalf("expected no pg details, got %+v", dump.PG)
	}
	if got := Dump(nil); got.TopMessage != "" || got.Chain != nil {
		t.Fatalf("expected zero dump for nil, got %+v", got)
	}
}
