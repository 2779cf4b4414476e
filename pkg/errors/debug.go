package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// ErrorDump flattens an error for the request log: the typed code, the full
// unwrap chain, any errors aggregated with multierr, and the postgres
// diagnostics of the first driver error found.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Retryable  bool
	Chain      []string
	Causes     []string
	PG         PGDetails
}

// PGDetails carries the fields of a postgres error that matter when a ledger
// write is rejected by a constraint.
type PGDetails struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// UniqueViolation reports a duplicate key, usually a replayed external
// reference or payment reference.
func (d PGDetails) UniqueViolation() bool { return d.Code == pgUniqueViolation }

// CheckViolation reports a failed CHECK, e.g. a wallet balance going negative.
func (d PGDetails) CheckViolation() bool { return d.Code == pgCheckViolation }

func (d PGDetails) Empty() bool { return d.Code == "" }

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	out := ErrorDump{TopMessage: err.Error(), Code: CodeInternal}

	var typed *Error
	if stdErrors.As(err, &typed) {
		out.Code = typed.Code()
	}
	out.Retryable = Retryable(err)

	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		out.Chain = append(out.Chain, e.Error())
	}
	if causes := multierr.Errors(err); len(causes) > 1 {
		for _, c := range causes {
			out.Causes = append(out.Causes, c.Error())
		}
	}

	out.PG = pgDetailsOf(err)
	return out
}

func pgDetailsOf(err error) PGDetails {
	var pgx *pgconn.PgError
	if stdErrors.As(err, &pgx) {
		return PGDetails{
			Code:       pgx.Code,
			Constraint: pgx.ConstraintName,
			Table:      pgx.TableName,
			Column:     pgx.ColumnName,
			Detail:     pgx.Detail,
			Message:    pgx.Message,
		}
	}
	var pqe *pq.Error
	if stdErrors.As(err, &pqe) {
		return PGDetails{
			Code:       string(pqe.Code),
			Constraint: pqe.Constraint,
			Table:      pqe.Table,
			Column:     pqe.Column,
			Detail:     pqe.Detail,
			Message:    pqe.Message,
		}
	}
	return PGDetails{}
}
