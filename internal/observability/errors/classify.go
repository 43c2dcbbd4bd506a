// Package errors maps errors to low-cardinality class names for metric tags.
package errors

import (
	"context"
	"database/sql"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Classed lets an error pick its own class name.
type Classed interface {
	ErrorClass() string
}

// Classify returns a stable class for err, or "" when err is nil.
//
// Known conditions (context expiry, network timeouts, Postgres error
// classes, sql.ErrNoRows) map to fixed names. Anything else falls back to
// the innermost concrete type in snake case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var classed Classed
	if goerrors.As(err, &classed) {
		if c := classed.ErrorClass(); c != "" {
			return c
		}
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, sql.ErrNoRows):
		return "not_found"
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return classifyPostgres(pgErr.Code)
	}

	var netErr net.Error
	if goerrors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	return typeName(innermost(err))
}

func classifyPostgres(code string) string {
	switch {
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return "pg_constraint"
	case pgerrcode.IsConnectionException(code):
		return "pg_connection"
	case pgerrcode.IsTransactionRollback(code):
		return "pg_rollback"
	case pgerrcode.IsDataException(code):
		return "pg_data"
	case pgerrcode.IsOperatorIntervention(code):
		return "pg_canceled"
	default:
		return "pg_other"
	}
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	// errors.New and fmt.Errorf carry no useful type.
	switch t.String() {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors":
		return "generic"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
