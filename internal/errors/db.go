package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// duplicateKey matches the detail of a unique violation: "Key (col)=(val) already exists.".
var duplicateKey = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError turns export history store failures into AppErrors. Errors it does
// not recognise are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "database operation timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "database operation was canceled")
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "export run not found")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	mapped := Wrap(pgErr, ErrCodeInternal, "database error")
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		mapped.Code, mapped.Message = ErrCodeConflict, "export run already recorded"
		mapped.Field = pgErr.ColumnName
		if mapped.Field == "" {
			if m := duplicateKey.FindStringSubmatch(pgErr.Detail); m != nil {
				mapped.Field = m[1]
			}
		}
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		mapped.Code, mapped.Message = ErrCodeValidation, "invalid export run"
		mapped.Field = pgErr.ColumnName
	}
	return mapped
}
