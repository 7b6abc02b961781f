package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// errNotPgx means the pool was opened with a driver other than pgx stdlib.
var errNotPgx = errors.New("database/sql pool is not backed by the pgx stdlib driver")

// withPgxConn runs fn on a native pgx connection borrowed from db.
// Native queries let rows scan straight into structs with pgx.RowToStructByName.
func withPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) (err error) {
	sqlConn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer func() {
		if cerr := sqlConn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			err = errors.Join(err, fmt.Errorf("release conn: %w", cerr))
		}
	}()

	return sqlConn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errNotPgx
		}
		return fn(c.Conn())
	})
}
