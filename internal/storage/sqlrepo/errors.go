package sqlrepo

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"alquiler_floripa/internal/domain"
)

// classify wraps a driver error in a domain.RemoteError carrying the server code.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	re := &domain.RemoteError{Op: op, Message: err.Error()}

	var me *mysql.MySQLError
	var pe *pgconn.PgError
	var ce *pgconn.ConnectError
	var ne net.Error
	switch {
	case errors.As(err, &me):
		re.Code, re.Message = strconv.Itoa(int(me.Number)), me.Message
		switch me.Number {
		case 1146:
			re.Kind = domain.ErrRelationMissing
		case 1142, 1044, 1045:
			re.Kind = domain.ErrPermission
		}
	case errors.As(err, &pe):
		re.Code, re.Message = pe.Code, pe.Message
		switch pe.Code {
		case "42P01":
			re.Kind = domain.ErrRelationMissing
		case "42501", "28000", "28P01":
			re.Kind = domain.ErrPermission
		}
	case errors.As(err, &ce), errors.As(err, &ne), errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn), pgconn.Timeout(err):
		re.Kind = domain.ErrUnreachable
	}
	return re
}
