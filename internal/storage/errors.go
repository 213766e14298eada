package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrStoreFailed wraps every failed statement issued by a unit of work.
	ErrStoreFailed = errors.New("warehouse write failed")

	// ErrUnitOfWorkClosed is returned when a unit of work is used after Commit or Rollback.
	ErrUnitOfWorkClosed = errors.New("unit of work already closed")
)

// IsConnectionError reports whether err indicates a lost or refused database connection.
// Uses PostgreSQL error codes (Class 08) and standard database/sql errors.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Class 08 = Connection Exception:
	//   08000 connection_exception, 08003 connection_does_not_exist,
	//   08006 connection_failure, 08001 sqlclient_unable_to_establish_sqlconnection,
	//   08004 sqlserver_rejected_establishment_of_sqlconnection
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}
