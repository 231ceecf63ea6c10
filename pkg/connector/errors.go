package connector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
)

// IsUnavailable reports whether err means the source could not be reached, as
// opposed to the source rejecting the SQL. parent is the caller's context; a
// cancelled caller is treated as unavailable so the pipeline stops retrying.
func IsUnavailable(parent context.Context, err error) bool {
	if err == nil {
		return false
	}
	if parent != nil && parent.Err() != nil {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
