package database

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/denisenkom/go-mssqldb"
)

// mssqlDSN formats a sqlserver:// URL for go-mssqldb.
func mssqlDSN(c Config) string {
	u := url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(c.Host, c.Port),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	q.Set("database", c.Database)
	if secs := int(c.ConnectTimeout.Seconds()); secs > 0 {
		q.Set("dial timeout", strconv.Itoa(secs))
	}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
