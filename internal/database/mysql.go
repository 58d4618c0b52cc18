package database

import (
	"maps"
	"net"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSN formats a go-sql-driver DSN. Timestamps are parsed into
// time.Time, and UPDATE reports matched rather than changed rows so a save
// that writes identical values still counts its row.
func mysqlDSN(c Config) string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Timeout = c.ConnectTimeout
	if len(c.Params) > 0 {
		cfg.Params = maps.Clone(c.Params)
	}
	return cfg.FormatDSN()
}
