package database

import (
	"net/url"

	_ "modernc.org/sqlite"
)

// sqliteDSN formats a modernc.org/sqlite DSN with foreign key enforcement
// switched on.
func sqliteDSN(c Config) string {
	path := c.Path
	if path == "" {
		path = c.Database
	}
	q := url.Values{}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	if path == ":memory:" {
		path = "rowkit"
		q.Set("mode", "memory")
	}
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

func isMemory(c Config) bool {
	return c.Path == ":memory:" || (c.Path == "" && c.Database == ":memory:") || c.Params["mode"] == "memory"
}
