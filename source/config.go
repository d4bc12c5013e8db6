package source

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

const defaultPort = 3306

// Config holds connection parameters of the operational database.
type Config struct {
	Username string
	Password string
	Host     string
	Port     int
	Database string
}

// DSN returns the go-sql-driver/mysql connection string. Timestamps are
// parsed into time.Time in UTC.
func (c Config) DSN() string {
	if c.Port == 0 {
		c.Port = defaultPort
	}

	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return cfg.FormatDSN()
}

// Redacted returns the DSN with the password masked, for logs.
func (c Config) Redacted() string {
	if c.Password != "" {
		c.Password = "xxxxx"
	}
	return c.DSN()
}
