// Package database opens the PostgreSQL handle the service checks for
// readiness. The service keeps no domain data, so the pool stays small.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"contractapi/internal/config"
)

const (
	// DefaultPingTimeout bounds Ping when the caller sets no deadline.
	DefaultPingTimeout = 5 * time.Second

	defaultMaxOpenConns = 2
	connectTimeoutSec   = 3
)

var sqlOpen = sql.Open

var errIncomplete = errors.New("database config needs host, port, user and name")

// dsn renders c as a postgres:// URL. connect_timeout keeps a readiness check from
// hanging on an unroutable host.
func dsn(c config.DatabaseConfig) (string, error) {
	if c.Host == "" || c.Port == "" || c.User == "" || c.Name == "" {
		return "", errIncomplete
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   c.Name,
		User:   url.User(c.User),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}

	q := url.Values{"connect_timeout": {strconv.Itoa(connectTimeoutSec)}}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open returns a pgx-backed handle traced with otelsql. It never connects;
// reachability is Ping's job, so a database that is down at start-up only
// makes the service unready.
func Open(c config.DatabaseConfig) (*sql.DB, error) {
	source, err := dsn(c)
	if err != nil {
		return nil, err
	}

	driverName, err := otelsql.Register("pgx",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sqlOpen(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen := c.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(min(c.MaxIdleConns, maxOpen))
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}
	return db, nil
}

// Ping verifies connectivity, bounded by DefaultPingTimeout when ctx has
// no deadline of its own.
func Ping(ctx context.Context, db *sql.DB) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPingTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
