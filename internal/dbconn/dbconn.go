package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/bgricker/crewreport/internal/config"
)

// ErrUnknownDriver is returned for driver names other than sqlserver, postgres and sqlite.
var ErrUnknownDriver = errors.New("unknown database driver")

// DefaultPingTimeout bounds the connectivity check performed by Open.
const DefaultPingTimeout = 5 * time.Second

// Connector opens short-lived connections to the report database.
type Connector struct {
	settings    config.Database
	driver      string
	dsn         string
	PingTimeout time.Duration
}

// New validates settings and prepares a Connector.
func New(settings config.Database) (*Connector, error) {
	driver, err := DriverName(settings.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(settings)
	if err != nil {
		return nil, err
	}
	return &Connector{
		settings:    settings,
		driver:      driver,
		dsn:         dsn,
		PingTimeout: DefaultPingTimeout,
	}, nil
}

// Driver returns the database/sql driver name in use.
func (c *Connector) Driver() string { return c.driver }

// String returns the connection target with the password redacted.
func (c *Connector) String() string { return Redacted(c.settings) }

// Open returns a single-connection pool after a successful ping. Callers own
// the returned handle and must close it.
func (c *Connector) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(c.driver, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", Redacted(c.settings), err)
	}
	db.SetMaxOpenConns(1)

	timeout := c.PingTimeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", Redacted(c.settings), err)
	}
	return db, nil
}

// DriverName maps a configured driver to its registered database/sql name.
func DriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", config.DriverSQLServer, "mssql":
		return "sqlserver", nil
	case config.DriverPostgres, "pgx", "postgresql":
		return "pgx", nil
	case config.DriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownDriver, driver)
	}
}

// DSN builds the driver-specific data source name.
func DSN(db config.Database) (string, error) {
	driver, err := DriverName(db.Driver)
	if err != nil {
		return "", err
	}
	switch driver {
	case "sqlserver":
		return serverURL("sqlserver", db, "database", db.Password).String(), nil
	case "pgx":
		u := serverURL("postgres", db, "", db.Password)
		u.Path = "/" + db.Name
		return u.String(), nil
	default:
		if db.Name == "" {
			return "", fmt.Errorf("sqlite database requires a file name")
		}
		if len(db.Params) == 0 {
			return db.Name, nil
		}
		return db.Name + "?" + encodeParams(db.Params, nil), nil
	}
}

// Redacted describes the connection target without credentials.
func Redacted(db config.Database) string {
	driver, err := DriverName(db.Driver)
	if err != nil {
		return db.Driver
	}
	switch driver {
	case "sqlserver":
		return serverURL("sqlserver", db, "database", "").Redacted()
	case "pgx":
		u := serverURL("postgres", db, "", "")
		u.Path = "/" + db.Name
		return u.Redacted()
	default:
		return "sqlite:" + db.Name
	}
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func Placeholder(driver string, n int) string {
	name, _ := DriverName(driver)
	switch name {
	case "sqlserver":
		return "@p" + strconv.Itoa(n)
	case "pgx":
		return "$" + strconv.Itoa(n)
	default:
		return "?" + strconv.Itoa(n)
	}
}

// Rebind rewrites the bind markers of query for driver. Numbered markers
// (@pN, $N, ?N) keep their position so one argument can be referenced twice;
// each bare ? takes the next position. Quoted text and -- comments are left alone.
func Rebind(driver, query string) string {
	var b strings.Builder
	b.Grow(len(query))
	next := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+2])
			i += end + 2
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end])
			i += end
		default:
			n, width := marker(query, i)
			switch {
			case width == 0:
				b.WriteByte(c)
				i++
				continue
			case n == 0:
				next++
				n = next
			}
			b.WriteString(Placeholder(driver, n))
			i += width
		}
	}
	return b.String()
}

// Rebind rewrites query for the connector's driver.
func (c *Connector) Rebind(query string) string { return Rebind(c.driver, query) }

// marker reports the parameter number and byte width of a bind marker at i.
// A bare ? yields number 0; width 0 means no marker starts at i.
func marker(query string, i int) (int, int) {
	if i > 0 && isIdent(query[i-1]) {
		return 0, 0
	}
	var prefix int
	switch {
	case strings.HasPrefix(query[i:], "@p"):
		prefix = 2
	case query[i] == '$' || query[i] == '?':
		prefix = 1
	default:
		return 0, 0
	}
	j := i + prefix
	for j < len(query) && query[j] >= '0' && query[j] <= '9' {
		j++
	}
	if j < len(query) && isIdent(query[j]) {
		return 0, 0
	}
	if j == i+prefix {
		if query[i] == '?' {
			return 0, 1
		}
		return 0, 0
	}
	n, err := strconv.Atoi(query[i+prefix : j])
	if err != nil || n == 0 {
		return 0, 0
	}
	return n, j - i
}

func isIdent(c byte) bool {
	return c == '_' || c == '@' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func serverURL(scheme string, db config.Database, dbParam, password string) *url.URL {
	host := db.Host
	if db.Port != 0 {
		host = net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
	}
	u := &url.URL{Scheme: scheme, Host: host}
	switch {
	case db.User != "" && password != "":
		u.User = url.UserPassword(db.User, password)
	case db.User != "":
		u.User = url.User(db.User)
	}
	extra := map[string]string{}
	if dbParam != "" && db.Name != "" {
		extra[dbParam] = db.Name
	}
	u.RawQuery = encodeParams(db.Params, extra)
	return u
}

func encodeParams(params, extra map[string]string) string {
	values := url.Values{}
	for k, v := range extra {
		values.Set(k, v)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, params[k])
	}
	return values.Encode()
}
