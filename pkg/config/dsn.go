package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DatabaseURL is a postgres:// connection URL split into libpq keywords
type DatabaseURL struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Options  map[string]string // remaining query parameters, e.g. search_path
}

// ParseDatabaseURL splits a postgres:// or postgresql:// URL.
// Port defaults to 5432 and sslmode to disable.
func ParseDatabaseURL(raw string) (*DatabaseURL, error) {
	if raw == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}

	d := &DatabaseURL{
		Host:     u.Hostname(),
		Port:     5432,
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  "disable",
		Options:  map[string]string{},
	}
	if p := u.Port(); p != "" {
		if d.Port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid port in database URL: %w", err)
		}
	}
	if u.User != nil {
		d.User = u.User.Username()
		d.Password, _ = u.User.Password()
	}

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "sslmode" {
			d.SSLMode = values[0]
			continue
		}
		d.Options[key] = values[0]
	}

	return d, nil
}

// ToDSN renders a libpq keyword/value string. Options are appended in key order.
func (d *DatabaseURL) ToDSN() string {
	pairs := []string{
		"host=" + dsnValue(d.Host),
		"port=" + strconv.Itoa(d.Port),
		"user=" + dsnValue(d.User),
		"password=" + dsnValue(d.Password),
		"dbname=" + dsnValue(d.Database),
		"sslmode=" + dsnValue(d.SSLMode),
	}

	keys := make([]string, 0, len(d.Options))
	for k := range d.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, k+"="+dsnValue(d.Options[k]))
	}

	return strings.Join(pairs, " ")
}

// Redacted is the URL with the password masked, for logs
func (d *DatabaseURL) Redacted() string {
	return fmt.Sprintf("postgres://%s:***@%s:%d/%s?sslmode=%s", d.User, d.Host, d.Port, d.Database, d.SSLMode)
}

// dsnValue quotes a value the way libpq expects when it is empty or has spaces or quotes
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
	return "'" + v + "'"
}
