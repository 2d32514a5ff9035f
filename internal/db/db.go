// Package db opens the Postgres pool and owns the schema.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 10
	defaultMaxConnIdleTime = 5 * time.Minute
)

// schemeAliases are the URL spellings the deploy tooling hands out for the
// same Postgres DSN.
var schemeAliases = []string{"prisma+postgres://", "postgresql+psycopg://", "postgresql://"}

// Query keys pgx understands; everything else (schema=, pgbouncer=...) is
// dropped before parsing.
var supportedPGQueryKeys = map[string]struct{}{
	"application_name":        {},
	"channel_binding":         {},
	"client_encoding":         {},
	"connect_timeout":         {},
	"default_query_exec_mode": {},
	"gssencmode":              {},
	"host":                    {},
	"keepalives":              {},
	"keepalives_count":        {},
	"keepalives_idle":         {},
	"keepalives_interval":     {},
	"krbsrvname":              {},
	"options":                 {},
	"passfile":                {},
	"pool_max_conn_idle_time": {},
	"pool_max_conns":          {},
	"pool_min_conns":          {},
	"service":                 {},
	"sslcert":                 {},
	"sslcrl":                  {},
	"sslkey":                  {},
	"sslmode":                 {},
	"sslpassword":             {},
	"sslrootcert":             {},
	"target_session_attrs":    {},
}

// Connect opens a pool. Unless the URL sets pool_max_conns the pool is capped
// at defaultMaxConns; idle connections are recycled after five minutes.
func Connect(ctx context.Context, rawURL string) (*pgxpool.Pool, error) {
	normalized := normalizeDatabaseURL(rawURL)
	if normalized == "" {
		return nil, errors.New("database url is empty")
	}
	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if !hasQueryKey(normalized, "pool_max_conns") {
		cfg.MaxConns = defaultMaxConns
	}
	if !hasQueryKey(normalized, "pool_max_conn_idle_time") {
		cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	return pool, nil
}

func normalizeDatabaseURL(rawURL string) string {
	normalized := strings.TrimSpace(rawURL)
	for _, alias := range schemeAliases {
		if strings.HasPrefix(normalized, alias) {
			normalized = "postgres://" + strings.TrimPrefix(normalized, alias)
			break
		}
	}

	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Scheme != "postgres" {
		return normalized
	}

	filtered := make(url.Values)
	for key, values := range parsed.Query() {
		if _, ok := supportedPGQueryKeys[key]; !ok {
			continue
		}
		for _, v := range values {
			filtered.Add(key, v)
		}
	}
	parsed.RawQuery = filtered.Encode()
	return parsed.String()
}

func hasQueryKey(rawURL, key string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Query().Has(key)
}
