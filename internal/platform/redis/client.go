// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides the client behind spent verification-link markers.

Keyspace:

  - auth:verify_token:spent:<jti> holds "1" once a verification link was
    redeemed. The key expires when the link itself would, so the keyspace
    never grows past the number of links issued in one validity window.

Nothing here is authoritative account state. Losing Redis only reopens
replay of links that are still valid, which is why readiness reports it.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second

	defaultPoolSize = 8
)

// Options configures [NewClient].
type Options struct {
	URL string

	// PoolSize caps open connections. Marker writes are one SET NX per
	// verification, so the pool stays small.
	PoolSize int
}

// Key joins a keyspace prefix and an id. A prefix is expected to end in ":".
func Key(prefix, id string) string {
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix + id
}

// NewClient parses the URL, applies pool and timeout settings and pings once.
func NewClient(context stdctx.Context, options Options, logger *slog.Logger) (*redis.Client, error) {
	parsed, err := redis.ParseURL(options.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	parsed.PoolSize = options.PoolSize
	if parsed.PoolSize <= 0 {
		parsed.PoolSize = defaultPoolSize
	}
	parsed.MinIdleConns = 1
	parsed.MaxIdleConns = max(1, parsed.PoolSize/2)

	parsed.DialTimeout = dialTimeout
	parsed.ReadTimeout = readTimeout
	parsed.WriteTimeout = writeTimeout

	client := redis.NewClient(parsed)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", parsed.Addr),
		slog.Int("db", parsed.DB),
		slog.Int("pool_size", parsed.PoolSize),
	)

	return client, nil
}

// Ping checks the client within pingTimeout. Readiness calls it per probe.
func Ping(context stdctx.Context, client redis.Cmdable) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}
