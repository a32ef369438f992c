package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Connect opens a pool for url and verifies it with a ping.
func Connect(ctx context.Context, name, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, eris.Errorf("db: no url configured for %s database", name)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "db: create %s connection pool", name)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(err, "db: ping %s database", name)
	}

	zap.L().Debug("database connected", zap.String("database", name))
	return pool, nil
}

// Connections holds the long-lived pools of one pipeline run: Local is the
// processing database, Remote the raw data database.
type Connections struct {
	Local  *pgxpool.Pool
	Remote *pgxpool.Pool
}

// ConnectAll opens the local and remote pools. Either URL may be empty when
// the caller does not need that database. On failure every pool opened so
// far is closed before returning.
func ConnectAll(ctx context.Context, localURL, remoteURL string) (*Connections, error) {
	conns := &Connections{}

	if localURL != "" {
		pool, err := Connect(ctx, "local", localURL)
		if err != nil {
			return nil, err
		}
		conns.Local = pool
	}

	if remoteURL != "" {
		pool, err := Connect(ctx, "remote", remoteURL)
		if err != nil {
			conns.Close()
			return nil, err
		}
		conns.Remote = pool
	}

	return conns, nil
}

// Close closes every open pool. It is safe to call on a partially
// populated or nil set and more than once.
func (c *Connections) Close() {
	if c == nil {
		return
	}
	if c.Local != nil {
		c.Local.Close()
		c.Local = nil
	}
	if c.Remote != nil {
		c.Remote.Close()
		c.Remote = nil
	}
}
