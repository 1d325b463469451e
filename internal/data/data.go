// Package data manages the SQL database and Redis connections.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/redis/go-redis/v9"
)

type Data struct {
	db  *sql.DB
	rdb *redis.Client
}

// RedisOptions carries the broker connection settings.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
}

func New(driver, source string, log *logger.Logger) (*Data, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	log.Info(ctx, "Database connected", "driver", driver, "source", source)
	return &Data{db: db}, nil
}

// ConnectRedis attaches a Redis client. A failed ping is reported to the
// caller but the client is kept so later probes can succeed once the broker
// comes up; the documented setup flow treats a down broker as advisory.
func (d *Data) ConnectRedis(ctx context.Context, opts *RedisOptions, log *logger.Logger) error {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	d.rdb = client

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "Redis connected", "addr", opts.Addr)
	return nil
}

func (d *Data) DB() *sql.DB {
	return d.db
}

// Redis returns the Redis client, or nil when no broker was configured.
func (d *Data) Redis() *redis.Client {
	return d.rdb
}

// PingBroker probes the Redis broker.
func (d *Data) PingBroker(ctx context.Context) error {
	if d.rdb == nil {
		return fmt.Errorf("redis not configured")
	}
	return d.rdb.Ping(ctx).Err()
}

func (d *Data) Close() error {
	if d.rdb != nil {
		if err := d.rdb.Close(); err != nil {
			return err
		}
	}
	return d.db.Close()
}
