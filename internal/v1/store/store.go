// Package store is the facade over the relational database and the key-value
// store: users, friendships, sessions, recent messages, and file links.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/config"
	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/types"
)

// userCacheTTL is how long a user projection stays cached in redis.
const userCacheTTL = 7 * 24 * time.Hour

// Store bundles the SQL pool and the shared redis client. All methods are safe
// for concurrent use.
type Store struct {
	DB    *sql.DB
	Redis *redis.Client

	// cacheBreaker guards the best-effort recent-message writes so a degraded
	// redis does not take chat sessions down with it.
	cacheBreaker *gobreaker.CircuitBreaker
}

// New connects to both backends, runs schema setup, and seeds the admin
// account if missing.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	logging.Info(ctx, "database connected")

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 10 * time.Second
	opts.ReadTimeout = 10 * time.Second
	opts.WriteTimeout = 10 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logging.Info(ctx, "redis connected")

	s := &Store{
		DB:           db,
		Redis:        rdb,
		cacheBreaker: newCacheBreaker(),
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithClients wires a Store from pre-built connections. Used by tests.
func NewWithClients(db *sql.DB, rdb *redis.Client) *Store {
	return &Store{DB: db, Redis: rdb, cacheBreaker: newCacheBreaker()}
}

func newCacheBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "message-cache",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
	})
}

// Close releases both connections.
func (s *Store) Close() error {
	rerr := s.Redis.Close()
	derr := s.DB.Close()
	if derr != nil {
		return derr
	}
	return rerr
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       BIGSERIAL PRIMARY KEY,
	username TEXT      NOT NULL UNIQUE,
	password TEXT      NOT NULL,
	nickname TEXT      NOT NULL,
	avatar   TEXT      NOT NULL DEFAULT '',
	role     SMALLINT  NOT NULL,
	active   BOOLEAN   NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS friendships (
	id0    BIGINT   NOT NULL,
	id1    BIGINT   NOT NULL,
	status SMALLINT NOT NULL,
	PRIMARY KEY (id0, id1)
);

CREATE TABLE IF NOT EXISTS filelinks (
	id     BIGSERIAL PRIMARY KEY,
	name   TEXT      NOT NULL,
	link   TEXT      NOT NULL,
	qrlink TEXT      NOT NULL
);`

// init creates the schema and seeds the admin account on first boot.
func (s *Store) init(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return err
	}

	_, _, err := s.FindUserEntity(ctx, "admin")
	if errors.Is(err, errs.ErrNotFound) {
		if err := s.InsertUser(ctx, InsertUserArg{
			Username: "admin",
			Password: "123456",
			Role:     types.RoleAdmin,
			Active:   true,
		}); err != nil {
			return err
		}
		logging.Info(ctx, "admin account created")
		return nil
	}
	return err
}

// wrapDBErr converts database errors into the shared taxonomy.
func wrapDBErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return errs.BadRequest("Username already exists")
	}
	logging.Error(context.Background(), "database error", zap.Error(err))
	return errs.ErrInternal
}

// wrapRedisErr converts redis errors into the shared taxonomy.
func wrapRedisErr(err error) error {
	if err == nil {
		return nil
	}
	logging.Error(context.Background(), "redis error", zap.Error(err))
	return errs.ErrInternal
}
