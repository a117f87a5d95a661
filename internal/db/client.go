// Package db stores linked collections in SurrealDB.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades fail when wss negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Connection defaults. A link run is short, so reconnects give up quickly.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 3
)

// Auth levels.
const (
	AuthRoot     = "root"
	AuthDatabase = "database"
)

// Config holds SurrealDB connection configuration.
type Config struct {
	URL        string
	Namespace  string
	Database   string
	Username   string
	Password   string
	AuthLevel  string        // AuthRoot or AuthDatabase
	Timeout    time.Duration // per request, DefaultTimeout when zero
	MaxRetries int           // reconnect attempts, DefaultMaxRetries when zero
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c Config) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultMaxRetries
}

// Client is a signed-in connection scoped to one namespace and database.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

// NewClient connects, signs in and selects the namespace and database. log may be nil.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())

	conn, err := dial(ctx, cfg, sdkLogger)
	if err != nil {
		return nil, err
	}

	c := &Client{conn: conn, cfg: cfg, logger: sdkLogger}
	if err := c.open(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	sdkLogger.Debug("surrealdb ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return c, nil
}

// dial opens an auto-reconnecting WebSocket connection.
func dial(ctx context.Context, cfg Config, sdkLogger logger.Logger) (*rews.Connection[*gorillaws.Connection], error) {
	codec := surrealcbor.New()
	// gorillaws appends /rpc itself.
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		cfg.timeout(),
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 500 * time.Millisecond
	retryer.MaxDelay = 5 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = cfg.maxRetries()
	conn.Retryer = retryer

	sdkLogger.Debug("connecting to surrealdb", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}
	return conn, nil
}

// open signs in at the configured level and selects the namespace and database.
func (c *Client) open(ctx context.Context) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: c.cfg.Username, Password: c.cfg.Password}
	if c.cfg.AuthLevel == AuthDatabase {
		auth.Namespace = c.cfg.Namespace
		auth.Database = c.cfg.Database
	}
	c.logger.Debug("signing in", "user", c.cfg.Username, "auth_level", c.cfg.AuthLevel)
	if _, err := db.SignIn(ctx, auth); err != nil {
		return fmt.Errorf("signin as %s: %w", c.cfg.Username, err)
	}

	if err := db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", c.cfg.Namespace, c.cfg.Database, err)
	}
	c.db = db
	return nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// InitSchema defines the linked_episode table. It is safe to run on every open.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", wrapQueryError(err))
	}
	return nil
}

// Query runs a SurrealQL statement.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) (*[]surrealdb.QueryResult[any], error) {
	res, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	return res, wrapQueryError(err)
}

// DeleteAll removes every stored linked episode and keeps the schema.
func (c *Client) DeleteAll(ctx context.Context) error {
	if _, err := c.Query(ctx, "DELETE linked_episode", nil); err != nil {
		return fmt.Errorf("delete linked_episode: %w", err)
	}
	return nil
}
