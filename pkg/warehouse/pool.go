// Package warehouse manages the Snowflake connection and executes
// read-only queries for the insight engine.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/config"
)

// ErrNoConnection is returned when no warehouse connection is available.
var ErrNoConnection = errors.New("no warehouse connection available")

const (
	pingTimeout     = 10 * time.Second
	maxOpenConns    = 5
	maxIdleConns    = 2
	connMaxLifetime = 30 * time.Minute
)

// Manager owns the warehouse connection pool. It lazily opens the pool on
// first use and recreates it when a ping fails, so a Snowflake warehouse
// auto-suspend does not take the engine down with it.
type Manager struct {
	cfg    config.WarehouseConfig
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewManager creates a connection manager. No connection is attempted here;
// Acquire opens one on demand.
func NewManager(cfg config.WarehouseConfig, logger *zap.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger.Named("warehouse")}
}

// Acquire returns a healthy connection pool, opening or recreating it as
// needed.
func (m *Manager) Acquire(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := m.db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return m.db, nil
		}
		m.logger.Warn("warehouse connection unhealthy, reconnecting", zap.Error(err))
		m.db.Close()
		m.db = nil
	}

	db, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	m.db = db
	return m.db, nil
}

func (m *Manager) open(ctx context.Context) (*sql.DB, error) {
	if m.cfg.Account == "" || m.cfg.User == "" {
		return nil, fmt.Errorf("%w: account and user must be configured", ErrNoConnection)
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   m.cfg.Account,
		User:      m.cfg.User,
		Password:  m.cfg.Password,
		Database:  m.cfg.Database,
		Schema:    m.cfg.Schema,
		Warehouse: m.cfg.Warehouse,
		Role:      m.cfg.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build snowflake DSN: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}

	m.logger.Info("warehouse connection established",
		zap.String("account", m.cfg.Account),
		zap.String("database", m.cfg.Database),
		zap.String("warehouse", m.cfg.Warehouse))

	return db, nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
