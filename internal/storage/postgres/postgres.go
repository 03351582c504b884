// Package postgres implements the storage.Backend interface on PostgreSQL.
// Queueing and batch writes come from the GORM backend; this package only
// owns the connection.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/motorsim/motorsim/internal/database"
	gormstorage "github.com/motorsim/motorsim/internal/storage/gorm"

	"gorm.io/gorm"
)

// MaxOpenConns caps the connection pool.
const MaxOpenConns = 10

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	logger *slog.Logger
	open   func() (*gorm.DB, error)
}

// New creates a Postgres backend. The connection is made in Init from the
// db.* config keys.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		logger: logger,
		open:   database.GetPostgresDB,
	}
}

// Init connects, validates the connection and starts the writer.
func (b *Backend) Init() error {
	db, err := b.open()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	b.logger.Info("Connected to database", "dialect", db.Name())

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	return b.Backend.Init()
}

// Close stops the writer and closes the pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
