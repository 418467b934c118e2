package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/chromatrace/internal/log"
)

// Client holds the connection to the PostgreSQL results database
type Client struct {
	dsn    string
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(dsn string, logger *zap.SugaredLogger) *Client {
	return &Client{
		dsn:    dsn,
		logger: log.OrNop(logger),
	}
}

// GormLogger returns a gorm logger that writes through the zap logger.
func GormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Connect connects to the results database
func (c *Client) Connect() error {
	db, err := CreateConnection(postgres.Open(c.dsn))
	if err != nil {
		c.logger.Warnf("unable to connect to the results database: %v", err)
		return err
	}
	c.DB = db
	c.logger.Info("results database connection successful")
	return nil
}

// Migrate creates or updates every table owned by this package.
func (c *Client) Migrate() error {
	if c.DB == nil {
		return fmt.Errorf("database not connected")
	}
	if err := c.DB.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("error migrating results schema: %w", err)
	}
	return nil
}

// Repository returns a Repository backed by this client's connection.
func (c *Client) Repository() *Repository {
	return NewRepository(c.DB)
}

// Ping checks that the results database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c.DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: GormLogger()})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}
