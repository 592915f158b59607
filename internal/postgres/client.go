package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/billbridge/billbridge/internal/config"
	"github.com/billbridge/billbridge/internal/domain/eventlog"
	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/refund"
	"github.com/billbridge/billbridge/internal/domain/subscription"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/types"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// TxFromContext returns the transaction from context if it exists
	TxFromContext(ctx context.Context) *gorm.DB

	// Querier returns the current transaction handle if in a transaction, or the regular handle
	Querier(ctx context.Context) *gorm.DB
}

// Client wraps gorm.DB to provide transaction management
type Client struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Module provides an fx.Option to integrate the gorm client with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
	)
}

// NewDB opens the postgres connection and configures the pool
func NewDB(config *config.Configuration, log *logger.Logger) (*gorm.DB, error) {
	dsn := config.Postgres.GetDSN()

	logLevel := gormlogger.Warn
	if config.Deployment.Mode == types.ModeLocal {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(config.Postgres.ConnMaxLifetimeMinutes) * time.Minute)

	if config.Postgres.AutoMigrate {
		if err := db.AutoMigrate(
			&plan.Plan{},
			&subscription.Subscription{},
			&refund.Refund{},
			&eventlog.EventLog{},
		); err != nil {
			return nil, fmt.Errorf("failed running schema migration: %w", err)
		}
	}

	return db, nil
}

// NewClient creates a new gorm client wrapper with transaction management
func NewClient(db *gorm.DB, logger *logger.Logger) IClient {
	return &Client{
		db:     db,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction
func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// If we're already in a transaction, reuse it and do not start a new one or commit it
	if tx := c.TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	// Ensure transaction is rolled back on panic
	defer func() {
		if v := recover(); v != nil {
			c.logger.Errorw("rolling back transaction due to panic",
				"panic", v,
			)
			_ = tx.Rollback()
			panic(v)
		}
	}()

	txCtx := context.WithValue(ctx, types.CtxDBTransaction, tx)

	if err := fn(txCtx); err != nil {
		if rerr := tx.Rollback().Error; rerr != nil {
			err = fmt.Errorf("rolling back transaction: %v (original error: %w)", rerr, err)
		}
		c.logger.Errorw("rolling back transaction due to error",
			"error", err,
		)
		return err
	}

	if err := tx.Commit().Error; err != nil {
		c.logger.Errorw("committing transaction",
			"error", err,
		)
		return fmt.Errorf("committing transaction: %w", err)
	}

	c.logger.Debugw("committed transaction")
	return nil
}

// TxFromContext returns the transaction from context if it exists
func (c *Client) TxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(types.CtxDBTransaction).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// Querier returns the current transaction handle if in a transaction, or the regular handle
func (c *Client) Querier(ctx context.Context) *gorm.DB {
	if tx := c.TxFromContext(ctx); tx != nil {
		return tx
	}
	return c.db.WithContext(ctx)
}
