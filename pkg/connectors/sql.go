// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"

	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/configs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// SQLConnector hands out context-bound gorm sessions.
type SQLConnector interface {
	Connect(ctx context.Context) error
	DB(ctx context.Context) *gorm.DB
	IsConnected(ctx context.Context) bool
	Disconnect(ctx context.Context) error
	Name() string
}

type sqlConnector struct {
	cfg    configs.DatabaseConfig
	logger commons.Logger
	db     *gorm.DB
}

func NewSQLConnector(cfg configs.DatabaseConfig, logger commons.Logger) SQLConnector {
	return &sqlConnector{cfg: cfg, logger: logger}
}

func (c *sqlConnector) Name() string {
	return fmt.Sprintf("%s connector", c.cfg.Dialect)
}

func (c *sqlConnector) Connect(ctx context.Context) error {
	var dialector gorm.Dialector
	switch c.cfg.Dialect {
	case "sqlite":
		dialector = sqlite.Open(c.cfg.DSN)
	case "postgres":
		dialector = postgres.Open(c.cfg.DSN)
	default:
		return fmt.Errorf("unsupported database dialect %q", c.cfg.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", c.cfg.Dialect, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access %s pool: %w", c.cfg.Dialect, err)
	}
	if c.cfg.MaxOpenConnection > 0 {
		sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConnection)
	}
	if c.cfg.MaxIdealConnection > 0 {
		sqlDB.SetMaxIdleConns(c.cfg.MaxIdealConnection)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", c.cfg.Dialect, err)
	}
	c.db = db
	c.logger.Infof("connected to %s database", c.cfg.Dialect)
	return nil
}

func (c *sqlConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *sqlConnector) IsConnected(ctx context.Context) bool {
	if c.db == nil {
		return false
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (c *sqlConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.logger.Infof("disconnecting %s database", c.cfg.Dialect)
	return sqlDB.Close()
}
