package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"cloudboard/api/config"
)

// ClickHouseClient owns the native connection to the raw event table.
type ClickHouseClient struct {
	Conn driver.Conn
	log  *zap.Logger
}

func NewClickHouseDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ClickHouseClient, error) {
	var tlsConfig *tls.Config
	if cfg.ClickHouseUseTLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHouseNativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "cloudboard-api", Version: cfg.Version}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		TLS:          tlsConfig,
		DialTimeout:  cfg.ClickHouseDialTimeout,
		MaxOpenConns: cfg.ClickHouseMaxOpenConns,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return conn.Ping(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("ClickHouse not reachable yet, retrying", zap.Error(err), zap.Duration("retry_in", next))
	}

	if err := backoff.RetryNotify(ping, connectBackOff(ctx, cfg.DBConnectMaxElapsed), notify); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("Successfully connected to ClickHouse database via Native TCP",
		zap.String("host", cfg.ClickHouseHost),
		zap.String("database", cfg.ClickHouseDB))
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.Conn.Ping(ctx)
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			c.log.Error("Error closing ClickHouse connection", zap.Error(err))
			return
		}
		c.log.Info("ClickHouse connection closed")
	}
}
