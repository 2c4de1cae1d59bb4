package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/clickhouse"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// AnalyticsDialector picks the gorm dialect for the analytics database from the DSN scheme.
// Generated queries use the ClickHouse dialect, so clickhouse:// is the production choice;
// postgres and sqlite DSNs serve local setups that only need the simpler corpus queries.
func AnalyticsDialector(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("analytics dsn must not be empty")
	}

	scheme := ""
	if parsed, err := url.Parse(dsn); err == nil {
		scheme = strings.ToLower(parsed.Scheme)
	}

	switch scheme {
	case "clickhouse", "tcp":
		return clickhouse.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "file":
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), nil
	default:
		return nil, fmt.Errorf("unsupported analytics database scheme %q", scheme)
	}
}

// ConnectAnalytics opens the database generated queries run against.
func ConnectAnalytics(dsn string) (*gorm.DB, error) {
	dialector, err := AnalyticsDialector(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialector.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access %s pool: %w", dialector.Name(), err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
