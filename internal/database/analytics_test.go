package database_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nl2sql-api/internal/database"
	"github.com/noah-isme/nl2sql-api/internal/evaluation"
)

func TestAnalyticsDialectorFromScheme(t *testing.T) {
	cases := map[string]string{
		"clickhouse://default:@localhost:9000/analytics": "clickhouse",
		"tcp://localhost:9000?database=analytics":        "clickhouse",
		"postgres://localhost:5432/analytics":            "postgres",
		"postgresql://localhost/analytics":               "postgres",
		"sqlite://analytics.db":                          "sqlite",
		"file:analytics?mode=memory":                     "sqlite",
	}

	for dsn, dialect := range cases {
		t.Run(dsn, func(t *testing.T) {
			dialector, err := database.AnalyticsDialector(dsn)
			require.NoError(t, err)
			require.Equal(t, dialect, dialector.Name())
		})
	}
}

func TestAnalyticsDialectorRejectsUnknownScheme(t *testing.T) {
	_, err := database.AnalyticsDialector("mysql://localhost/analytics")
	require.Error(t, err)

	_, err = database.AnalyticsDialector("  ")
	require.Error(t, err)
}

func TestConnectAnalyticsSQLite(t *testing.T) {
	db, err := database.ConnectAnalytics("file:analytics_connect?mode=memory&cache=shared")
	require.NoError(t, err)

	executor := database.NewExecutor(db, zerolog.Nop())
	require.NoError(t, executor.Ping(context.Background()))
}

// Runs every corpus query, including the INTERVAL time filter, against a real ClickHouse server.
// Set NL2SQL_TEST_CLICKHOUSE_URL (for example clickhouse://default:@localhost:9000/default).
func TestCorpusQueriesExecuteOnClickHouse(t *testing.T) {
	dsn := os.Getenv("NL2SQL_TEST_CLICKHOUSE_URL")
	if dsn == "" {
		t.Skip("NL2SQL_TEST_CLICKHOUSE_URL not set")
	}

	db, err := database.ConnectAnalytics(dsn)
	require.NoError(t, err)
	require.Equal(t, "clickhouse", db.Dialector.Name())

	for _, statement := range []string{
		"DROP TABLE IF EXISTS orders",
		`CREATE TABLE orders (
			id UInt32,
			customer_id UInt32,
			product_id UInt32,
			order_date DateTime,
			total_amount Float64,
			status String,
			created_at DateTime DEFAULT now(),
			updated_at DateTime DEFAULT now()
		) ENGINE = MergeTree() ORDER BY (order_date, id)`,
		`INSERT INTO orders (id, customer_id, product_id, order_date, total_amount, status) VALUES
			(1, 1, 1, now() - INTERVAL 2 HOUR, 10.5, 'completed'),
			(2, 2, 1, now() - INTERVAL 3 DAY, 4.5, 'completed'),
			(3, 1, 2, now() - INTERVAL 1 HOUR, 3, 'pending')`,
	} {
		require.NoError(t, db.Exec(statement).Error)
	}

	executor := database.NewExecutor(db, zerolog.Nop())
	for _, tc := range evaluation.DefaultCorpus() {
		t.Run(tc.ID, func(t *testing.T) {
			result, err := executor.Execute(context.Background(), tc.ExpectedQuery)
			require.NoError(t, err)
			require.NotEmpty(t, result.Rows)
		})
	}

	result, err := executor.Execute(context.Background(), "SELECT SUM(total_amount) FROM orders WHERE order_date >= NOW() - INTERVAL 30 HOUR;")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.InDelta(t, 13.5, result.Rows[0][0], 1e-9)
}
