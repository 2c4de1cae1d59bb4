package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NL2SQL_OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "NL2SQL API", cfg.AppName)
	require.Equal(t, ":8000", cfg.HTTPAddress())
	require.Equal(t, "gpt-5", cfg.OpenAIModel)
	require.Equal(t, OpenAIResponsesAPI, cfg.OpenAIAPI)
	require.Equal(t, 2048, cfg.OpenAIMaxTokens)
	require.Equal(t, 60*time.Second, cfg.GenerationTimeout)
	require.Equal(t, 10*time.Minute, cfg.QueryCacheTTL)
	require.Empty(t, cfg.ClarificationWords)
	require.Equal(t, 30, cfg.RateLimitPerMinute)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NL2SQL_APP_PORT", ":9090")
	t.Setenv("NL2SQL_DATABASE_URL", "postgres://localhost/analytics")
	t.Setenv("NL2SQL_OPENAI_API_KEY", "sk-test")
	t.Setenv("NL2SQL_OPENAI_MODEL", "gpt-5-mini")
	t.Setenv("NL2SQL_QUERY_CACHE_TTL", "30s")
	t.Setenv("NL2SQL_CLARIFICATION_PHRASES", "clarify, which one ,")
	t.Setenv("NL2SQL_RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "postgres://localhost/analytics", cfg.DatabaseURL)
	require.Equal(t, "postgres://localhost/analytics", cfg.AnalyticsURL)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	require.Equal(t, "gpt-5-mini", cfg.OpenAIModel)
	require.Equal(t, 30*time.Second, cfg.QueryCacheTTL)
	require.Equal(t, []string{"clarify", "which one"}, cfg.ClarificationWords)
	require.Zero(t, cfg.RateLimitPerMinute)
	require.Empty(t, cfg.Validate())
}

func TestLoadSeparateAnalyticsDatabase(t *testing.T) {
	t.Setenv("NL2SQL_DATABASE_URL", "postgres://localhost/history")
	t.Setenv("NL2SQL_ANALYTICS_URL", "clickhouse://default:@localhost:9000/analytics")
	t.Setenv("NL2SQL_OPENAI_API", " Chat ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/history", cfg.DatabaseURL)
	require.Equal(t, "clickhouse://default:@localhost:9000/analytics", cfg.AnalyticsURL)
	require.Equal(t, OpenAIChatAPI, cfg.OpenAIAPI)
}

func TestValidateRejectsUnknownOpenAIAPI(t *testing.T) {
	cfg := Config{AnalyticsURL: "clickhouse://localhost", OpenAIAPIKey: "sk", OpenAIAPI: "assistants", OpenAIMaxTokens: 1}
	require.Equal(t, []string{`openai api must be "responses" or "chat"`}, cfg.Validate())
}

func TestLoadFallsBackToPlainOpenAIKey(t *testing.T) {
	t.Setenv("NL2SQL_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-plain")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-plain", cfg.OpenAIAPIKey)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("NL2SQL_GENERATION_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateAndSummary(t *testing.T) {
	cfg := Config{AppName: "NL2SQL API", OpenAIAPIKey: "sk-secret", OpenAIAPI: OpenAIResponsesAPI, OpenAIMaxTokens: 10}

	require.Equal(t, []string{"analytics database url is not configured"}, cfg.Validate())

	summary := cfg.Summary()
	require.Equal(t, true, summary["openai_api_key_set"])
	require.Equal(t, false, summary["database_url_set"])
	require.Equal(t, "responses", summary["openai_api"])
	for _, value := range summary {
		require.NotEqual(t, "sk-secret", value)
	}
}
