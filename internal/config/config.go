package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/nl2sql-api/pkg/ai"
)

// Generation APIs. The Responses API carries the grammar as a tool format; chat completions is
// for compatible endpoints without it.
const (
	OpenAIResponsesAPI = ai.APIResponses
	OpenAIChatAPI      = ai.APIChat
)

// Config holds runtime configuration values for the API service. It is loaded once and passed by
// value; collaborators built from it never observe later changes.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	AnalyticsURL       string
	RedisURL           string
	NATSURL            string
	ChannelBase        string
	OpenAIAPIKey       string
	OpenAIAPI          string
	OpenAIModel        string
	OpenAIBaseURL      string
	OpenAIMaxTokens    int
	GenerationTimeout  time.Duration
	EvaluationTimeout  time.Duration
	QueryCacheTTL      time.Duration
	CorpusPath         string
	ClarificationWords []string
	RateLimitPerMinute int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Validate lists every configuration problem. An empty result means the service can generate
// and execute queries.
func (c Config) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.AnalyticsURL) == "" {
		problems = append(problems, "analytics database url is not configured")
	}
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		problems = append(problems, "openai api key is not configured")
	}
	if c.OpenAIAPI != OpenAIResponsesAPI && c.OpenAIAPI != OpenAIChatAPI {
		problems = append(problems, fmt.Sprintf("openai api must be %q or %q", OpenAIResponsesAPI, OpenAIChatAPI))
	}
	if c.OpenAIMaxTokens <= 0 {
		problems = append(problems, "openai max tokens must be positive")
	}
	return problems
}

// Summary returns a description of the configuration that is safe to log or return to clients.
func (c Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"app_name":           c.AppName,
		"app_env":            c.AppEnv,
		"port":               c.AppPort,
		"database_url_set":   c.DatabaseURL != "",
		"analytics_url_set":  c.AnalyticsURL != "",
		"redis_url_set":      c.RedisURL != "",
		"nats_url_set":       c.NATSURL != "",
		"openai_api_key_set": c.OpenAIAPIKey != "",
		"openai_model":       c.OpenAIModel,
		"openai_api":         c.OpenAIAPI,
		"query_cache_ttl":    c.QueryCacheTTL.String(),
		"rate_limit":         c.RateLimitPerMinute,
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NL2SQL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "NL2SQL API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8000")
	v.SetDefault("channel.base", "nl2sql")
	v.SetDefault("openai.model", "gpt-5")
	v.SetDefault("openai.api", OpenAIResponsesAPI)
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("evaluation.timeout", "10m")
	v.SetDefault("query_cache.ttl", "10m")
	v.SetDefault("rate_limit.per_minute", 30)

	generationTimeout, err := parseDuration(v, "generation.timeout")
	if err != nil {
		return Config{}, err
	}

	evaluationTimeout, err := parseDuration(v, "evaluation.timeout")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v, "query_cache.ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		AnalyticsURL:       firstNonEmpty(v.GetString("analytics.url"), v.GetString("database.url")),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		ChannelBase:        v.GetString("channel.base"),
		OpenAIAPIKey:       firstNonEmpty(v.GetString("openai.api_key"), os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        v.GetString("openai.model"),
		OpenAIAPI:          strings.ToLower(strings.TrimSpace(v.GetString("openai.api"))),
		OpenAIBaseURL:      v.GetString("openai.base_url"),
		OpenAIMaxTokens:    v.GetInt("openai.max_tokens"),
		GenerationTimeout:  generationTimeout,
		EvaluationTimeout:  evaluationTimeout,
		QueryCacheTTL:      cacheTTL,
		CorpusPath:         v.GetString("corpus.path"),
		ClarificationWords: splitList(v.GetString("clarification.phrases")),
		RateLimitPerMinute: v.GetInt("rate_limit.per_minute"),
	}

	if cfg.OpenAIMaxTokens <= 0 {
		cfg.OpenAIMaxTokens = 2048
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return duration, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
