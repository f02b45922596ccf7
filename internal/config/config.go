package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/trend-agent/internal/formatter"
	"github.com/trend-agent/internal/source"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/ratelimit"
	"github.com/trend-agent/pkg/retry"
)

// Config represents the application configuration
type Config struct {
	Twitter     TwitterConfig     `mapstructure:"twitter"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	Anthropic   AnthropicConfig   `mapstructure:"anthropic"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Trends      TrendsConfig      `mapstructure:"trends"`
	Content     ContentConfig     `mapstructure:"content"`
	Publishing  PublishingConfig  `mapstructure:"publishing"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
}

// TwitterConfig holds the posting API credentials (OAuth 1.0a user context)
type TwitterConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	AccessToken  string        `mapstructure:"access_token"`
	AccessSecret string        `mapstructure:"access_secret"`
	BaseURL      string        `mapstructure:"base_url"`
	TokenURL     string        `mapstructure:"token_url"` // app-only bearer token endpoint
	Timeout      time.Duration `mapstructure:"timeout"`
}

// HuggingFaceConfig holds the hosted inference settings
type HuggingFaceConfig struct {
	APIToken          string        `mapstructure:"api_token"`
	BaseURL           string        `mapstructure:"base_url"`
	Models            []string      `mapstructure:"models"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxNewTokens      int           `mapstructure:"max_new_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	TopP              float64       `mapstructure:"top_p"`
	RepetitionPenalty float64       `mapstructure:"repetition_penalty"`
}

// AnthropicConfig holds Claude API settings. The backend is only added
// when APIKey is set.
type AnthropicConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig holds chat completion settings, optional like Anthropic
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GenerationConfig holds the prompt and the fallback posts
type GenerationConfig struct {
	PromptTemplate    string   `mapstructure:"prompt_template"`    // {trend} is substituted
	FallbackTemplates []string `mapstructure:"fallback_templates"` // {trend} and {trend_clean}
}

// TrendsConfig holds trend discovery settings
type TrendsConfig struct {
	Provider       string           `mapstructure:"provider"` // google, twitter or static
	Region         string           `mapstructure:"region"`
	MaxCandidates  int              `mapstructure:"max_candidates"`
	MinLength      int              `mapstructure:"min_length"`
	Strict         bool             `mapstructure:"strict"`
	Fallback       []string         `mapstructure:"fallback"`
	Keywords       []string         `mapstructure:"keywords"` // static provider
	GoogleURL      string           `mapstructure:"google_url"`
	WOEIDOverrides map[string]int64 `mapstructure:"woeid_overrides"`
	Timeout        time.Duration    `mapstructure:"timeout"`
	Retries        int              `mapstructure:"retries"`
}

// ContentConfig holds the formatting vocabulary and limits
type ContentConfig struct {
	BannedPhrases                []string `mapstructure:"banned_phrases"`
	BannedMatch                  string   `mapstructure:"banned_match"` // word, fold or exact
	AllowedEmojis                []string `mapstructure:"allowed_emojis"`
	MaxLength                    int      `mapstructure:"max_length"`
	TruncateLength               int      `mapstructure:"truncate_length"`
	Ellipsis                     string   `mapstructure:"ellipsis"`
	MaxHashtags                  int      `mapstructure:"max_hashtags"`
	SkipHashtagsIfTrendMentioned bool     `mapstructure:"skip_hashtags_if_trend_mentioned"`
	MinViableLength              int      `mapstructure:"min_viable_length"`
	Placeholder                  string   `mapstructure:"placeholder"`
}

// PublishingConfig holds the retry/backoff policy of the publisher
type PublishingConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts"`
	MaxRateLimitWait     time.Duration `mapstructure:"max_rate_limit_wait"` // 0 disables the ceiling
	DefaultRateLimitWait time.Duration `mapstructure:"default_rate_limit_wait"`
	GenericErrors        string        `mapstructure:"generic_errors"` // backoff or abort
	BaseDelay            time.Duration `mapstructure:"base_delay"`
	MaxDelay             time.Duration `mapstructure:"max_delay"`
	DryRun               bool          `mapstructure:"dry_run"`
}

// RateLimitConfig holds client-side pacing
type RateLimitConfig struct {
	TwitterPostsPerDay           int `mapstructure:"twitter_posts_per_day"`
	HuggingFaceRequestsPerMinute int `mapstructure:"huggingface_requests_per_minute"`
	AnthropicRequestsPerMinute   int `mapstructure:"anthropic_requests_per_minute"`
	OpenAIRequestsPerMinute      int `mapstructure:"openai_requests_per_minute"`
	TrendRequestsPerMinute       int `mapstructure:"trend_requests_per_minute"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or discard
	File   string `mapstructure:"file"`   // append-only JSON log, empty disables
}

// DatabaseConfig holds the run history settings
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // sqlite
	DSN     string `mapstructure:"dsn"`
}

// TrackerConfig holds Google Sheets tracker settings
type TrackerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	RunCron string `mapstructure:"run_cron"`
	Port    string `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".trend-agent"))
		}
	}

	// TREND_AGENT_TRENDS_REGION overrides trends.region and so on
	v.SetEnvPrefix("TREND_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials keep their well-known names
	v.BindEnv("twitter.api_key", "TWITTER_API_KEY")
	v.BindEnv("twitter.api_secret", "TWITTER_API_SECRET")
	v.BindEnv("twitter.access_token", "TWITTER_ACCESS_TOKEN")
	v.BindEnv("twitter.access_secret", "TWITTER_ACCESS_SECRET")
	v.BindEnv("huggingface.api_token", "HUGGINGFACE_API_TOKEN")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("tracker.service_account_json", "TREND_AGENT_TRACKER_SERVICE_ACCOUNT_JSON")
	v.BindEnv("scheduler.port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Twitter defaults
	v.SetDefault("twitter.base_url", "https://api.twitter.com")
	v.SetDefault("twitter.token_url", "https://api.twitter.com/oauth2/token")
	v.SetDefault("twitter.timeout", 30*time.Second)

	// HuggingFace defaults
	v.SetDefault("huggingface.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("huggingface.models", []string{
		"HuggingFaceH4/zephyr-7b-beta",
		"mistralai/Mixtral-8x7B-Instruct-v0.1",
		"google/gemma-7b-it",
	})
	v.SetDefault("huggingface.user_agent", "TrendAgent/2.0")
	v.SetDefault("huggingface.timeout", 30*time.Second)
	v.SetDefault("huggingface.max_new_tokens", 100)
	v.SetDefault("huggingface.temperature", 0.8)
	v.SetDefault("huggingface.top_p", 0.9)
	v.SetDefault("huggingface.repetition_penalty", 1.5)

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 100)
	v.SetDefault("anthropic.temperature", 0.8)
	v.SetDefault("anthropic.timeout", 30*time.Second)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 100)
	v.SetDefault("openai.temperature", 0.8)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.timeout", 30*time.Second)

	// Generation defaults
	v.SetDefault("generation.prompt_template",
		"Write a human-like tweet about {trend} that sparks curiosity and engagement. "+
			"Ensure the tweet is under 280 characters. Only output the tweet text, "+
			"without any instructions or additional text. 🌟")
	v.SetDefault("generation.fallback_templates", []string{
		"🌍 {trend} matters! Join the discussion. #{trend_clean}",
		"💡 Share your thoughts on {trend}. #{trend_clean}",
		"🤝 Let’s talk {trend}! #{trend_clean}",
	})

	// Trends defaults
	filter := source.DefaultFilterConfig()
	v.SetDefault("trends.provider", "google")
	v.SetDefault("trends.region", "US")
	v.SetDefault("trends.max_candidates", filter.MaxCandidates)
	v.SetDefault("trends.min_length", filter.MinLength)
	v.SetDefault("trends.strict", filter.Strict)
	v.SetDefault("trends.fallback", filter.Fallback)
	v.SetDefault("trends.keywords", filter.Fallback)
	v.SetDefault("trends.google_url", "https://trends.google.com/trending/rss?geo={region}")
	v.SetDefault("trends.timeout", 15*time.Second)
	v.SetDefault("trends.retries", 2)

	// Content defaults
	policy := formatter.DefaultPolicy()
	v.SetDefault("content.banned_phrases", policy.BannedPhrases)
	v.SetDefault("content.banned_match", string(policy.BannedMatch))
	v.SetDefault("content.allowed_emojis", policy.AllowedEmojis)
	v.SetDefault("content.max_length", policy.MaxLength)
	v.SetDefault("content.truncate_length", policy.TruncateLength)
	v.SetDefault("content.ellipsis", policy.Ellipsis)
	v.SetDefault("content.max_hashtags", policy.MaxHashtags)
	v.SetDefault("content.skip_hashtags_if_trend_mentioned", false)
	v.SetDefault("content.min_viable_length", 0)
	v.SetDefault("content.placeholder", policy.Placeholder)

	// Publishing defaults
	rp := retry.DefaultPolicy()
	v.SetDefault("publishing.max_attempts", rp.MaxAttempts)
	v.SetDefault("publishing.max_rate_limit_wait", rp.MaxRateLimitWait)
	v.SetDefault("publishing.default_rate_limit_wait", rp.DefaultRateLimitWait)
	v.SetDefault("publishing.generic_errors", string(rp.GenericErrors))
	v.SetDefault("publishing.base_delay", rp.BaseDelay)
	v.SetDefault("publishing.max_delay", rp.MaxDelay)
	v.SetDefault("publishing.dry_run", false)

	// Rate limit defaults
	v.SetDefault("rate_limit.twitter_posts_per_day", 17)
	v.SetDefault("rate_limit.huggingface_requests_per_minute", 30)
	v.SetDefault("rate_limit.anthropic_requests_per_minute", 10)
	v.SetDefault("rate_limit.openai_requests_per_minute", 10)
	v.SetDefault("rate_limit.trend_requests_per_minute", 60)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "bot.log")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/trend-agent.db")

	// Tracker defaults
	v.SetDefault("tracker.enabled", false)
	v.SetDefault("tracker.sheet_name", "Runs")

	// Scheduler defaults
	v.SetDefault("scheduler.run_cron", "0 */4 * * *") // Every 4 hours
	v.SetDefault("scheduler.port", "10000")
}

// Validate validates the configuration. Credentials are checked separately
// by the credential gate so that `format` and `trends` work without them.
func (c *Config) Validate() error {
	if err := c.Content.Policy().Validate(); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := c.Publishing.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}

	switch c.Trends.Provider {
	case "google", "twitter", "static":
	default:
		return fmt.Errorf("trends.provider must be google, twitter or static, got %q", c.Trends.Provider)
	}
	if c.Trends.MaxCandidates < 1 {
		return fmt.Errorf("trends.max_candidates must be at least 1")
	}
	if len(c.Trends.Fallback) == 0 {
		return fmt.Errorf("trends.fallback must not be empty")
	}

	if len(c.HuggingFace.Models) == 0 {
		return fmt.Errorf("huggingface.models must list at least one model")
	}
	if !strings.Contains(c.Generation.PromptTemplate, "{trend}") {
		return fmt.Errorf("generation.prompt_template must contain {trend}")
	}
	if len(c.Generation.FallbackTemplates) == 0 {
		return fmt.Errorf("generation.fallback_templates must not be empty")
	}

	if c.Database.Enabled && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Tracker.Enabled && c.Tracker.SpreadsheetID == "" {
		return fmt.Errorf("tracker.spreadsheet_id is required when the tracker is enabled")
	}
	return nil
}

// Credentials returns the resolved secrets keyed by their environment names
func (c *Config) Credentials() map[string]string {
	return map[string]string{
		"TWITTER_API_KEY":       c.Twitter.APIKey,
		"TWITTER_API_SECRET":    c.Twitter.APISecret,
		"TWITTER_ACCESS_TOKEN":  c.Twitter.AccessToken,
		"TWITTER_ACCESS_SECRET": c.Twitter.AccessSecret,
		"HUGGINGFACE_API_TOKEN": c.HuggingFace.APIToken,
		"ANTHROPIC_API_KEY":     c.Anthropic.APIKey,
		"OPENAI_API_KEY":        c.OpenAI.APIKey,
	}
}

// Policy converts the content section into a formatter policy
func (c ContentConfig) Policy() formatter.Policy {
	return formatter.Policy{
		BannedPhrases:                c.BannedPhrases,
		BannedMatch:                  formatter.MatchMode(c.BannedMatch),
		AllowedEmojis:                c.AllowedEmojis,
		MaxLength:                    c.MaxLength,
		TruncateLength:               c.TruncateLength,
		Ellipsis:                     c.Ellipsis,
		MaxHashtags:                  c.MaxHashtags,
		SkipHashtagsIfTrendMentioned: c.SkipHashtagsIfTrendMentioned,
		MinViableLength:              c.MinViableLength,
		Placeholder:                  c.Placeholder,
	}
}

// RetryPolicy converts the publishing section into a retry policy
func (c PublishingConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:          c.MaxAttempts,
		MaxRateLimitWait:     c.MaxRateLimitWait,
		DefaultRateLimitWait: c.DefaultRateLimitWait,
		GenericErrors:        retry.GenericMode(c.GenericErrors),
		BaseDelay:            c.BaseDelay,
		MaxDelay:             c.MaxDelay,
	}
}

// Filter converts the trends section into the candidate filter
func (c TrendsConfig) Filter() source.FilterConfig {
	return source.FilterConfig{
		MinLength:     c.MinLength,
		MaxCandidates: c.MaxCandidates,
		Strict:        c.Strict,
		Fallback:      c.Fallback,
	}
}

// LoggerConfig converts the logging section for pkg/logger
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
		File:   c.File,
	}
}

// Limiter builds the per-service rate limiters
func (c RateLimitConfig) Limiter() *ratelimit.MultiLimiter {
	m := ratelimit.NewMultiLimiter()
	m.AddLimiter(ratelimit.LimiterTwitter, float64(c.TwitterPostsPerDay)/(24*60*60), 5)
	m.AddLimiter(ratelimit.LimiterHuggingFace, float64(c.HuggingFaceRequestsPerMinute)/60, 5)
	m.AddLimiter(ratelimit.LimiterAnthropic, float64(c.AnthropicRequestsPerMinute)/60, 2)
	m.AddLimiter(ratelimit.LimiterOpenAI, float64(c.OpenAIRequestsPerMinute)/60, 2)
	m.AddLimiter(ratelimit.LimiterTrends, float64(c.TrendRequestsPerMinute)/60, 5)
	return m
}
