package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/timing"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Renderer   RendererConfig
	Speech     SpeechConfig
	R2         R2Config
	Zitadel    ZitadelConfig
	Gateway    GatewayConfig
	Database   DatabaseConfig
	Library    LibraryConfig
	Worker     WorkerConfig
	Validation manifest.Thresholds
	Timing     timing.Thresholds
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	ValidatePerMin  int
	GeneratePerHour int
	ReportsPerMin   int
}

type RendererConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxWait      time.Duration
}

type SpeechConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type DatabaseConfig struct {
	Path string
}

type LibraryConfig struct {
	Dir string
}

type WorkerConfig struct {
	Concurrency int
}

// Load reads configuration from an optional config.yaml, a .env file when
// present, and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("RENDERER_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	bindEnv(v)
	setDefaults(v)

	// Config file is optional
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("ratelimit.validate_per_min", "RATELIMIT_VALIDATE_PER_MIN")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("ratelimit.reports_per_min", "RATELIMIT_REPORTS_PER_MIN")
	_ = v.BindEnv("renderer.api_key", "RENDERER_API_KEY")
	_ = v.BindEnv("renderer.base_url", "RENDERER_BASE_URL")
	_ = v.BindEnv("renderer.poll_interval", "RENDERER_POLL_INTERVAL")
	_ = v.BindEnv("renderer.max_wait", "RENDERER_MAX_WAIT")
	_ = v.BindEnv("speech.service_url", "SPEECH_SERVICE_URL")
	_ = v.BindEnv("speech.timeout", "SPEECH_SERVICE_TIMEOUT")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("library.dir", "LIBRARY_DIR")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.validate_per_min", 60)
	v.SetDefault("ratelimit.generate_per_hour", 10)
	v.SetDefault("ratelimit.reports_per_min", 30)

	// Renderer defaults
	v.SetDefault("renderer.poll_interval", "5s")
	v.SetDefault("renderer.max_wait", "15m")

	// Speech service defaults
	v.SetDefault("speech.service_url", "")
	v.SetDefault("speech.timeout", 30)

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("database.path", "data/generations.db")
	v.SetDefault("library.dir", "library")
	v.SetDefault("worker.concurrency", 10)

	// Advisory thresholds
	vt := manifest.DefaultThresholds()
	v.SetDefault("validation.max_total_seconds", vt.MaxTotalSeconds)
	v.SetDefault("validation.max_voiceover_chars", vt.MaxVoiceoverChars)
	v.SetDefault("validation.max_actions_per_shot", vt.MaxActionsPerShot)
	v.SetDefault("validation.speech_words_per_min", vt.SpeechWordsPerMin)

	tt := timing.DefaultThresholds()
	v.SetDefault("timing.slow_wpm", tt.SlowWPM)
	v.SetDefault("timing.fast_wpm", tt.FastWPM)
	v.SetDefault("timing.very_fast_wpm", tt.VeryFastWPM)
	v.SetDefault("timing.long_silence_seconds", tt.LongSilenceSeconds)
	v.SetDefault("timing.large_adjustment_seconds", tt.LargeAdjustment)
	v.SetDefault("timing.adjustment_tolerance", tt.AdjustmentTolerance)
	v.SetDefault("timing.word_time_tolerance", tt.WordTimeTolerance)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			ValidatePerMin:  v.GetInt("ratelimit.validate_per_min"),
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
			ReportsPerMin:   v.GetInt("ratelimit.reports_per_min"),
		},
		Renderer: RendererConfig{
			APIKey:       v.GetString("renderer.api_key"),
			BaseURL:      v.GetString("renderer.base_url"),
			PollInterval: v.GetDuration("renderer.poll_interval"),
			MaxWait:      v.GetDuration("renderer.max_wait"),
		},
		Speech: SpeechConfig{
			ServiceURL: v.GetString("speech.service_url"),
			Timeout:    v.GetInt("speech.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Library: LibraryConfig{
			Dir: v.GetString("library.dir"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
		},
		Validation: manifest.Thresholds{
			MaxTotalSeconds:   v.GetFloat64("validation.max_total_seconds"),
			MaxVoiceoverChars: v.GetInt("validation.max_voiceover_chars"),
			MaxActionsPerShot: v.GetInt("validation.max_actions_per_shot"),
			SpeechWordsPerMin: v.GetFloat64("validation.speech_words_per_min"),
		},
		Timing: timing.Thresholds{
			SlowWPM:             v.GetFloat64("timing.slow_wpm"),
			FastWPM:             v.GetFloat64("timing.fast_wpm"),
			VeryFastWPM:         v.GetFloat64("timing.very_fast_wpm"),
			LongSilenceSeconds:  v.GetFloat64("timing.long_silence_seconds"),
			LargeAdjustment:     v.GetFloat64("timing.large_adjustment_seconds"),
			AdjustmentTolerance: v.GetFloat64("timing.adjustment_tolerance"),
			WordTimeTolerance:   v.GetFloat64("timing.word_time_tolerance"),
		},
	}
}
