// Package config はアプリケーション設定の読み込みと検証を提供する。
//
// 優先順位（低 → 高）:
//  1. 構造体の既定値（Default）
//  2. YAMLファイル（MENTWORK_CONFIG が設定されている場合）
//  3. 環境変数（MENTWORK_ プレフィックス）
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix は設定用環境変数のプレフィックス。
	EnvPrefix = "MENTWORK_"
	// EnvConfigFile はYAML設定ファイルのパスを指定する環境変数。
	EnvConfigFile = "MENTWORK_CONFIG"

	// EnvironmentProduction は本番環境を表すenvironmentの値。
	EnvironmentProduction = "production"
)

// ErrInvalidConfig は設定値が不正であることを表す。
var ErrInvalidConfig = errors.New("invalid config")

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `koanf:"database_url" validate:"required"`
	DBMaxOpenConns    int           `koanf:"db_max_open_conns" validate:"gte=0"`
	DBMaxIdleConns    int           `koanf:"db_max_idle_conns" validate:"gte=0"`
	DBConnMaxLifetime time.Duration `koanf:"db_conn_max_lifetime" validate:"gte=0"`

	// Server
	Environment       string `koanf:"environment" validate:"required"`
	ServerPort        string `koanf:"server_port" validate:"required,numeric"`
	LogLevel          string `koanf:"log_level" validate:"oneof=debug info warn error"`
	CORSAllowedOrigin string `koanf:"cors_allowed_origin" validate:"required"`
	TrustProxyHeaders bool   `koanf:"trust_proxy_headers"`

	// Webhook（本番環境ではすべて必須、それ以外は未設定ならローカルの既定値を使う）
	WebhookNewMentorURL     string        `koanf:"webhook_new_mentor_url" validate:"required_if=Environment production,omitempty,url"`
	WebhookNewMenteeURL     string        `koanf:"webhook_new_mentee_url" validate:"required_if=Environment production,omitempty,url"`
	WebhookNewProgramURL    string        `koanf:"webhook_new_program_url" validate:"required_if=Environment production,omitempty,url"`
	WebhookNewConnectionURL string        `koanf:"webhook_new_connection_url" validate:"required_if=Environment production,omitempty,url"`
	WebhookMatchingURL      string        `koanf:"webhook_matching_url" validate:"required_if=Environment production,omitempty,url"`
	WebhookTimeout          time.Duration `koanf:"webhook_timeout" validate:"gt=0"`
	WebhookMaxResponseSize  int64         `koanf:"webhook_max_response_size" validate:"gt=0"`
	WebhookSSRFProtection   bool          `koanf:"webhook_ssrf_protection"`

	// NATS（URLが空の場合はミラー配信しない）
	NATSURL           string `koanf:"nats_url" validate:"omitempty,url"`
	NATSSubjectPrefix string `koanf:"nats_subject_prefix"`

	// Rate Limit（req/min）
	RateLimitMatching int `koanf:"rate_limit_matching" validate:"gt=0"`

	// Cleanup
	OrphanRetention time.Duration `koanf:"orphan_retention" validate:"gt=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"gt=0"`
}

// Default は既定値で埋めたConfigを返す。DatabaseURLは既定値を持たない。
func Default() *Config {
	return &Config{
		DBMaxOpenConns:         25,
		DBMaxIdleConns:         5,
		DBConnMaxLifetime:      30 * time.Minute,
		Environment:            "development",
		ServerPort:             "8080",
		LogLevel:               "info",
		CORSAllowedOrigin:      "http://localhost:3000",
		WebhookTimeout:         30 * time.Second,
		WebhookMaxResponseSize: 1 << 20,
		NATSSubjectPrefix:      "mentwork",
		RateLimitMatching:      10,
		OrphanRetention:        24 * time.Hour,
		CleanupInterval:        time.Hour,
	}
}

// IsProduction は本番環境かを返す。
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// Load は既定値、YAMLファイル、環境変数の順に重ねてConfigを読み込む。
// 必須項目の欠落や不正な値がある場合はErrInvalidConfigをラップしたエラーを返す。
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// MENTWORK_DATABASE_URL -> database_url
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		key := strings.ToUpper(EnvPrefix + fe.Field())
		switch fe.Tag() {
		case "required", "required_if":
			missing = append(missing, key)
		default:
			invalid = append(invalid, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: required settings are not set: %v", ErrInvalidConfig, missing)
	}
	return fmt.Errorf("%w: invalid values: %v", ErrInvalidConfig, invalid)
}
