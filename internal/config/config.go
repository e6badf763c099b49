package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Postback  PostbackConfig
}

type AppConfig struct {
	Port string
	// NotFoundURL куда отправляем посетителя, если оффер не найден
	NotFoundURL string
}

type DBConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	OfferTTL time.Duration
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type PostbackConfig struct {
	Timeout time.Duration
}

// Load читает конфиг из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// .env необязателен, в контейнере всё приходит через окружение
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("NOT_FOUND_URL", "/404")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("OFFER_CACHE_TTL", 10*time.Minute)
	v.SetDefault("SESSION_TTL", 7*24*time.Hour)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("POSTBACK_TIMEOUT", 5*time.Second)
}

func fromViper(v *viper.Viper) *Config {
	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.NotFoundURL = v.GetString("NOT_FOUND_URL")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.OfferTTL = v.GetDuration("OFFER_CACHE_TTL")
	cfg.Session.Secret = v.GetString("SESSION_SECRET")
	cfg.Session.TTL = v.GetDuration("SESSION_TTL")
	cfg.Postback.Timeout = v.GetDuration("POSTBACK_TIMEOUT")

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize <= 0 {
		cfg.RateLimit.BurstSize = 20
	}

	return &cfg
}

// SetConfigFile с явным путём возвращает *fs.PathError, а не ConfigFileNotFoundError
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
