package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	ObjectStore ObjectStoreConfig
	CORS        CORSConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
	// ShortLinkBaseURL используется для колонки short_url в экспорте
	ShortLinkBaseURL string
}

type DBConfig struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	MaxConns       int32
	MigrateOnStart bool
}

// DSN возвращает строку подключения: DATABASE_URL имеет приоритет над отдельными полями
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Enabled сообщает, настроен ли Redis (журнал экспортов опционален)
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type ObjectStoreConfig struct {
	Endpoint        string
	AccountID       string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

// ResolvedEndpoint возвращает явный endpoint или endpoint Cloudflare R2 по account id
func (c ObjectStoreConfig) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.AccountID != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}
	return ""
}

// Complete проверяет, что заданы все параметры, без которых выгрузка невозможна
func (c ObjectStoreConfig) Complete() bool {
	return c.ResolvedEndpoint() != "" &&
		c.AccessKeyID != "" &&
		c.SecretAccessKey != "" &&
		c.Bucket != "" &&
		c.PublicURL != ""
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load читает конфигурацию из переменных окружения; .env подхватывается, если он есть
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.Env = v.GetString("APP_ENV")
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")
	cfg.App.ShortLinkBaseURL = strings.TrimRight(v.GetString("SHORT_LINK_BASE_URL"), "/")

	cfg.DB.URL = v.GetString("DATABASE_URL")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.MaxConns = v.GetInt32("DB_MAX_CONNS")
	cfg.DB.MigrateOnStart = v.GetBool("MIGRATE_ON_START")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")

	cfg.ObjectStore.Endpoint = v.GetString("S3_ENDPOINT")
	cfg.ObjectStore.AccountID = v.GetString("R2_ACCOUNT_ID")
	cfg.ObjectStore.Region = v.GetString("S3_REGION")
	cfg.ObjectStore.AccessKeyID = v.GetString("S3_ACCESS_KEY_ID")
	cfg.ObjectStore.SecretAccessKey = v.GetString("S3_SECRET_ACCESS_KEY")
	cfg.ObjectStore.Bucket = v.GetString("S3_BUCKET")
	cfg.ObjectStore.PublicURL = v.GetString("S3_PUBLIC_URL")

	cfg.CORS.AllowedOrigins = parseList(v.GetString("CORS_ALLOWED_ORIGINS"))

	if cfg.DB.URL == "" && cfg.DB.Name == "" {
		return nil, fmt.Errorf("database is not configured: set DATABASE_URL or DB_NAME")
	}

	return &cfg, nil
}

// parseList разбирает список через запятую, пустые элементы отбрасываются
func parseList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
