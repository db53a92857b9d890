package main

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration, read once at startup from
// the environment. Unlike the starting codebase's config, which split
// settings across a Config and a second JWT-era config file, every
// setting this binary actually consumes lives on one struct.
type Config struct {
	Host string
	Port string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Vault    VaultConfig
	Twitter  TwitterConfig
	Push     PushConfig
	CORS     CORSConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host string
	Port string
}

// AuthConfig selects and configures the identity.Verifier: an OIDC
// trust root in production, or a shared HMAC secret for local/dev use
// when no issuer is reachable.
type AuthConfig struct {
	UseOIDC    bool
	IssuerURL  string
	Audience   string
	HMACSecret string
}

type VaultConfig struct {
	EncryptionKey string
}

type TwitterConfig struct {
	ClientID     string
	ClientSecret string
}

type PushConfig struct {
	APNsTopic     string
	APNsAuthToken string
	FCMProjectID  string
	FCMAuthToken  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8000"),

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "postqueue"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},

		Auth: AuthConfig{
			UseOIDC:    getEnvAsBool("AUTH_USE_OIDC", false),
			IssuerURL:  getEnv("AUTH_ISSUER_URL", ""),
			Audience:   getEnv("AUTH_AUDIENCE", ""),
			HMACSecret: getEnv("AUTH_HMAC_SECRET", "dev-secret-change-this"),
		},

		Vault: VaultConfig{
			EncryptionKey: getEnv("VAULT_ENCRYPTION_KEY", ""),
		},

		Twitter: TwitterConfig{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		},

		Push: PushConfig{
			APNsTopic:     getEnv("APNS_TOPIC", ""),
			APNsAuthToken: getEnv("APNS_AUTH_TOKEN", ""),
			FCMProjectID:  getEnv("FCM_PROJECT_ID", ""),
			FCMAuthToken:  getEnv("FCM_AUTH_TOKEN", ""),
		},

		CORS: CORSConfig{
			AllowedOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		},
	}
}

func (c *Config) DatabaseDSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.DBName +
		" sslmode=" + c.Database.SSLMode
}

func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if boolValue, err := strconv.ParseBool(strValue); err == nil {
		return boolValue
	}
	return defaultValue
}
