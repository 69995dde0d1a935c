package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	FrontendURL   string

	// Intent processing service
	ProcessorURL string
	// Optional static bearer token for local testing; the OAuth flow or the
	// database-stored session credential takes precedence.
	ProcessorToken string

	// Session credential persistence
	TokenFile   string
	DatabaseURL string
	RedisAddr   string

	// Platform OAuth
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthRedirectURL  string
	OAuthScopes       []string

	// Reply template overrides
	RepliesFile string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:              getEnvDefault("PORT", "8080"),
		AllowedOrigin:     getEnvDefault("ALLOWED_ORIGIN", "*"),
		FrontendURL:       getEnvDefault("FRONTEND_URL", "http://localhost:3000"),
		ProcessorURL:      getEnvDefault("PROCESSOR_URL", "http://localhost:9000"),
		ProcessorToken:    os.Getenv("PROCESSOR_TOKEN"),
		TokenFile:         getEnvDefault("TOKEN_FILE", "data/session_token.json"),
		DatabaseURL:       os.Getenv("DB_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		OAuthClientID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:      os.Getenv("OAUTH_AUTH_URL"),
		OAuthTokenURL:     os.Getenv("OAUTH_TOKEN_URL"),
		OAuthRedirectURL:  getEnvDefault("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
		OAuthScopes:       getEnvListDefault("OAUTH_SCOPES", []string{"payments", "accounts"}),
		RepliesFile:       getEnvDefault("REPLIES_FILE", "prompts/replies.yaml"),
	}
	if cfg.ProcessorToken == "" && cfg.OAuthClientID == "" {
		log.Println("warning: neither PROCESSOR_TOKEN nor OAUTH_CLIENT_ID is set; processor calls will be unauthorized until a session signs in")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
