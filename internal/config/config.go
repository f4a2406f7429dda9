package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	Port      string
	StockFile string

	OperatorEmail        string
	OperatorPasswordHash string

	DatabaseURL string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	KafkaBrokers []string
	AuditTopic   string

	SessionIdleTimeout int // minutes
}

// LoadEnv loads a .env file from the working directory or its parents.
// Missing files are fine; the environment may already be populated.
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}
	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			return
		}
	}
}

func FromEnv() Config {
	cfg := Config{
		Port:                 getenv("PORT", "3000"),
		StockFile:            getenv("STOCK_FILE", "stock.json"),
		OperatorEmail:        getenv("ADMIN_EMAIL", ""),
		OperatorPasswordHash: getenv("ADMIN_PASSWORD_HASH", ""),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		SMTPHost:             getenv("SMTP_HOST", ""),
		SMTPPort:             getenvInt("SMTP_PORT", 587),
		SMTPUser:             getenv("SMTP_USER", ""),
		SMTPPass:             getenv("SMTP_PASS", ""),
		AuditTopic:           getenv("AUDIT_TOPIC", "storefront_audit"),
		SessionIdleTimeout:   getenvInt("SESSION_IDLE_MINUTES", 20),
	}

	if brokers := getenv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
