package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUrl     string
	Port      string
	JWTSecret string

	LogLevel  string
	LogPretty bool

	ReceiptDir string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	PixWebhookSecret string

	RateLimitRPS   float64
	RateLimitBurst int
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	return Config{
		DBUrl:     os.Getenv("DB_URL"),
		Port:      getEnv("PORT", "8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", false),

		ReceiptDir: getEnv("RECEIPT_DIR", "uploads/comprovantes"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "nao-responda@cashback.local"),
		MailFromName: getEnv("MAIL_FROM_NAME", "Cashback"),

		PixWebhookSecret: os.Getenv("PIX_WEBHOOK_SECRET"),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
