package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	Environment string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Таймзона бизнеса; все слоты живут в ней.
	Timezone string

	SlotDurationMinutes int
	LeadTimeMinutes     int
	MaxFutureDays       int

	WeekplanPath     string
	HolidayDatesPath string
	HolidayNamesPath string
	MigrationsPath   string

	DefaultLanguage string

	FirebaseCredentialsPath string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	// Читаем напрямую из переменных окружения (после godotenv.Load они там)
	cfg := &Config{
		DBDSN:       os.Getenv("DB_DSN"),
		Environment: os.Getenv("ENV"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Timezone: envDefault("TIMEZONE", "Europe/Warsaw"),

		SlotDurationMinutes: envInt("SLOT_DURATION_MINUTES", 30),
		LeadTimeMinutes:     envInt("LEAD_TIME_MINUTES", 60),
		MaxFutureDays:       envInt("MAX_FUTURE_DAYS", 60),

		WeekplanPath:     envDefault("WEEKPLAN_PATH", "resources/weekplan.json"),
		HolidayDatesPath: envDefault("HOLIDAY_DATES_PATH", "resources/holiday_dates.json"),
		HolidayNamesPath: envDefault("HOLIDAY_NAMES_PATH", "resources/holiday_names.json"),
		MigrationsPath:   envDefault("MIGRATIONS_PATH", "migrations"),

		DefaultLanguage: envDefault("DEFAULT_LANGUAGE", "en"),

		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    os.Getenv("EMAIL_FROM"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.SlotDurationMinutes <= 0 {
		return nil, fmt.Errorf("SLOT_DURATION_MINUTES must be positive")
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  %s is not a number, using default %d", key, fallback)
		return fallback
	}

	return n
}
