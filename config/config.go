package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Storage. STORAGE_DRIVER is "mongo" or "memory".
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DatabaseName  string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payments and push.
	StripeKey               string `mapstructure:"STRIPE_KEY"`
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
	DefaultCurrency         string `mapstructure:"DEFAULT_CURRENCY"`
	PlatformCommissionPct   int64  `mapstructure:"PLATFORM_COMMISSION_PERCENT"`

	// Lifecycle windows.
	ReconcileInterval    time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	ReconcileBatchSize   int64         `mapstructure:"RECONCILE_BATCH_SIZE"`
	CallRingTimeout      time.Duration `mapstructure:"CALL_RING_TIMEOUT"`
	CallAbandonAfter     time.Duration `mapstructure:"CALL_ABANDON_AFTER"`
	UpcomingLead         time.Duration `mapstructure:"UPCOMING_LEAD"`
	NotifyTimeout        time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	AvailabilityCacheTTL time.Duration `mapstructure:"AVAILABILITY_CACHE_TTL"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)

	viper.SetDefault("STORAGE_DRIVER", "mongo")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "rivelya")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)

	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_PATH", "")
	viper.SetDefault("DEFAULT_CURRENCY", "eur")
	viper.SetDefault("PLATFORM_COMMISSION_PERCENT", 20)

	viper.SetDefault("RECONCILE_INTERVAL", "30s")
	viper.SetDefault("RECONCILE_BATCH_SIZE", 200)
	viper.SetDefault("CALL_RING_TIMEOUT", "30s")
	viper.SetDefault("CALL_ABANDON_AFTER", "2m")
	viper.SetDefault("UPCOMING_LEAD", "10m")
	viper.SetDefault("NOTIFY_TIMEOUT", "3s")
	viper.SetDefault("AVAILABILITY_CACHE_TTL", "60s")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// UsesMemoryStorage reports whether repositories should be kept in process memory.
func UsesMemoryStorage() bool {
	return AppConfig.StorageDriver == "memory"
}
