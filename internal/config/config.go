// internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Cache    CacheConfig
	Archive  ArchiveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EngineConfig holds every run threshold. All values are overridable per run
// without code changes; components receive this struct at construction.
type EngineConfig struct {
	// Classification thresholds (days of stock).
	OverstockDays       float64
	UnderstockDays      float64
	OverstockMultiplier float64
	MinVelocity         float64
	SentinelDays        float64
	VelocityWindowDays  int

	// Viability thresholds.
	MinROIPercent    float64
	MaxShippingRatio float64
	MinMarginPercent float64
	MinTransferValue float64

	// Freight model.
	FreightBaseCost           float64
	DefaultDistanceMultiplier float64
	DefaultWeightGrams        float64
	AvgSpeedKMH               float64
	LoadTimeMinutes           float64
	IdealKMPerStop            float64

	// Run bounds and safety.
	MaxCandidates      int
	MaxRecommendations int
	MaxAutonomousValue float64
	SimulationMode     bool
	WorkerCount        int
	RunTimeout         time.Duration
	RecommendationTTL  time.Duration
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RunTTLSeconds int
}

// ArchiveConfig points at the S3-compatible bucket receiving run payloads.
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "transfers")
		viper.SetDefault("DB_SSLMODE", "disable")

		viper.SetDefault("ENGINE_OVERSTOCK_DAYS", 30.0)
		viper.SetDefault("ENGINE_UNDERSTOCK_DAYS", 7.0)
		viper.SetDefault("ENGINE_OVERSTOCK_MULTIPLIER", 1.5)
		viper.SetDefault("ENGINE_MIN_VELOCITY", 0.05)
		viper.SetDefault("ENGINE_SENTINEL_DAYS", 999.0)
		viper.SetDefault("ENGINE_VELOCITY_WINDOW_DAYS", 30)
		viper.SetDefault("ENGINE_MIN_ROI_PERCENT", 15.0)
		viper.SetDefault("ENGINE_MAX_SHIPPING_RATIO", 0.20)
		viper.SetDefault("ENGINE_MIN_MARGIN_PERCENT", 25.0)
		viper.SetDefault("ENGINE_MIN_TRANSFER_VALUE", 50.0)
		viper.SetDefault("ENGINE_FREIGHT_BASE_COST", 15.0)
		viper.SetDefault("ENGINE_DEFAULT_DISTANCE_MULTIPLIER", 1.2)
		viper.SetDefault("ENGINE_DEFAULT_WEIGHT_GRAMS", 100.0)
		viper.SetDefault("ENGINE_AVG_SPEED_KMH", 40.0)
		viper.SetDefault("ENGINE_LOAD_TIME_MINUTES", 15.0)
		viper.SetDefault("ENGINE_IDEAL_KM_PER_STOP", 10.0)
		viper.SetDefault("ENGINE_MAX_CANDIDATES", 20000)
		viper.SetDefault("ENGINE_MAX_RECOMMENDATIONS", 50)
		viper.SetDefault("ENGINE_MAX_AUTONOMOUS_VALUE", 5000.0)
		viper.SetDefault("ENGINE_SIMULATION_MODE", true)
		viper.SetDefault("ENGINE_WORKER_COUNT", 4)
		viper.SetDefault("ENGINE_RUN_TIMEOUT_SECONDS", 300)
		viper.SetDefault("ENGINE_RECOMMENDATION_TTL_MINUTES", 240)

		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_RUN_TTL_SECONDS", 300)

		viper.SetDefault("ARCHIVE_ENABLED", false)
		viper.SetDefault("ARCHIVE_ENDPOINT", "")
		viper.SetDefault("ARCHIVE_ACCESS_KEY", "")
		viper.SetDefault("ARCHIVE_SECRET_KEY", "")
		viper.SetDefault("ARCHIVE_BUCKET", "transfer-runs")
		viper.SetDefault("ARCHIVE_REGION", "us-east-1")
		viper.SetDefault("ARCHIVE_USE_SSL", true)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Engine: EngineConfig{
				OverstockDays:             viper.GetFloat64("ENGINE_OVERSTOCK_DAYS"),
				UnderstockDays:            viper.GetFloat64("ENGINE_UNDERSTOCK_DAYS"),
				OverstockMultiplier:       viper.GetFloat64("ENGINE_OVERSTOCK_MULTIPLIER"),
				MinVelocity:               viper.GetFloat64("ENGINE_MIN_VELOCITY"),
				SentinelDays:              viper.GetFloat64("ENGINE_SENTINEL_DAYS"),
				VelocityWindowDays:        viper.GetInt("ENGINE_VELOCITY_WINDOW_DAYS"),
				MinROIPercent:             viper.GetFloat64("ENGINE_MIN_ROI_PERCENT"),
				MaxShippingRatio:          viper.GetFloat64("ENGINE_MAX_SHIPPING_RATIO"),
				MinMarginPercent:          viper.GetFloat64("ENGINE_MIN_MARGIN_PERCENT"),
				MinTransferValue:          viper.GetFloat64("ENGINE_MIN_TRANSFER_VALUE"),
				FreightBaseCost:           viper.GetFloat64("ENGINE_FREIGHT_BASE_COST"),
				DefaultDistanceMultiplier: viper.GetFloat64("ENGINE_DEFAULT_DISTANCE_MULTIPLIER"),
				DefaultWeightGrams:        viper.GetFloat64("ENGINE_DEFAULT_WEIGHT_GRAMS"),
				AvgSpeedKMH:               viper.GetFloat64("ENGINE_AVG_SPEED_KMH"),
				LoadTimeMinutes:           viper.GetFloat64("ENGINE_LOAD_TIME_MINUTES"),
				IdealKMPerStop:            viper.GetFloat64("ENGINE_IDEAL_KM_PER_STOP"),
				MaxCandidates:             viper.GetInt("ENGINE_MAX_CANDIDATES"),
				MaxRecommendations:        viper.GetInt("ENGINE_MAX_RECOMMENDATIONS"),
				MaxAutonomousValue:        viper.GetFloat64("ENGINE_MAX_AUTONOMOUS_VALUE"),
				SimulationMode:            viper.GetBool("ENGINE_SIMULATION_MODE"),
				WorkerCount:               viper.GetInt("ENGINE_WORKER_COUNT"),
				RunTimeout:                time.Duration(viper.GetInt("ENGINE_RUN_TIMEOUT_SECONDS")) * time.Second,
				RecommendationTTL:         time.Duration(viper.GetInt("ENGINE_RECOMMENDATION_TTL_MINUTES")) * time.Minute,
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				RunTTLSeconds: viper.GetInt("CACHE_RUN_TTL_SECONDS"),
			},
			Archive: ArchiveConfig{
				Enabled:   viper.GetBool("ARCHIVE_ENABLED"),
				Endpoint:  viper.GetString("ARCHIVE_ENDPOINT"),
				AccessKey: viper.GetString("ARCHIVE_ACCESS_KEY"),
				SecretKey: viper.GetString("ARCHIVE_SECRET_KEY"),
				Bucket:    viper.GetString("ARCHIVE_BUCKET"),
				Region:    viper.GetString("ARCHIVE_REGION"),
				UseSSL:    viper.GetBool("ARCHIVE_USE_SSL"),
			},
		}
	})

	return instance
}

// DefaultEngineConfig returns the engine thresholds with their stock defaults,
// independent of the process environment. Used by tests and per-run overrides.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		OverstockDays:             30,
		UnderstockDays:            7,
		OverstockMultiplier:       1.5,
		MinVelocity:               0.05,
		SentinelDays:              999,
		VelocityWindowDays:        30,
		MinROIPercent:             15,
		MaxShippingRatio:          0.20,
		MinMarginPercent:          25,
		MinTransferValue:          50,
		FreightBaseCost:           15,
		DefaultDistanceMultiplier: 1.2,
		DefaultWeightGrams:        100,
		AvgSpeedKMH:               40,
		LoadTimeMinutes:           15,
		IdealKMPerStop:            10,
		MaxCandidates:             20000,
		MaxRecommendations:        50,
		MaxAutonomousValue:        5000,
		SimulationMode:            true,
		WorkerCount:               4,
		RunTimeout:                5 * time.Minute,
		RecommendationTTL:         4 * time.Hour,
	}
}
