package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Worker    WorkerConfig
	Foreman   ForemanConfig
	Alert     AlertConfig
	API       APIConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type ProvidersConfig struct {
	FalKey          string
	ReplicateToken  string
	RequestTimeout  time.Duration
	FalBaseURL      string
	ReplicateAPIURL string
}

type WorkerConfig struct {
	MaxBatchSize    int
	PollInterval    time.Duration
	GenerateTimeout time.Duration
	MaxWorkers      int
	SpawnInterval   time.Duration
}

type ForemanConfig struct {
	CheckInterval  time.Duration
	StallThreshold time.Duration
}

type AlertConfig struct {
	BotToken string
	ChatID   int64
}

type APIConfig struct {
	Key string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PROVIDER_REQUEST_TIMEOUT", "120s")
	viper.SetDefault("FAL_BASE_URL", "https://fal.run")
	viper.SetDefault("REPLICATE_API_URL", "https://api.replicate.com/v1")
	viper.SetDefault("WORKER_MAX_BATCH_SIZE", 5)
	viper.SetDefault("WORKER_POLL_INTERVAL", "10s")
	viper.SetDefault("WORKER_GENERATE_TIMEOUT", "5m")
	viper.SetDefault("WORKER_MAX_WORKERS", 4)
	viper.SetDefault("WORKER_SPAWN_INTERVAL", "15s")
	viper.SetDefault("FOREMAN_CHECK_INTERVAL", "60s")
	viper.SetDefault("FOREMAN_STALL_THRESHOLD", "3m")

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Providers: ProvidersConfig{
			FalKey:          viper.GetString("FAL_KEY"),
			ReplicateToken:  viper.GetString("REPLICATE_API_TOKEN"),
			RequestTimeout:  durationSetting("PROVIDER_REQUEST_TIMEOUT", 120*time.Second),
			FalBaseURL:      viper.GetString("FAL_BASE_URL"),
			ReplicateAPIURL: viper.GetString("REPLICATE_API_URL"),
		},
		Worker: WorkerConfig{
			MaxBatchSize:    viper.GetInt("WORKER_MAX_BATCH_SIZE"),
			PollInterval:    durationSetting("WORKER_POLL_INTERVAL", 10*time.Second),
			GenerateTimeout: durationSetting("WORKER_GENERATE_TIMEOUT", 5*time.Minute),
			MaxWorkers:      viper.GetInt("WORKER_MAX_WORKERS"),
			SpawnInterval:   durationSetting("WORKER_SPAWN_INTERVAL", 15*time.Second),
		},
		Foreman: ForemanConfig{
			CheckInterval:  durationSetting("FOREMAN_CHECK_INTERVAL", 60*time.Second),
			StallThreshold: durationSetting("FOREMAN_STALL_THRESHOLD", 3*time.Minute),
		},
		Alert: AlertConfig{
			BotToken: viper.GetString("ALERT_BOT_TOKEN"),
			ChatID:   viper.GetInt64("ALERT_CHAT_ID"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Providers.FalKey == "" && cfg.Providers.ReplicateToken == "" {
		log.Println("WARNING: no provider credentials configured (FAL_KEY / REPLICATE_API_TOKEN)")
	}

	return cfg, nil
}

func durationSetting(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
