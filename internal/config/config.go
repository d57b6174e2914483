package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Wallpaper WallpaperConfig
	Freesound FreesoundConfig
	Render    RenderConfig
	Redis     RedisConfig
	R2        R2Config
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ApplicationRoot string
	BaseURL         string
	Env             string
	LogLevel        string
}

type DataConfig struct {
	Dir         string
	CounterFile string
}

type WallpaperConfig struct {
	ColorSchemes    []string
	MinDimension    int
	MaxDimension    int
	MaxFFTSize      int
	MaxDuration     float64 // seconds
	ThumbnailHeight int
}

type FreesoundConfig struct {
	BaseURL  string
	ClientID string
	Username string
	Password string
}

type RenderConfig struct {
	ServiceURL     string
	PollIntervalMS int
	TimeoutSec     int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type RateLimitConfig struct {
	WallpapersPerMin int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("FS_CLIENT_ID")
	readSecret("FS_PASSWORD")
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.host", "HOST")
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("server.application_root", "APPLICATION_ROOT")
	_ = viper.BindEnv("server.base_url", "BASE_URL")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("data.dir", "DATA_DIR")
	_ = viper.BindEnv("data.counter_file", "COUNTER_FILE")
	_ = viper.BindEnv("wallpaper.color_schemes", "COLOR_SCHEMES_ENABLED")
	_ = viper.BindEnv("wallpaper.min_dimension", "MIN_DIMENSION")
	_ = viper.BindEnv("wallpaper.max_dimension", "MAX_DIMENSION")
	_ = viper.BindEnv("wallpaper.max_fft_size", "MAX_FFT_SIZE")
	_ = viper.BindEnv("wallpaper.max_duration", "MAX_SOUND_DURATION")
	_ = viper.BindEnv("wallpaper.thumbnail_height", "THUMBNAIL_HEIGHT")
	_ = viper.BindEnv("freesound.base_url", "FREESOUND_BASE_URL")
	_ = viper.BindEnv("freesound.client_id", "FS_CLIENT_ID")
	_ = viper.BindEnv("freesound.username", "FS_UNAME")
	_ = viper.BindEnv("freesound.password", "FS_PASSWORD")
	_ = viper.BindEnv("render.service_url", "RENDER_SERVICE_URL")
	_ = viper.BindEnv("render.poll_interval_ms", "RENDER_POLL_INTERVAL_MS")
	_ = viper.BindEnv("render.timeout_sec", "RENDER_TIMEOUT_SEC")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("ratelimit.wallpapers_per_min", "RATELIMIT_WALLPAPERS_PER_MIN")

	// Defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.application_root", "")
	viper.SetDefault("server.base_url", "http://localhost:5000/")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.counter_file", "./data/counter.json")
	viper.SetDefault("wallpaper.color_schemes", "Freesound2")
	viper.SetDefault("wallpaper.min_dimension", 10)
	viper.SetDefault("wallpaper.max_dimension", 6000)
	viper.SetDefault("wallpaper.max_fft_size", 65536)
	viper.SetDefault("wallpaper.max_duration", 600)
	viper.SetDefault("wallpaper.thumbnail_height", 180)
	viper.SetDefault("freesound.base_url", "https://freesound.org")
	viper.SetDefault("render.poll_interval_ms", 500)
	viper.SetDefault("render.timeout_sec", 600)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.wallpapers_per_min", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:            viper.GetString("server.host"),
			Port:            viper.GetString("server.port"),
			ApplicationRoot: viper.GetString("server.application_root"),
			BaseURL:         viper.GetString("server.base_url"),
			Env:             viper.GetString("server.env"),
			LogLevel:        viper.GetString("server.log_level"),
		},
		Data: DataConfig{
			Dir:         viper.GetString("data.dir"),
			CounterFile: viper.GetString("data.counter_file"),
		},
		Wallpaper: WallpaperConfig{
			ColorSchemes:    splitSchemes(viper.GetString("wallpaper.color_schemes")),
			MinDimension:    viper.GetInt("wallpaper.min_dimension"),
			MaxDimension:    viper.GetInt("wallpaper.max_dimension"),
			MaxFFTSize:      viper.GetInt("wallpaper.max_fft_size"),
			MaxDuration:     viper.GetFloat64("wallpaper.max_duration"),
			ThumbnailHeight: viper.GetInt("wallpaper.thumbnail_height"),
		},
		Freesound: FreesoundConfig{
			BaseURL:  viper.GetString("freesound.base_url"),
			ClientID: viper.GetString("freesound.client_id"),
			Username: viper.GetString("freesound.username"),
			Password: viper.GetString("freesound.password"),
		},
		Render: RenderConfig{
			ServiceURL:     viper.GetString("render.service_url"),
			PollIntervalMS: viper.GetInt("render.poll_interval_ms"),
			TimeoutSec:     viper.GetInt("render.timeout_sec"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		RateLimit: RateLimitConfig{
			WallpapersPerMin: viper.GetInt("ratelimit.wallpapers_per_min"),
		},
	}

	return cfg, nil
}

// splitSchemes parses the comma-separated COLOR_SCHEMES_ENABLED list
func splitSchemes(raw string) []string {
	parts := strings.Split(raw, ",")
	schemes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			schemes = append(schemes, p)
		}
	}
	return schemes
}
