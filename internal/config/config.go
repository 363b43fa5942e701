package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Preference backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	// HTTPTimeout bounds a single outbound provider call.
	HTTPTimeout time.Duration

	// ProviderMaxRetries enables transport retries; 0 keeps lookups single-shot.
	ProviderMaxRetries int

	// DefaultCountry is paired with postal-code searches.
	DefaultCountry string

	// DisplayZone renders hourly clock times.
	DisplayZone *time.Location

	// Preference persistence.
	PrefsBackend    string
	PrefsSQLitePath string
	RedisURL        string
	RedisKeyPrefix  string

	// Kafka state events; empty brokers disable publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// RefreshInterval re-issues the active lookup periodically (0 = disabled).
	RefreshInterval time.Duration

	// Device location: fixed coordinates or a geocoded address.
	DeviceCoords   *weather.Coordinates
	DeviceAddress  string
	DeviceCity     string
	DeviceCountry  string
	GeocoderAPIKey string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 0)
	if cfg.ProviderMaxRetries < 0 {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_RETRIES: must not be negative")
	}

	cfg.DefaultCountry = getenvDefault("DEFAULT_COUNTRY", "TR")

	cfg.DisplayZone = time.Local
	if tz := os.Getenv("DISPLAY_TIMEZONE"); tz != "" {
		zone, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
		}
		cfg.DisplayZone = zone
	}

	cfg.PrefsBackend = strings.ToLower(getenvDefault("PREFS_BACKEND", BackendSQLite))
	switch cfg.PrefsBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return nil, fmt.Errorf("invalid PREFS_BACKEND %q: use memory, sqlite or redis", cfg.PrefsBackend)
	}
	cfg.PrefsSQLitePath = getenvDefault("PREFS_SQLITE_PATH", "data/preferences.db")
	cfg.RedisURL = getenvDefault("REDIS_URL", "redis://localhost:6379")
	cfg.RedisKeyPrefix = getenvDefault("REDIS_KEY_PREFIX", "weather-lookup:")

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", "weather-state")

	interval, err := time.ParseDuration(getenvDefault("REFRESH_INTERVAL", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	coords, err := loadDeviceCoords()
	if err != nil {
		return nil, err
	}
	cfg.DeviceCoords = coords
	cfg.DeviceAddress = os.Getenv("DEVICE_ADDRESS")
	cfg.DeviceCity = os.Getenv("DEVICE_CITY")
	cfg.DeviceCountry = os.Getenv("DEVICE_COUNTRY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func loadDeviceCoords() (*weather.Coordinates, error) {
	latStr, lonStr := os.Getenv("DEVICE_LAT"), os.Getenv("DEVICE_LON")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, fmt.Errorf("DEVICE_LAT and DEVICE_LON must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid DEVICE_LAT %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("invalid DEVICE_LON %q", lonStr)
	}
	return &weather.Coordinates{Lat: lat, Lon: lon}, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
