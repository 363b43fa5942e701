package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kelvins/geocoder"

	httpapi "github.com/i474232898/weather-lookup/internal/api/http"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/events"
	"github.com/i474232898/weather-lookup/internal/geo"
	"github.com/i474232898/weather-lookup/internal/preferences"
	"github.com/i474232898/weather-lookup/internal/scheduler"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Preference backend.
	kv, err := openKV(cfg)
	if err != nil {
		log.Fatalf("failed to open %s preference store: %v", cfg.PrefsBackend, err)
	}
	defer kv.Close()
	prefs := preferences.New(kv)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey,
		providers.WithBaseURL(cfg.OpenWeatherBaseURL),
		providers.WithBackoff(providers.BackoffConfig{
			MaxRetries:      cfg.ProviderMaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}),
	)

	opts := []weather.Option{
		weather.WithDefaultCountry(cfg.DefaultCountry),
		weather.WithDisplayZone(cfg.DisplayZone),
	}
	if locator := newLocator(cfg); locator != nil {
		opts = append(opts, weather.WithLocator(locator))
	}

	// State events are optional.
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("failed to create kafka producer: %v", err)
		}
		opts = append(opts, weather.WithObserver(producer))
	}

	// Core service orchestrating lookups.
	service := weather.NewService(provider, prefs, opts...)

	// Replay the last session in the background so the server starts listening at once.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.Restore(ctx); err != nil {
			log.Printf("INFO: restore of last lookup failed: %v", err)
		}
	}()

	sched := scheduler.New(cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-lookup",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          40 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-lookup",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}

	service.WaitIdle()
	if producer != nil {
		producer.Close()
	}
}

func openKV(cfg *config.AppConfig) (store.KV, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.PrefsBackend {
	case config.BackendRedis:
		return store.OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
	case config.BackendSQLite:
		return store.OpenSQLite(ctx, cfg.PrefsSQLitePath)
	default:
		log.Println("INFO: using in-memory preferences; they will not survive a restart")
		return store.NewMemoryStore(), nil
	}
}

// newLocator picks the device location source; nil means geolocation is unsupported.
func newLocator(cfg *config.AppConfig) weather.Locator {
	switch {
	case cfg.DeviceCoords != nil:
		return geo.Static{Coords: *cfg.DeviceCoords}
	case cfg.DeviceAddress != "" && cfg.GeocoderAPIKey != "":
		return geo.NewAddressLocator(cfg.GeocoderAPIKey, geocoder.Address{
			Street:  cfg.DeviceAddress,
			City:    cfg.DeviceCity,
			Country: cfg.DeviceCountry,
		})
	default:
		return nil
	}
}
