package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/star/skysat/internal/api"
	"github.com/star/skysat/internal/auth"
	"github.com/star/skysat/internal/cache"
	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/stream"
	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/tracker"
)

// tleConfig holds catalog acquisition settings.
type tleConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: loadLogLevel(),
	}))

	addr := os.Getenv("SKYSAT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger)
	store := tle.NewStore()
	tleCache := tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles)

	// Warm start from the newest cached snapshot.
	if ds, err := tleCache.LoadDataset("cache", logger); err != nil {
		logger.Info("no usable TLE cache, starting without TLE data", "error", err)
	} else {
		store.Set(ds)
		metrics.SetTLEDatasetCount(len(ds.Satellites))
		logger.Info("loaded TLE data from cache",
			"count", len(ds.Satellites),
			"cached_at", ds.FetchedAt.Format(time.RFC3339),
		)
	}

	prop := loadPropConfig(logger)
	proj := loadProjection(logger)

	positions := cache.NewPositionCache(loadCacheConfig(logger), store, logger)
	tr := tracker.New(store, positions, prop, proj, logger).WithWorkers(loadSkyWorkers(logger))

	streamCfg := loadStreamConfig(logger)
	streams := stream.NewHandler(tr, store, streamCfg, logger)

	var refresher *tle.Refresher
	if tleCfg.EnableFetch {
		fetcher := tle.NewFetcher(tleCfg.SourceURL, logger, tleCfg.ExtraSourceURLs...)
		refresher = tle.NewRefresher(fetcher, tleCache, store, logger)
	}

	apiCfg := loadAPIConfig(logger)
	apiCfg.Addr = addr
	apiCfg.Auth = authCfg
	srv := api.NewServer(apiCfg, logger, store, tr, positions, refresher, streams)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go positions.Start(ctx)

	if refresher != nil {
		go refresher.Run(ctx, tleCfg.MaxAge, refreshCheckInterval(tleCfg.MaxAge))
	}

	// Background goroutine to update TLE dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetTLEDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"tle_fetch_enabled", tleCfg.EnableFetch,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshCheckInterval checks a tenth as often as the dataset may age,
// bounded to [1m, 1h].
func refreshCheckInterval(maxAge time.Duration) time.Duration {
	d := maxAge / 10
	if d < time.Minute {
		d = time.Minute
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

func loadLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("SKYSAT_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SKYSAT_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SKYSAT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SKYSAT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SKYSAT_AUTH_TOKEN is required when auth is enabled")
		}
		cfg.PublicPrefixes = splitList(os.Getenv("SKYSAT_AUTH_PUBLIC_PREFIXES"))
		logger.Info("auth enabled", "public_prefixes", cfg.PublicPrefixes)
	}

	return cfg, nil
}

func loadAPIConfig(logger *slog.Logger) api.Config {
	cfg := api.Config{
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}

	if v := os.Getenv("SKYSAT_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SKYSAT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	if v := os.Getenv("SKYSAT_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			logger.Warn("invalid SKYSAT_RATE_LIMIT_RPS value, using default", "value", v, "default", cfg.RateLimitRPS)
		} else {
			cfg.RateLimitRPS = f
		}
	}

	if v := os.Getenv("SKYSAT_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYSAT_RATE_LIMIT_BURST value, using default", "value", v, "default", cfg.RateLimitBurst)
		} else {
			cfg.RateLimitBurst = n
		}
	}

	logger.Info("api config",
		"trust_proxy", cfg.TrustProxy,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		Step:   time.Second,
		Buffer: 60 * time.Second,
	}

	if v := os.Getenv("SKYSAT_CACHE_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid SKYSAT_CACHE_STEP value, using default", "value", v, "default", 1)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYSAT_CACHE_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYSAT_CACHE_BUFFER value, using default", "value", v, "default", 60)
		} else {
			cfg.Buffer = time.Duration(n) * time.Second
		}
	}

	logger.Info("cache config",
		"step_seconds", cfg.Step.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
		"enabled", cfg.Step > 0,
	)

	return cfg
}

func loadPropConfig(logger *slog.Logger) orbit.Propagator {
	prop := orbit.DefaultPropagator()

	if v := os.Getenv("SKYSAT_PROP_EPOCH_SHIFT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Warn("invalid SKYSAT_PROP_EPOCH_SHIFT value, using default", "value", v, "default", prop.EpochShift.String())
		} else {
			prop.EpochShift = d
		}
	}

	solverName := os.Getenv("SKYSAT_PROP_SOLVER")
	if solver, err := orbit.SolverByName(solverName); err != nil {
		logger.Warn("invalid SKYSAT_PROP_SOLVER value, using series", "value", solverName, "error", err)
		solverName = orbit.SolverSeries
	} else {
		prop.Solver = solver
		if solverName == "" {
			solverName = orbit.SolverSeries
		}
	}

	logger.Info("propagation config",
		"epoch_shift", prop.EpochShift.String(),
		"solver", solverName,
	)
	return prop
}

func loadProjection(logger *slog.Logger) geo.Projector {
	name := os.Getenv("SKYSAT_PROJECTION")
	proj, err := geo.ProjectorByName(name)
	if err != nil {
		logger.Warn("invalid SKYSAT_PROJECTION value, using reference", "value", name, "error", err)
		return geo.DefaultProjector()
	}
	if name == "" {
		name = geo.ProjectionReference
	}
	logger.Info("projection config", "projection", name)
	return proj
}

func loadSkyWorkers(logger *slog.Logger) int {
	workers := runtime.NumCPU()
	if v := os.Getenv("SKYSAT_SKY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYSAT_SKY_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	return workers
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      1000,
		Interval:           time.Second,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("SKYSAT_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYSAT_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SKYSAT_STREAM_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			logger.Warn("invalid SKYSAT_STREAM_INTERVAL value, using default", "value", v, "default", 1)
		} else {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYSAT_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYSAT_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYSAT_TRUST_PROXY"); v != "" {
		cfg.TrustProxy, _ = strconv.ParseBool(v)
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"interval_seconds", cfg.Interval.Seconds(),
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		EnableFetch: true,
		SourceURL:   tle.DefaultSourceURL,
		CacheDir:    "/tmp/skysat/tle",
		MaxFiles:    5,
		MaxAge:      24 * time.Hour,
		ExtraSourceURLs: []string{
			// ISS (NORAD 25544), so the reference satellite is always present.
			"https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle",
		},
	}

	if v := os.Getenv("SKYSAT_ENABLE_TLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SKYSAT_ENABLE_TLE_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("SKYSAT_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v, ok := os.LookupEnv("SKYSAT_TLE_EXTRA_URLS"); ok {
		cfg.ExtraSourceURLs = splitList(v)
	}

	if v := os.Getenv("SKYSAT_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("SKYSAT_TLE_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 60 {
			logger.Warn("invalid SKYSAT_TLE_MAX_AGE value, defaulting to 86400", "value", v)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("TLE config",
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)

	return cfg
}

// splitList splits a comma-separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
