// Command cacherepodemo is an external collaborator that assembles a
// resolved config.Config from environment variables (the ingestion step
// spec.md §1 explicitly keeps out of the core) and drives the façade
// end-to-end. It stands in for the front-end HTTP server and the
// foreign-language bindings spec.md also names as external collaborators
// — this demo just calls the two query operations directly and logs what
// it got back.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/facade"
	"github.com/mydevhero/cacherepo/internal/rlog"
)

func main() {
	log := rlog.New(getEnv("LOG_LEVEL", "info"))
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		log.Errorw("configuration load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := facade.New(ctx, cfg, log)
	if err != nil {
		log.Errorw("facade construction failed", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()

	if val, found, err := f.EchoString(reqCtx, "hello"); err != nil {
		log.Errorw("EchoString failed", "error", err)
	} else {
		fmt.Printf("EchoString(%q) => %q, found=%v\n", "hello", val, found)
	}

	if val, found, err := f.LookupLabel(reqCtx, "item-1"); err != nil {
		log.Errorw("LookupLabel failed", "error", err)
	} else {
		fmt.Printf("LookupLabel(%q) => %q, found=%v\n", "item-1", val, found)
	}

	<-sigCh
	log.Infow("shutdown signal received")
}

// loadConfig reads a resolved config.Config from environment variables,
// in the teacher's internal/config.Load style: required-var checks plus
// getEnv/getEnvInt defaulting helpers.
func loadConfig() (config.Config, error) {
	driver := config.DatabaseDriver(getEnv("DB_DRIVER", string(config.DriverPostgres)))

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return config.Config{}, fmt.Errorf("DB_HOST environment variable is required")
	}

	cacheHost := os.Getenv("CACHE_HOST")
	if cacheHost == "" {
		return config.Config{}, fmt.Errorf("CACHE_HOST environment variable is required")
	}

	cfg := config.Config{
		Database: config.DatabaseConfig{
			Driver:            driver,
			Host:              dbHost,
			Port:              getEnvInt("DB_PORT", 5432),
			Name:              getEnv("DB_NAME", "cacherepo"),
			User:              getEnv("DB_USER", "cacherepo"),
			Password:          os.Getenv("DB_PASSWORD"),
			ConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
			KeepaliveIdle:     getEnvDuration("DB_KEEPALIVE_IDLE", 30*time.Second),
			KeepaliveInterval: getEnvDuration("DB_KEEPALIVE_INTERVAL", 10*time.Second),
			KeepaliveCount:    getEnvInt("DB_KEEPALIVE_COUNT", 3),
		},
		Pool: config.PoolConfig{
			MinSize:                getEnvInt("POOL_MIN_SIZE", 2),
			MaxSize:                getEnvInt("POOL_MAX_SIZE", 10),
			AcquireWait:            getEnvDuration("POOL_ACQUIRE_WAIT", 2*time.Second),
			MaxWait:                getEnvDuration("POOL_MAX_WAIT", 5*time.Second),
			HealthCheckInterval:    getEnvDuration("POOL_HEALTH_CHECK_INTERVAL", 30*time.Second),
			ValidateBeforeAcquire:  getEnvBool("POOL_VALIDATE_BEFORE_ACQUIRE", true),
			ValidateUsingTx:        getEnvBool("POOL_VALIDATE_USING_TX", false),
			LogSaturationThreshold: getEnvInt("POOL_LOG_SATURATION_THRESHOLD", 5),
		},
		Cache: config.CacheConfig{
			Host:               cacheHost,
			Port:               getEnvInt("CACHE_PORT", 6379),
			Index:              getEnvInt("CACHE_INDEX", 0),
			Username:           os.Getenv("CACHE_USERNAME"),
			Password:           os.Getenv("CACHE_PASSWORD"),
			ClientName:         getEnv("CACHE_CLIENT_NAME", "cacherepo"),
			CommandTimeout:     getEnvDuration("CACHE_COMMAND_TIMEOUT", 2*time.Second),
			PoolSize:           getEnvInt("CACHE_POOL_SIZE", 20),
			MinIdleConns:       getEnvInt("CACHE_MIN_IDLE_CONNS", 5),
			ConnectionLifetime: getEnvDuration("CACHE_CONNECTION_LIFETIME", time.Hour),
			ConnectionIdleTime: getEnvDuration("CACHE_CONNECTION_IDLE_TIME", 10*time.Minute),
		},
		Query: config.QueryConfig{
			TTL: map[string]time.Duration{
				"echo":  getEnvDuration("QUERY_TTL_ECHO", time.Hour),
				"label": getEnvDuration("QUERY_TTL_LABEL", time.Hour),
			},
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Namespace: getEnv("METRICS_NAMESPACE", "cacherepo"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
