package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultAddr         = "127.0.0.1:8090"
	defaultScrapeFail   = 0.10
	defaultLLMTimeout   = 0.05
	defaultAnalyzeRPS   = 50.0
	defaultAnalyzeBurst = 100
)

type Config struct {
	DBPath      string
	CatalogPath string
	Addr        string
	RedisAddr   string
	Seed        int64

	ScrapeFailureRate float64
	LLMTimeoutRate    float64
	AnalyzeRPS        float64
	AnalyzeBurst      int
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "productpulse.db")

	dbPath := envOrDefault("PRODUCTPULSE_DB_PATH", defaultDBPath)
	catalogPath := os.Getenv("PRODUCTPULSE_CATALOG_PATH")
	addr := addrFromEnv(defaultAddr)
	redisAddr := os.Getenv("PRODUCTPULSE_REDIS_ADDR")

	seed := int64(0)
	if seedEnv := os.Getenv("PRODUCTPULSE_SEED"); seedEnv != "" {
		parsed, err := strconv.ParseInt(seedEnv, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PRODUCTPULSE_SEED: %w", err)
		}
		seed = parsed
	}

	scrapeFail, err := floatFromEnv("PRODUCTPULSE_SCRAPE_FAILURE_RATE", defaultScrapeFail)
	if err != nil {
		return Config{}, err
	}
	llmTimeout, err := floatFromEnv("PRODUCTPULSE_LLM_TIMEOUT_RATE", defaultLLMTimeout)
	if err != nil {
		return Config{}, err
	}
	analyzeRPS, err := floatFromEnv("PRODUCTPULSE_ANALYZE_RPS", defaultAnalyzeRPS)
	if err != nil {
		return Config{}, err
	}

	flagSet := flag.NewFlagSet("productpulse-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagCatalog := flagSet.String("catalog", catalogPath, "path to behavior catalog YAML (optional)")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address for the analysis cache (optional)")
	flagSeed := flagSet.Int64("seed", seed, "random seed for simulations (0 = time-based)")
	flagScrapeFail := flagSet.Float64("scrape-failure-rate", scrapeFail, "probability a mock scrape fails")
	flagLLMTimeout := flagSet.Float64("llm-timeout-rate", llmTimeout, "probability the mock model times out")
	flagAnalyzeRPS := flagSet.Float64("analyze-rps", analyzeRPS, "analysis rate limit in requests per second")
	flagAnalyzeBurst := flagSet.Int("analyze-burst", defaultAnalyzeBurst, "analysis rate limit burst size")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	config := Config{
		DBPath:            resolvePath(*flagDB, cwd),
		CatalogPath:       resolvePath(*flagCatalog, cwd),
		Addr:              strings.TrimSpace(*flagAddr),
		RedisAddr:         strings.TrimSpace(*flagRedis),
		Seed:              *flagSeed,
		ScrapeFailureRate: *flagScrapeFail,
		LLMTimeoutRate:    *flagLLMTimeout,
		AnalyzeRPS:        *flagAnalyzeRPS,
		AnalyzeBurst:      *flagAnalyzeBurst,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}

	if config.ScrapeFailureRate < 0 || config.ScrapeFailureRate > 1 {
		return Config{}, fmt.Errorf("scrape-failure-rate must be in [0,1], got %v", config.ScrapeFailureRate)
	}
	if config.LLMTimeoutRate < 0 || config.LLMTimeoutRate > 1 {
		return Config{}, fmt.Errorf("llm-timeout-rate must be in [0,1], got %v", config.LLMTimeoutRate)
	}
	if config.AnalyzeRPS <= 0 {
		return Config{}, fmt.Errorf("analyze-rps must be positive, got %v", config.AnalyzeRPS)
	}
	if config.AnalyzeBurst <= 0 {
		return Config{}, fmt.Errorf("analyze-burst must be positive, got %v", config.AnalyzeBurst)
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("PRODUCTPULSE_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("PRODUCTPULSE_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
