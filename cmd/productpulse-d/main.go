package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kpujjigit/productpulse/pkg/analysis"
	"github.com/kpujjigit/productpulse/pkg/api"
	"github.com/kpujjigit/productpulse/pkg/simulation"
	"github.com/kpujjigit/productpulse/pkg/store"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"productpulse-d"}`)

	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_load_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(config.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s"}`+"\n", config.DBPath)

	// Optional Redis analysis cache
	var cache analysis.Cache
	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		redisCache := analysis.NewRedisCache(rdb, 5*time.Minute)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			fmt.Printf(`{"level":"warn","msg":"redis_unreachable_cache_disabled","addr":"%s","error":"%v"}`+"\n", config.RedisAddr, err)
		} else {
			cache = redisCache
			fmt.Printf(`{"level":"info","msg":"redis_cache_enabled","addr":"%s"}`+"\n", config.RedisAddr)
		}
		cancel()
	}

	analyzer := analysis.NewService(analysis.Config{
		ScrapeFailureRate: config.ScrapeFailureRate,
		LLMTimeoutRate:    config.LLMTimeoutRate,
		RequestsPerSecond: config.AnalyzeRPS,
		Burst:             config.AnalyzeBurst,
		Seed:              config.Seed,
		Cache:             cache,
	})

	catalog := simulation.DefaultCatalog()
	if config.CatalogPath != "" {
		loaded, err := simulation.LoadCatalog(config.CatalogPath)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_load_catalog","path":"%s","error":"%v"}`+"\n", config.CatalogPath, err)
			os.Exit(1)
		}
		catalog = loaded
		fmt.Printf(`{"level":"info","msg":"catalog_loaded","path":"%s","profiles":%d}`+"\n", config.CatalogPath, len(catalog.Profiles()))
	}

	// Sessions loop back into this daemon's own analyze endpoint.
	executor := simulation.NewHTTPExecutor("http://" + config.Addr)

	orchestrator, err := simulation.NewOrchestrator(simulation.Config{
		Executor: executor,
		Catalog:  catalog,
		Sink:     simulation.LogSink{},
		Recorder: st,
		Seed:     config.Seed,
	})
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_orchestrator","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	server := api.NewServer(orchestrator, analyzer, st, config.Addr)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
	case err := <-serverErr:
		fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Drain any active simulation so its run gets recorded.
	if _, err := orchestrator.Stop(shutdownCtx); err != nil && err != simulation.ErrNotRunning {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_simulation","error":"%v"}`+"\n", err)
	}

	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
