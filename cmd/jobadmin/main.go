package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/jobadmin/internal/analytics"
	"github.com/djlord-it/jobadmin/internal/api"
	"github.com/djlord-it/jobadmin/internal/callback"
	"github.com/djlord-it/jobadmin/internal/circuitbreaker"
	"github.com/djlord-it/jobadmin/internal/config"
	"github.com/djlord-it/jobadmin/internal/dispatch"
	"github.com/djlord-it/jobadmin/internal/leaderelection"
	"github.com/djlord-it/jobadmin/internal/metrics"
	"github.com/djlord-it/jobadmin/internal/registry"
	"github.com/djlord-it/jobadmin/internal/schedule"
	"github.com/djlord-it/jobadmin/internal/store/postgres"
	"github.com/djlord-it/jobadmin/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	// A local .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`jobadmin - job scheduling admin console

Usage:
  jobadmin <command>

Commands:
  serve      Start the admin console and dispatch engine
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for trigger analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  ACCESS_TOKEN              Shared secret for executor endpoints (optional)

  TRIGGER_TIMEOUT           Per-attempt trigger request timeout (default: "3s", clamped 1s-10s)
  HEARTBEAT_TIMEOUT         Registry liveness cutoff (default: "90s")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  CALLBACK_DRAIN_TIMEOUT    Callback drain timeout on shutdown (default: "30s")
  CALLBACK_BUFFER_SIZE      Callback report buffer size (default: "1000")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  JANITOR_ENABLED           Enable dead registry row sweeper (default: "true")
  JANITOR_INTERVAL          How often dead rows are swept (default: "30s")
  JANITOR_BATCH_SIZE        Max deletions per sweep (default: "100")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before an address opens (default: "5", 0 disables)
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown per address (default: "2m")

  LEADER_LOCK_KEY           Advisory lock key shared by all instances (default: "847291")
  LEADER_RETRY_INTERVAL     Lock acquisition retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection ping interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("jobadmin: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db)
	calc := schedule.NewCalculator()
	resolver := registry.NewResolver(store, cfg.HeartbeatTimeout)
	sender := dispatch.NewHTTPTriggerClient(cfg.TriggerTimeout)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("jobadmin: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		// Start metrics HTTP server on separate port
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("jobadmin: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("jobadmin: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("jobadmin: METRICS_ENABLED not set; metrics disabled")
	}

	engine := dispatch.NewEngine(store, resolver, sender, calc).
		WithAccessToken(cfg.AccessToken)
	if metricsSink != nil {
		engine = engine.WithMetrics(metricsSink)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		engine = engine.WithBreaker(breaker)
		log.Printf("jobadmin: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	} else {
		log.Println("jobadmin: CIRCUIT_BREAKER_THRESHOLD is 0; circuit breaker disabled")
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient)
		engine = engine.WithAnalytics(sink)
		log.Printf("jobadmin: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("jobadmin: REDIS_ADDR not set; analytics disabled")
	}

	// Create callback report bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewReportBus(cfg.CallbackBufferSize, busOpts...)

	reconciler := callback.New(store).WithDrainTimeout(cfg.CallbackDrainTimeout)
	if metricsSink != nil {
		reconciler = reconciler.WithMetrics(metricsSink)
	}

	// Create API handler with the same store instance
	apiHandler := api.NewHandler(store, engine, calc, bus).
		WithHealthChecker(db).
		WithAccessToken(cfg.AccessToken)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler.Routes(),
	}

	go func() {
		log.Printf("jobadmin: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("jobadmin: http server error: %v", err)
		}
	}()

	// Separate contexts for the reconciler and the leader-gated janitor
	// enable ordered shutdown.
	reconcilerCtx, cancelReconciler := context.WithCancel(context.Background())
	leaderCtx, cancelLeader := context.WithCancel(context.Background())

	var reconcilerWg sync.WaitGroup
	var leaderWg sync.WaitGroup

	reconcilerWg.Add(1)
	go func() {
		defer reconcilerWg.Done()
		reconciler.Run(reconcilerCtx, bus.Channel())
	}()

	// The janitor runs only on the leader so concurrent instances don't
	// sweep the registry twice.
	if cfg.JanitorEnabled {
		janitor := registry.NewJanitor(registry.JanitorConfig{
			Interval:    cfg.JanitorInterval,
			DeadTimeout: cfg.HeartbeatTimeout,
			BatchSize:   cfg.JanitorBatchSize,
		}, store)
		if metricsSink != nil {
			janitor = janitor.WithMetrics(metricsSink)
		}

		var janitorWg sync.WaitGroup
		elector := leaderelection.NewElector(leaderelection.Config{
			LockKey:           cfg.LeaderLockKey,
			RetryInterval:     cfg.LeaderRetryInterval,
			HeartbeatInterval: cfg.LeaderHeartbeatInterval,
		}, db,
			func(ctx context.Context) {
				janitorWg.Add(1)
				go func() {
					defer janitorWg.Done()
					janitor.Run(ctx)
				}()
			},
			func() {
				janitorWg.Wait()
			},
		)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}

		leaderWg.Add(1)
		go func() {
			defer leaderWg.Done()
			elector.Run(leaderCtx)
		}()
		log.Printf("jobadmin: janitor enabled behind leader election (interval=%s, dead_timeout=%s, batch=%d, lock_key=%d)",
			cfg.JanitorInterval, cfg.HeartbeatTimeout, cfg.JanitorBatchSize, cfg.LeaderLockKey)
	} else {
		log.Println("jobadmin: JANITOR_ENABLED is false; janitor disabled")
	}

	log.Printf("jobadmin: started (http=%s, heartbeat_timeout=%s, trigger_timeout=%s)",
		cfg.HTTPAddr, cfg.HeartbeatTimeout, dispatch.ClampTriggerTimeout(cfg.TriggerTimeout))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("jobadmin: received signal %v, shutting down", received)

	// Phase 1: Stop HTTP server so no new triggers or callbacks arrive
	log.Println("jobadmin: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("jobadmin: http server shutdown error: %v", err)
	}
	log.Println("jobadmin: http server stopped")

	// Phase 2: Release leadership (stops the janitor)
	log.Println("jobadmin: stopping leader election...")
	cancelLeader()
	leaderWg.Wait()
	log.Println("jobadmin: leader election stopped")

	// Phase 3: Stop reconciler (drains buffered callback reports before returning)
	log.Println("jobadmin: stopping callback reconciler (draining reports)...")
	cancelReconciler()
	reconcilerWg.Wait()
	log.Println("jobadmin: callback reconciler stopped")

	// Phase 4: Stop metrics server if running
	if metricsServer != nil {
		log.Println("jobadmin: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("jobadmin: metrics server shutdown error: %v", err)
		}
		log.Println("jobadmin: metrics server stopped")
	}

	log.Println("jobadmin: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("jobadmin version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
