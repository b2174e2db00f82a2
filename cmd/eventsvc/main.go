package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/config"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/health"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/server"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/events"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/logger"
	h3mapper "github.com/mohammed-shakir/gdelt-event-gateway/internal/mapper/h3"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/metrics"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store/breaker"
	_ "github.com/mohammed-shakir/gdelt-event-gateway/internal/store/memory"
	_ "github.com/mohammed-shakir/gdelt-event-gateway/internal/store/wfs"
	"github.com/mohammed-shakir/gdelt-event-gateway/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	// flags override the environment
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.Store.Backend, "backend", cfg.Store.Backend, "feature store backend")
	flag.StringVar(&cfg.Store.SeedFile, "seed", cfg.Store.SeedFile, "GeoJSON seed file for the memory backend")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	flag.BoolVar(&cfg.DumpResults, "dump", cfg.DumpResults, "log every result feature at debug level")
	flag.Parse()
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	layer := store.ParamsFrom(cfg.Store).Layer()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "eventsvc",
		Layer:     layer,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting event gateway",
		"addr", cfg.Addr,
		"version", Version,
		"backend", cfg.Store.Backend,
		"backends", store.Backends(),
		"cache", cfg.Cache.Enabled,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var p *metrics.Provider
	if cfg.MetricsEnabled {
		p = metrics.Init(metrics.Config{Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		}})
	}

	openCtx, cancelOpen := context.WithTimeout(ctx, cfg.Store.QueryTimeout)
	st, err := store.Open(openCtx, cfg.Store.Backend, cfg.Store, appLog)
	cancelOpen()
	if err != nil {
		appLog.Error("feature store unavailable", "backend", cfg.Store.Backend, "err", err)
		return 1
	}
	if cfg.Store.Breaker {
		st = breaker.Wrap(st, breaker.DefaultSettings(), appLog)
	}
	defer func() { _ = st.Close() }()

	checks := []health.Check{{Name: "store", Ping: st.Ping}}

	var responses *cache.Responses
	if cfg.Cache.Enabled {
		cli, err := redisstore.New(ctx, cfg.Cache.RedisAddr,
			redisstore.WithReadTimeout(cfg.Cache.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Cache.OpTimeout))
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.Cache.RedisAddr, "err", err)
			return 1
		}
		responses = cache.New(cli, h3mapper.New(), cache.Options{
			Layer:     layer,
			Res:       cfg.Cache.H3Res,
			TTL:       cfg.Cache.TTL,
			OpTimeout: cfg.Cache.OpTimeout,
			MaxCells:  cfg.Cache.MaxCells,
		}, appLog)
		defer func() { _ = responses.Close() }()
		checks = append(checks, health.Check{Name: "cache", Ping: responses.Ping})
	}

	var kafkaReady health.ReadinessReporter
	runner := kafka.FromConfig(cfg.Invalidation)
	if runner.Enabled && runner.Driver == kafka.DriverKafka {
		if responses == nil {
			appLog.Warn("invalidation needs CACHE_ENABLED=true; consumer not started")
		} else {
			opts := kafka.Options{Logger: appLog}
			if p != nil {
				opts.Register = p.Registerer()
			}
			r := kafka.New(runner, responses, opts)
			if err := r.Start(ctx); err != nil {
				appLog.Error("invalidation consumer failed to start", "err", err)
				return 1
			}
			defer r.Stop()
			kafkaReady = r
		}
	}

	var c events.Cache
	if responses != nil {
		c = responses
	}
	svc := events.New(st, c, events.Options{
		QueryTimeout: cfg.Store.QueryTimeout,
		MaxResults:   cfg.MaxResults,
		Dump:         cfg.DumpResults,
	}, appLog)

	deps := server.Deps{Search: svc, Checks: checks, Kafka: kafkaReady}
	if p != nil {
		deps.Metrics = p.Handler()
	}

	if err := server.Run(ctx, cfg, appLog, server.NewHandler(cfg, appLog, deps)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
