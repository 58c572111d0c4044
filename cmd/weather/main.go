package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/display"
	"github.com/kjstillabower/weather-lookup/internal/history"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/storage"
	"github.com/kjstillabower/weather-lookup/internal/widget"
)

// commander is the part of widget.Controller the input loop drives.
type commander interface {
	PrepareStart() widget.Task
	PrepareSubmit(input string) widget.Task
	PrepareSelect(n int) widget.Task
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With(zap.String("session_id", uuid.NewString()))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, storage.Options{
		Backend:               cfg.StorageBackend,
		FilePath:              cfg.StorageFilePath,
		SQLitePath:            cfg.SQLitePath,
		RedisAddr:             cfg.RedisAddr,
		RedisPassword:         cfg.RedisPassword,
		RedisDB:               cfg.RedisDB,
		RedisPrefix:           cfg.RedisPrefix,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
	})
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage backend", zap.String("backend", cfg.StorageBackend))
	if p, ok := kv.(storage.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			logger.Warn("storage ping failed; history may not persist", zap.Error(err))
		}
		cancel()
	}

	store := history.New(kv,
		history.WithTTL(cfg.HistoryTTL),
		history.WithCapacity(cfg.HistoryCapacity),
		history.WithLogger(logger),
	)

	clientOpts := []client.Option{client.WithUnits(cfg.Units)}
	if cfg.RateLimitRPS > 0 {
		clientOpts = append(clientOpts, client.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	}
	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, clientOpts...)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	ctrl := widget.New(weatherClient, store, display.NewTerminal(os.Stdout), logger, widget.Config{
		DefaultCity:   cfg.DefaultCity,
		MinCityLength: cfg.LocationMinLength,
		MaxCityLength: cfg.LocationMaxLength,
	})

	run(ctx, os.Stdin, ctrl, logger)
	stop()

	logger.Info("shutting down")

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.FlushTelemetry(flushCtx, logger, cfg.MetricsTextfile); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := kv.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// run issues the startup lookup, then one command per input line until ":q",
// EOF or ctx is done, and waits for every dispatched lookup before returning.
// Commands are prepared on this goroutine so the last line typed wins; only a
// canceled ctx aborts lookups already running.
func run(ctx context.Context, in io.Reader, ctrl commander, logger *zap.Logger) {
	var wg sync.WaitGroup
	dispatch := func(task widget.Task) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task(ctx); err != nil && !errors.Is(err, widget.ErrSuperseded) {
				logger.Debug("lookup finished with error", zap.Error(err))
			}
		}()
	}

	dispatch(ctrl.PrepareStart())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			logger.Warn("stdin", zap.Error(err))
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			cmd := widget.ParseCommand(line)
			switch cmd.Kind {
			case widget.CommandQuit:
				break loop
			case widget.CommandSelect:
				dispatch(ctrl.PrepareSelect(cmd.Index))
			default:
				dispatch(ctrl.PrepareSubmit(cmd.City))
			}
		}
	}
	wg.Wait()
}
