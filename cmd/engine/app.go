// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	engineApi "github.com/affirmai/engine/api/engine-api/api"
	"github.com/affirmai/engine/api/engine-api/config"
	internal_asset "github.com/affirmai/engine/api/engine-api/internal/asset"
	internal_device "github.com/affirmai/engine/api/engine-api/internal/audio/device"
	internal_coordinator "github.com/affirmai/engine/api/engine-api/internal/coordinator"
	internal_fileops "github.com/affirmai/engine/api/engine-api/internal/fileops"
	internal_interruption "github.com/affirmai/engine/api/engine-api/internal/interruption"
	internal_processing "github.com/affirmai/engine/api/engine-api/internal/processing"
	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_script "github.com/affirmai/engine/api/engine-api/internal/script"
	internal_telemetry "github.com/affirmai/engine/api/engine-api/internal/telemetry"
	internal_transcription "github.com/affirmai/engine/api/engine-api/internal/transcription"
	internal_transformer "github.com/affirmai/engine/api/engine-api/internal/transformer"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	engineRouter "github.com/affirmai/engine/api/engine-api/router"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/connectors"
	"github.com/affirmai/engine/pkg/utils"
)

type application struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	registry *prometheus.Registry
	metrics  *internal_telemetry.Metrics

	sql   connectors.SQLConnector
	redis connectors.RedisConnector

	files   internal_fileops.FileOps
	assets  internal_asset.Store
	scripts internal_script.Store
}

func newApplication(ctx context.Context) (*application, error) {
	v, err := config.InitConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Level(cfg.LogLevel),
		commons.Path(cfg.LogPath),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := internal_telemetry.NewMetrics(registry)

	app := &application{cfg: cfg, logger: logger, registry: registry, metrics: metrics}

	app.sql = connectors.NewSQLConnector(cfg.DatabaseConfig, logger)
	if err := app.sql.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if cfg.RedisConfig.Enabled() {
		redis := connectors.NewRedisConnector(cfg.RedisConfig, logger)
		if err := redis.Connect(ctx); err != nil {
			// the cache is an optimisation; transcription still works without it
			logger.Warnf("redis unavailable, transcript cache disabled: %v", err)
		} else {
			app.redis = redis
		}
	}

	app.files = internal_fileops.NewFileOps(logger,
		internal_fileops.WithAttempts(cfg.FileOpsConfig.Attempts),
		internal_fileops.WithDelay(time.Duration(cfg.FileOpsConfig.DelayMs)*time.Millisecond),
		internal_fileops.WithMinFreeBytes(cfg.FileOpsConfig.MinFreeBytes),
		internal_fileops.WithMetrics(metrics),
	)
	app.assets = internal_asset.NewStore(app.sql, app.files, logger, cfg.StorageConfig.AssetRoot)
	app.scripts = internal_script.NewStore(app.sql, logger)
	if err := app.assets.Migrate(ctx); err != nil {
		return nil, err
	}
	if err := app.scripts.Migrate(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *application) close() {
	ctx := context.Background()
	if app.redis != nil {
		app.redis.Disconnect(ctx)
	}
	app.sql.Disconnect(ctx)
	app.logger.Sync()
}

// sweep reports every invalid asset. Broken rows are kept so the UI can
// offer a re-record; nothing is deleted silently.
func (app *application) sweep(ctx context.Context) ([]internal_asset.ValidationReport, error) {
	start := time.Now()
	reports, err := app.assets.ValidateAll(ctx)
	if err != nil {
		return nil, err
	}
	invalid := 0
	for _, r := range reports {
		if r.Err != nil {
			invalid++
			app.logger.Warnw("recording asset is not playable", "target", r.Target, "path", r.Path, "kind", r.Kind.String(), "error", r.Err)
		}
	}
	app.logger.Benchmark("asset.sweep", time.Since(start))
	app.logger.Infof("asset sweep finished: %d assets, %d invalid", len(reports), invalid)
	return reports, nil
}

func (app *application) validate(ctx context.Context, out io.Writer, asJSON bool) error {
	reports, err := app.sweep(ctx)
	if err != nil {
		return err
	}
	invalid := 0
	for _, r := range reports {
		if r.Err != nil {
			invalid++
		}
	}
	if asJSON {
		type row struct {
			Target string `json:"target"`
			Path   string `json:"path"`
			Valid  bool   `json:"valid"`
			Kind   string `json:"kind,omitempty"`
			Error  string `json:"error,omitempty"`
		}
		rows := make([]row, 0, len(reports))
		for _, r := range reports {
			rw := row{Target: r.Target, Path: r.Path, Valid: r.Err == nil}
			if r.Err != nil {
				rw.Kind, rw.Error = r.Kind.String(), r.Err.Error()
			}
			rows = append(rows, rw)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			status := "ok"
			if r.Err != nil {
				status = r.Kind.String()
			}
			fmt.Fprintf(out, "%-36s %-24s %s\n", r.Target, status, r.Path)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d assets are invalid", invalid, len(reports))
	}
	return nil
}

func (app *application) serve(parent context.Context) error {
	defer app.close()
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg, logger := app.cfg, app.logger

	if _, err := app.sweep(ctx); err != nil {
		logger.Errorf("startup asset sweep failed: %v", err)
	}

	pipeline := internal_processing.NewPipeline(logger, app.files, app.assets,
		internal_processing.WithTrim(cfg.PipelineConfig.TrimEnabled, internal_processing.Sensitivity(cfg.PipelineConfig.TrimSensitivity)),
		internal_processing.WithEnhance(cfg.PipelineConfig.EnhanceEnabled),
		internal_processing.WithMetrics(app.metrics),
	)

	var transcriber internal_type.Transcriber
	transcriber, err := internal_transformer.GetTranscriber(ctx, logger, cfg.TranscriptionConfig, cfg.PipelineConfig.DefaultLanguage)
	if err != nil {
		logger.Errorf("transcription disabled: %v", err)
		transcriber = nil
	}
	var cache internal_transcription.Cache
	if app.redis != nil {
		cache = internal_transcription.NewRedisCache(app.redis.GetConnection(),
			time.Duration(cfg.RedisConfig.TTLSeconds)*time.Second, logger)
	}

	bridge := internal_device.NewBridge(logger)
	system := internal_interruption.NewChannelSource()
	sources := []internal_interruption.Source{system}
	if cfg.InterruptionConfig.RouteStateFile != "" {
		sources = append(sources, internal_interruption.NewFileRouteSource(logger, cfg.InterruptionConfig.RouteStateFile))
	}
	monitor := internal_interruption.NewMonitor(logger, sources...)
	mailbox := internal_recovery.NewMailbox(logger)

	coordinator := internal_coordinator.NewCoordinator(logger, internal_coordinator.Dependencies{
		Capture:         bridge,
		Playback:        bridge,
		Permission:      bridge,
		Files:           app.files,
		Assets:          app.assets,
		Scripts:         app.scripts,
		Pipeline:        pipeline,
		Transcriber:     transcriber,
		TranscriptCache: cache,
		Monitor:         monitor,
		Presenter:       mailbox,
	},
		internal_coordinator.WithTickInterval(time.Duration(cfg.CoordinatorConfig.TickMs)*time.Millisecond),
		internal_coordinator.WithLevelHistory(cfg.CoordinatorConfig.LevelHistory),
		internal_coordinator.WithAssetRoot(cfg.StorageConfig.AssetRoot),
		internal_coordinator.WithDefaultLanguage(cfg.PipelineConfig.DefaultLanguage),
		internal_coordinator.WithTranscribeOnSave(cfg.PipelineConfig.TranscribeOnSave && transcriber != nil),
		internal_coordinator.WithMetrics(app.metrics),
	)
	defer coordinator.Close()

	if utils.FromEnvironmentStr(cfg.Env) == utils.PRODUCTION {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	engineRouter.HealthCheckRoutes(cfg, engine, logger, engineApi.NewHealthApi(cfg, logger, app.sql, app.redis))
	engineRouter.MetricsRoutes(engine, logger, app.registry)
	engineRouter.EngineApiRoutes(cfg, engine, logger,
		engineApi.NewEngineApi(cfg, logger, coordinator, app.scripts, mailbox, system, bridge))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := coordinator.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := monitor.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
