package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-builder/components/builder/httpapi"
	"github.com/goliatone/go-dashboard-builder/components/builder/render"
	"github.com/goliatone/go-dashboard-builder/pkg/analysis"
	"github.com/goliatone/go-dashboard-builder/pkg/builder"
)

type serveCmd struct {
	Addr           string        `env:"BOARD_HTTP_ADDR" default:":8080" help:"HTTP listen address."`
	AnalysisURL    string        `name:"analysis-url" env:"BOARD_ANALYSIS_URL" help:"Base URL of the prompt analysis service."`
	AnalysisAPIKey string        `name:"analysis-api-key" env:"BOARD_ANALYSIS_API_KEY" help:"Bearer token for the analysis service."`
	MockAnalysis   bool          `name:"mock-analysis" env:"BOARD_ANALYSIS_MOCK" help:"Answer analysis prompts with the built-in keyword mock."`
	AssetsHost     string        `name:"assets-host" env:"BOARD_CHART_ASSETS_HOST" help:"Override the ECharts assets host."`
	ChartCacheTTL  time.Duration `name:"chart-cache-ttl" env:"BOARD_CHART_CACHE_TTL" default:"5m" help:"How long rendered charts are cached."`
	ShutdownGrace  time.Duration `name:"shutdown-grace" default:"15s" help:"Time allowed for in-flight requests on shutdown."`
}

func (cmd *serveCmd) Run(ctx context.Context, g *Globals) error {
	app := fx.New(cmd.options(g)...)
	if err := app.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-app.Done():
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), cmd.ShutdownGrace)
	defer cancel()
	return app.Stop(stopCtx)
}

func (cmd *serveCmd) options(g *Globals) []fx.Option {
	return []fx.Option{
		fx.Supply(g, cmd),
		fx.Provide(
			newLogger,
			newBuilder,
			newRenderer,
			newAnalysisClient,
			newHandlers,
			newFiberApp,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			registerRoutes,
			startServer,
			watchCatalog,
		),
	}
}

func newLogger(lc fx.Lifecycle, g *Globals) (*zap.Logger, error) {
	logger, err := g.Logger()
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newBuilder(lc fx.Lifecycle, g *Globals, logger *zap.Logger) (*builder.Builder, error) {
	b, err := builder.New(context.Background(), g.BuilderConfig(logger))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return b.Close()
		},
	})
	return b, nil
}

func newRenderer(cmd *serveCmd) *render.Renderer {
	return render.New(render.Options{
		Cache:      render.NewChartCache(cmd.ChartCacheTTL),
		AssetsHost: cmd.AssetsHost,
	})
}

func newAnalysisClient(cmd *serveCmd) (analysis.Client, error) {
	switch {
	case cmd.AnalysisURL != "":
		return analysis.NewHTTPClient(analysis.HTTPConfig{BaseURL: cmd.AnalysisURL, APIKey: cmd.AnalysisAPIKey})
	case cmd.MockAnalysis:
		return analysis.NewMockClient(), nil
	default:
		return nil, nil
	}
}

func newHandlers(b *builder.Builder, charts *render.Renderer, client analysis.Client, logger *zap.Logger) *httpapi.Handlers {
	return httpapi.NewHandlers(b.Controller, httpapi.Options{
		Charts:   charts,
		Analysis: client,
		Events:   b.Events,
		Logger:   logger,
	})
}

func newFiberApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "boardctl",
		DisableStartupMessage: true,
	})
}

func registerRoutes(app *fiber.App, handlers *httpapi.Handlers) {
	handlers.Register(app)
}

func startServer(lc fx.Lifecycle, app *fiber.App, cmd *serveCmd, logger *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("http server listening", zap.String("addr", cmd.Addr))
				if err := app.Listen(cmd.Addr); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

func watchCatalog(lc fx.Lifecycle, b *builder.Builder, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := b.WatchCatalog(ctx); err != nil {
					logger.Warn("catalog watch stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
