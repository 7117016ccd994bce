package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinSight/internal/domain/models"
	"FinSight/internal/domain/repository"
	"FinSight/internal/usecase"
	pkgch "FinSight/pkg/clickhouse"
	"FinSight/pkg/config"
	xhttp "FinSight/pkg/http"
	applogger "FinSight/pkg/logger"
	pkgqueue "FinSight/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	session    *usecase.DashboardSession
	dispatcher *usecase.NavigationDispatcher
	intents    *usecase.IntentResolver

	cascade     *usecase.WakeWordCascade
	recorder    *usecase.HistoryRecorder
	sweeper     *usecase.RetentionSweeper
	jobQueue    *pkgqueue.RedisQueue
	telemetry   repository.TelemetryPublisher
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with the core dependencies. Optional
// subsystems are injected through setters.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	session *usecase.DashboardSession,
	dispatcher *usecase.NavigationDispatcher,
	intents *usecase.IntentResolver,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		session:    session,
		dispatcher: dispatcher,
		intents:    intents,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetCascade attaches the wake word cascade. Nil leaves voice disabled.
func (a *App) SetCascade(c *usecase.WakeWordCascade) { a.cascade = c }

// SetHistory attaches the history pipeline. Any part may be nil.
func (a *App) SetHistory(rec *usecase.HistoryRecorder, sw *usecase.RetentionSweeper, q *pkgqueue.RedisQueue) {
	a.recorder = rec
	a.sweeper = sw
	a.jobQueue = q
}

// SetTelemetry attaches the telemetry publisher so shutdown can close it.
func (a *App) SetTelemetry(t repository.TelemetryPublisher) { a.telemetry = t }

// SetClickHouse attaches the ClickHouse client so shutdown can close it.
func (a *App) SetClickHouse(c *pkgch.Client) { a.chClient = c }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := a.cfg.Metrics.Path
	if !a.cfg.Metrics.Enabled {
		metricsPath = ""
	}
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(a.log),
	)

	// Error logs aggregate onto the telemetry rail when a topic is set.
	if a.telemetry != nil && a.cfg.Kafka.LogsTopic != "" {
		if pub, ok := a.telemetry.(applogger.Publisher); ok {
			a.log.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   30 * time.Second,
				CountThreshold: 100,
				Topic:          a.cfg.Kafka.LogsTopic,
				Publisher:      pub,
			})
		}
	}

	// Wake events route through intent matching into the dispatcher.
	if a.cascade != nil {
		a.cascade.OnWake(func(ev models.WakeEvent) {
			screen := a.cfg.Voice.TargetScreen
			if matched, ok := a.intents.Match(ev.Keyword); ok {
				screen = matched
			}
			a.dispatcher.NavigateTo(screen, map[string]any{
				"trigger": "voice",
				"backend": ev.Backend,
				"keyword": ev.Keyword,
			})
		})
	}

	if err := a.session.Start(ctx); err != nil {
		a.log.Error("session start error", applogger.Error(err))
		return err
	}
	a.log.Info("dashboard session started", applogger.String("transport", a.cfg.Push.Transport))

	if a.recorder != nil {
		a.recorder.Start(ctx)
		a.log.Info("history recorder started")
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(); err != nil {
			a.log.Warn("retention sweeper start error", applogger.Error(err))
		}
	}
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.log.Warn("history queue start error", applogger.Error(err))
		}
	}
	if a.cascade != nil {
		a.cascade.Start(ctx)
		a.log.Info("wake word cascade started")
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	// Voice first so the audio engine is released before anything else.
	if a.cascade != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		a.cascade.Stop(stopCtx)
		cancel()
	}

	if err := a.session.Stop(); err != nil {
		a.log.Warn("session stop error", applogger.Error(err))
	}

	// Recorder flushes after the session stops publishing.
	if a.recorder != nil {
		a.recorder.Stop()
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("history queue stop error", applogger.Error(err))
		}
	}
	a.log.RemoveCollector()
	if a.telemetry != nil {
		if err := a.telemetry.Close(); err != nil {
			a.log.Warn("telemetry close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
