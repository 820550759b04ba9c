package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"worker-render/config"
	"worker-render/constant"
	jobHandler "worker-render/handler"
	"worker-render/pkg/rabbitmq"
	"worker-render/service"
)

// RunHttp starts the render API plus, when a broker is configured, the
// dispatch consumer that executes queued renders.
func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("store", cfg.Store.Backend).Msg("starting render server")
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	d, err := buildDeps(cfg)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to build dependencies")
	}

	var dispatcher service.Dispatcher
	if cfg.Queue.Host != "" {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRabbitMQConn")
		}
		dispatcher = &service.QueueDispatcher{Publisher: rabbitmq.NewPublisher(conn, cfg.Queue)}

		pipeline := newPipeline(cfg, d, dispatcher)
		serviceDeps := jobHandler.ServiceDependencies{
			Executor: d.executor,
			Store:    d.store,
		}
		renderConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.RenderHandler)
		go func() {
			if err := renderConsumer.Consume(ctx, serviceDeps); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("render consumer error")
			}
		}()

		serve(ctx, cfg, pipeline)
		return
	}

	// no broker: execute inline, off the request goroutine
	dispatcher = &service.InlineDispatcher{Store: d.store, Executor: d.executor}
	serve(ctx, cfg, newPipeline(cfg, d, dispatcher))
}

func newPipeline(cfg *config.Config, d *deps, dispatcher service.Dispatcher) *service.Pipeline {
	return service.NewPipeline(
		d.store,
		d.ledger,
		d.executor,
		dispatcher,
		cfg.Credits.RenderCost,
		exemptPolicy(cfg.Credits.ExemptUsers),
	)
}

func serve(ctx context.Context, cfg *config.Config, pipeline *service.Pipeline) {
	r := gin.Default()
	addHealth(r)
	jobHandler.RegisterRoutes(r, pipeline, cfg.Server.WorkerToken)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
