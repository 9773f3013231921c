package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/config"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/controller"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/infrastructure/database/mongodb"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/infrastructure/mailer"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/infrastructure/message-queue/kafka"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/infrastructure/storage"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/infrastructure/tracing"
	localmiddleware "github.com/alimikegami/point-of-sales/catalog-service/internal/middleware"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/repository"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/service"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/response"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/validator"
	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	DB     *mongo.Database
	Config *config.Config
	Server *echo.Echo

	traceProvider *sdktrace.TracerProvider
	scheduler     gocron.Scheduler
	stopConsumer  context.CancelFunc
	closers       []io.Closer
}

// Start wires the catalog service and serves until SIGINT or SIGTERM.
func (app *App) Start() {
	logger := log.Logger

	traceProvider, err := tracing.InitTracing(app.Config.TracingConfig.CollectorHost)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize tracing")
	}
	app.traceProvider = traceProvider

	tracer := otel.Tracer(tracing.ServiceName)

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongodb.EnsureIndexes(indexCtx, app.DB); err != nil {
		logger.Error().Err(err).Msg("Failed to ensure indexes")
	}
	cancel()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.NewCustomValidator()
	app.Server = e

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), fmt.Sprintf("[%s] %s", c.Request().Method, c.Path()))
			defer span.End()

			req := c.Request()
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	})

	// Used empty string so that metrics are not prefixed with the service name making it easier to aggregate across services
	e.Use(echoprometheus.NewMiddleware(""))
	go func() {
		metrics := echo.New()
		metrics.HideBanner = true
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(fmt.Sprintf(":%s", app.Config.MetricsPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}()

	e.Use(localmiddleware.Logger)

	g := e.Group("/api/v1")

	g.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogMethod:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Ctx(c.Request().Context()).Info().
				Str("method", v.Method).
				Str("URI", v.URI).
				Int("status", v.Status).
				Int64("latency", v.Latency.Microseconds()).
				Str("remote IP", v.RemoteIP).
				Msg("Request")

			return nil
		},
	}))

	var blobStore service.BlobStore
	s3Store, err := storage.CreateS3BlobStore(app.Config.BlobStoreConfig)
	if err != nil {
		logger.Warn().Err(err).Msg("Blob store disabled, image uploads will fail")
	} else {
		blobStore = s3Store
	}

	kafkaWriter := kafka.CreateKafkaWriter(app.Config)
	kafkaReader := kafka.CreateKafkaReader(app.Config)
	app.closers = append(app.closers, kafkaReader, kafkaWriter)
	publisher := kafka.CreatePublisher(kafkaWriter)

	notifier := mailer.CreateStockAlertMailer(app.Config.MailConfig)

	repo := repository.CreateNewMongoDBRepository(app.DB)
	categorySvc := service.CreateCategoryService(repo, blobStore, publisher)
	productSvc := service.CreateProductService(repo, blobStore, publisher, kafkaReader, notifier)

	isLoggedIn := localmiddleware.IsLoggedIn(app.Config.JWTSecret)
	controller.CreateCategoryController(g, categorySvc, productSvc, isLoggedIn)
	controller.CreateProductController(g, productSvc, isLoggedIn)

	g.GET("/ping", func(c echo.Context) error {
		return response.WriteSuccessResponse(c, "Hello, World!", nil)
	})

	app.scheduler, err = gocron.NewScheduler()
	if err != nil {
		panic(err)
	}

	_, err = app.scheduler.NewJob(
		gocron.DurationJob(
			app.Config.SchedulerConfig.ReconcileInterval,
		),
		gocron.NewTask(func() {
			ctx := logger.With().Str("job", "ReconcileCategoryChildren").Logger().WithContext(context.Background())
			repaired, err := categorySvc.ReconcileCategoryChildren(ctx)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("Category reconciliation failed")
				return
			}
			log.Ctx(ctx).Info().Int("repaired", repaired).Msg("Category reconciliation finished")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		panic(err)
	}

	app.scheduler.Start()

	consumerCtx, stopConsumer := context.WithCancel(logger.WithContext(context.Background()))
	app.stopConsumer = stopConsumer
	go productSvc.ConsumeEvent(consumerCtx)

	go func() {
		if err := e.Start(fmt.Sprintf(":%s", app.Config.ServicePort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := app.StopServer(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop server")
	}
}

func (app *App) StopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if app.stopConsumer != nil {
		app.stopConsumer()
	}

	if app.scheduler != nil {
		if err := app.scheduler.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown scheduler")
		}
	}

	err := app.Server.Shutdown(ctx)

	for _, c := range app.closers {
		if closeErr := c.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close kafka client")
		}
	}

	if app.traceProvider != nil {
		if err := app.traceProvider.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown tracing")
		}
	}

	return err
}
