package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jhoicas/ddt-ledger/internal/application/ddt"
	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/application/notify"
	"github.com/jhoicas/ddt-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/ddt-ledger/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/ddt-ledger/internal/interfaces/http"
	"github.com/jhoicas/ddt-ledger/pkg/config"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()

	if cfg.DB.AutoMigrate {
		if err := migrateUp(cfg.DB.ConnectionString()); err != nil {
			log.Fatal().Err(err).Msg("aplicar migraciones")
		}
		log.Info().Msg("migraciones aplicadas")
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool, cfg.DB.LockTimeout)
	retry := inventory.RetryPolicy{
		MaxAttempts: cfg.Ledger.RetryMaxAttempts,
		BaseDelay:   cfg.Ledger.RetryBaseDelay,
	}

	// Redis opcional: sin REDIS_ADDR los eventos solo se registran en el log.
	var sink notify.AlertSink
	var broadcaster *redis.Broadcaster
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer client.Close()
		broadcaster = redis.NewBroadcaster(client, cfg.Redis.Channel, log.Component("redis"))
		sink = broadcaster
	}

	lowStock := notify.NewLowStockListener(txRunner, sink, log.Component("low_stock"))

	dispatcher := notify.NewDispatcher(log.Component("dispatcher"))
	dispatcher.Register("audit", notify.NewAuditListener(log.Component("audit")))
	dispatcher.Register("site_material", notify.NewSiteMaterialListener(txRunner, log.Component("site_material")))
	dispatcher.Register("low_stock", lowStock)
	if broadcaster != nil {
		dispatcher.Register("redis", broadcaster)
	}

	inventorySvc := inventory.NewService(txRunner, log.Component("inventory"),
		inventory.WithRetryPolicy(retry),
		inventory.WithStockAlerter(lowStock),
	)
	ddtSvc := ddt.NewService(txRunner, log.Component("ddt"),
		ddt.WithRetryPolicy(retry),
		ddt.WithPublisher(dispatcher),
	)

	scheduler := cron.New()
	if cfg.Ledger.AuditSchedule != "" {
		job := inventory.NewAuditJob(inventorySvc, log.Component("audit_job"))
		if _, err := scheduler.AddFunc(cfg.Ledger.AuditSchedule, job.Run); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Ledger.AuditSchedule).Msg("programar auditoría del ledger")
		}
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(cfg.HTTP.SwaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: cfg.HTTP.SwaggerFile,
			Path:     "docs",
			Title:    "DDT Ledger API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		DdtService:       ddtSvc,
		InventoryService: inventorySvc,
		JWTSecret:        cfg.JWT.Secret,
		JWTIssuer:        cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	// Espera a que termine una auditoría en curso.
	<-scheduler.Stop().Done()

	log.Info().Msg("aplicación detenida")
}

func migrateUp(databaseURL string) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
