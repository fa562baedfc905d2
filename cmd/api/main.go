package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/medcompli/cme-go-api/internal/config"
	"github.com/medcompli/cme-go-api/internal/database"
	"github.com/medcompli/cme-go-api/internal/handler"
	"github.com/medcompli/cme-go-api/internal/middleware"
	"github.com/medcompli/cme-go-api/internal/models"
	"github.com/medcompli/cme-go-api/internal/repository"
	"github.com/medcompli/cme-go-api/internal/router"
	"github.com/medcompli/cme-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.ActivityCatalogEntry{},
		&models.ActivityRecord{},
		&models.ComplianceCycle{},
		&models.CreditRule{},
		&models.AuditLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not configured, audit events persist inline")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	classification := cfg.Classification()

	catalogRepo := repository.NewCatalogRepository(db)
	recordRepo := repository.NewActivityRecordRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	ruleRepo := repository.NewCreditRuleRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	auditService := service.NewAuditService(auditRepo, natsConn, cfg.AuditSubject, logger)
	catalogService := service.NewCatalogService(catalogRepo, validate, auditService, logger)
	recordService := service.NewRecordService(recordRepo, catalogRepo, validate, auditService, logger)
	complianceService := service.NewComplianceService(recordRepo, catalogRepo, cycleRepo, ruleRepo, validate, classification, logger)
	statisticsService := service.NewStatisticsService(complianceService, redisClient, cfg.StatisticsCacheTTL, classification, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	auditService.Start(workerCtx)

	catalogHandler := handler.NewCatalogHandler(catalogService, logger)
	recordHandler := handler.NewRecordHandler(recordService, logger)
	complianceHandler := handler.NewComplianceHandler(complianceService, statisticsService, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CatalogHandler:    catalogHandler,
		RecordHandler:     recordHandler,
		ComplianceHandler: complianceHandler,
		AuditHandler:      auditHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorkers)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
