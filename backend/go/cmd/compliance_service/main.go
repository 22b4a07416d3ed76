package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accord/backend/go/internal/audit"
	"accord/backend/go/internal/compliance_service/api"
	"accord/backend/go/internal/config"
	"accord/backend/go/internal/database/kafka"
	"accord/backend/go/internal/database/minio"
	"accord/backend/go/internal/database/mongo"
	"accord/backend/go/internal/database/mysql"
	"accord/backend/go/internal/database/redis"
	"accord/backend/go/internal/embedding"
	"accord/backend/go/internal/finetune"
	"accord/backend/go/internal/ingest"
	"accord/backend/go/internal/llm"
	"accord/backend/go/internal/pii"
	"accord/backend/go/internal/qa"
	"accord/backend/go/internal/registry"
	"accord/backend/go/internal/search"
	"accord/backend/go/internal/store"
	userservice "accord/backend/go/internal/user_service/service"
	userstore "accord/backend/go/internal/user_service/store"
	httpserver "accord/backend/go/pkg/http"
	"accord/backend/go/pkg/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("compliance-service", "", "")
	appLogger.Info("Starting compliance service")

	// Install the unioffice license before any DOCX hits the extractor.
	if err := ingest.SetUnidocLicense(cfg.Unidoc.LicenseKey); err != nil {
		appLogger.WithError(err).Warn("UniDoc license rejected, DOCX extraction runs unlicensed")
	}

	// Connect to backing stores
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)

	mysqlDB, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MySQL")
	}

	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}

	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MinIO")
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()
	for _, bucket := range []string{cfg.Databases.MinIO.Bucket, cfg.FineTune.DatasetBucket} {
		if err := minio.EnsureBucket(startupCtx, minioClient, bucket); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure MinIO bucket " + bucket)
		}
	}

	// Relational schema for accounts, roles and permissions
	users := userstore.NewStore(mysqlDB)
	if err := users.Migrate(); err != nil {
		appLogger.WithError(err).Fatal("Failed to migrate user schema")
	}

	// Mongo-backed stores
	auditStore := store.NewMongoAuditStore(db)
	docStore := store.NewMongoDocumentStore(db)
	jobStore := store.NewMongoFineTuneStore(db)
	registryStore := store.NewMongoRegistryStore(db)

	// Optional Kafka mirror of the audit trail
	var kafkaClient *kafka.Client
	var auditPublisher *kafka.AuditPublisher
	var trailPublisher audit.Publisher
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err = kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to Kafka")
		}
		auditPublisher = kafka.NewAuditPublisher(kafkaClient)
		trailPublisher = auditPublisher
	}
	trail := audit.NewTrail(auditStore, trailPublisher)

	// Model providers
	embedder, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create embedding provider")
	}
	adapter, err := llm.NewAdapter(&cfg.LLM)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create LLM adapter")
	}

	var redactor *pii.Redactor
	if cfg.PII.Enabled {
		redactor = pii.NewRedactor(cfg.PII.Patterns)
	}

	// Domain services
	engine := search.NewEngine(docStore, embedder, cfg.Embedding.Dimension, cfg.Search)
	orchestrator := qa.NewOrchestrator(engine, adapter, trail, cfg.QA)

	documents, err := ingest.NewService(docStore, embedder, minioClient, trail, redactor, cfg.Ingest, cfg.Databases.MinIO.Bucket)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create ingest service")
	}
	if err := documents.WarmDedupe(startupCtx); err != nil {
		appLogger.WithError(err).Warn("Dedupe filter warm-up failed, duplicates fall back to hash lookups")
	}

	tuning := finetune.NewService(jobStore, trail, minioClient, cfg.FineTune)
	modelRegistry := registry.NewService(registryStore)
	if err := modelRegistry.EnsureDefault(startupCtx, cfg.LLM.Provider, adapter.ModelID()); err != nil {
		appLogger.WithError(err).Warn("Model registry seeding failed, register the serving model via the API")
	}
	authService := userservice.NewService(users, userservice.NewRedisDenylist(redisClient), cfg.Auth)

	// Health probes behind the readiness endpoint
	health := map[string]api.HealthCheck{
		"mongodb": mongo.HealthCheck,
		"mysql":   mysql.HealthCheck,
		"redis":   redis.HealthCheck,
		"minio":   minio.HealthCheck,
	}
	if kafkaClient != nil {
		health["kafka"] = kafkaClient.HealthCheck
	}

	// HTTP surface
	handler := api.NewHandler(authService, orchestrator, documents, engine, tuning, modelRegistry, health)
	router := api.SetupRouter(handler, authService, redactor, cfg)

	srv, err := httpserver.NewServer(cfg, httpserver.WithHandler(router))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build HTTP server")
	}

	go func() {
		appLogger.Info("HTTP server listening on " + cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	if auditPublisher != nil {
		if err := auditPublisher.Close(); err != nil {
			appLogger.WithError(err).Error("Error closing Kafka audit publisher")
		}
	}
	if kafkaClient != nil {
		if err := kafkaClient.Close(); err != nil {
			appLogger.WithError(err).Error("Error closing Kafka client")
		}
	}
	if err := redis.Close(); err != nil {
		appLogger.WithError(err).Error("Error closing Redis connection")
	}
	if err := mysql.Close(); err != nil {
		appLogger.WithError(err).Error("Error closing MySQL connection")
	}
	if err := mongo.Close(context.Background()); err != nil {
		appLogger.WithError(err).Error("Error disconnecting from MongoDB")
	}

	appLogger.Info("Server gracefully stopped")
}
