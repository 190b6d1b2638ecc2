package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/cache"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/cropping"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/archive"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/config"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/email"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/ffmpeg"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/httpapi"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/metrics"
	miniostorage "github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/minio"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/ollama"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/postgres"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/rabbitmq"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/tracing"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/youtube"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/ytdlp"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/pipeline"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/sampling"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/synthesis"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/usecase"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting tutorial-extraction-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()
	fatalOnErr(postgres.EnsureSchema(ctx, pool), "ensure database schema")

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		ArchiveBucket: cfg.MinIOArchiveBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	progressPub := rabbitmq.NewProgressPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	runRepo := postgres.NewRunRepository(pool)
	metricsRepo := postgres.NewMetricsRepository(pool)
	reader := ffmpeg.NewReader(cfg.FFmpegFormat, log)
	discovery := youtube.NewDiscovery(cfg.YouTubeAPIKey, cfg.MaxVideoDurationSeconds, log)
	acquirer := ytdlp.NewAcquirer(log)
	inference := ollama.NewInference(ollama.Config{
		BaseURL: cfg.OllamaBaseURL,
		Port:    cfg.OllamaPort,
		Model:   cfg.VisionModel,
	}, log)
	resultCache := cache.New(cfg.CacheRoot, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Pipeline
	orchestrator := pipeline.New(
		discovery,
		acquirer,
		reader,
		sampling.New(reader, log),
		cropping.New(log),
		synthesis.New(inference, log),
		resultCache,
		metricsRepo,
		log,
		pipeline.Config{
			OutputRoot: cfg.OutputRoot,
			VideosDir:  cfg.VideosDir,
		},
	)

	// Use case
	uc := usecase.NewExtractTutorialUseCase(
		orchestrator,
		runRepo,
		progressPub, dlqPub, notifier,
		archive.NewZipper(), storage,
		log,
		usecase.ExtractTutorialConfig{
			OutputRoot: cfg.OutputRoot,
			TempDir:    cfg.TempDir,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Inspection API
	apiSrv := httpapi.NewServer(resultCache, metricsRepo, cfg.OutputRoot, log).Start(ctx, cfg.APIPort)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:           cfg.RabbitMQURL,
		RequestQueue:  cfg.RabbitMQRequestQueue,
		ProgressQueue: cfg.RabbitMQProgressQueue,
		DLQ:           cfg.RabbitMQDLQ,
		Exchange:      cfg.RabbitMQExchange,
		Prefetch:      cfg.RabbitMQPrefetch,
		WorkerCount:   cfg.WorkerCount,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("tutorial-extraction-service started, consuming requests")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)
	apiSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("tutorial-extraction-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
