package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/ai"
	"github.com/courseloop/autograder/internal/config"
	"github.com/courseloop/autograder/internal/db"
	"github.com/courseloop/autograder/internal/filestore"
	"github.com/courseloop/autograder/internal/grading"
	"github.com/courseloop/autograder/internal/handler"
	"github.com/courseloop/autograder/internal/ingest"
	"github.com/courseloop/autograder/internal/job"
	"github.com/courseloop/autograder/internal/middleware"
	"github.com/courseloop/autograder/internal/queue"
	"github.com/courseloop/autograder/internal/repo"
	"github.com/courseloop/autograder/internal/schedule"
	"github.com/courseloop/autograder/internal/service"
	"github.com/courseloop/autograder/internal/worker"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "autograder",
		Short: "assignment grading service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the grading server and workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	rootLogger := logutil.GetLogger(context.Background())
	rootLogger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("queue", cfg.Queue.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	assignmentRepo := repo.NewAssignmentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	submissionRepo := repo.NewSubmissionRepo(database)
	gradeRepo := repo.NewGradeRepo(database)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	provider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel)
	generator := ai.NewGenerator(provider, cfg.AI.Model)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	var taskQueue queue.TaskQueue
	switch cfg.Queue.Type {
	case "rabbitmq":
		taskQueue, err = queue.NewRabbitQueue(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.Prefetch)
		if err != nil {
			return fmt.Errorf("init rabbitmq queue: %w", err)
		}
	default:
		taskQueue = queue.NewMemoryQueue(0)
	}
	defer taskQueue.Close()

	chunking := ingest.ChunkConfig{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap}
	extractor := ingest.NewExtractor()
	indexer := ingest.NewIndexer(embedder, chunkRepo, aiTimeout)
	retriever := grading.NewRetriever(embedder, chunkRepo, aiTimeout)
	assembler := grading.NewAssembler(cfg.Grading.MaxPromptChars)
	gradingClient := grading.NewClient(generator, grading.ClientConfig{
		MaxContractAttempts:  cfg.Grading.MaxContractAttempts,
		MaxTransportAttempts: cfg.Grading.MaxTransportAttempts,
		Backoff:              time.Duration(cfg.Grading.BackoffMillis) * time.Millisecond,
		Timeout:              aiTimeout,
	})

	assignmentService := service.NewAssignmentService(assignmentRepo, chunkRepo, store, extractor, indexer, chunking)
	submissionService := service.NewSubmissionService(submissionRepo, gradeRepo, assignmentRepo, store, extractor, taskQueue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gradingWorker := worker.New(
		taskQueue,
		submissionRepo,
		assignmentRepo,
		gradeRepo,
		retriever,
		assembler,
		gradingClient,
		worker.Config{Workers: cfg.Grading.Workers, TopK: cfg.Grading.TopK},
	)
	if err := gradingWorker.Start(ctx); err != nil {
		return fmt.Errorf("start grading workers: %w", err)
	}

	lease := time.Duration(cfg.Grading.LeaseSeconds) * time.Second
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRequeueStuckJob(submissionRepo, taskQueue, lease), "* * * * *"); err != nil {
		return fmt.Errorf("schedule recovery sweep: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Assignments: handler.NewAssignmentHandler(assignmentService),
		Submissions: handler.NewSubmissionHandler(submissionService),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	rootLogger.Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	rootLogger.Info("server stopping, draining workers...")
	gradingWorker.Wait()
	return nil
}
