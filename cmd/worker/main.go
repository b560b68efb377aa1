/**
 * PlanParse Worker - Main Entry Point
 *
 * Go worker for blueprint parsing in the estimating pipeline.
 *
 * Architecture:
 * - Redis LIST consumer (Node-compatible) or Asynq consumer for the job queue
 * - Parse pipeline: classify pages -> detect levels -> select sheets ->
 *   extract rooms -> post-process -> dedup -> assemble response
 * - Model gateway for AI classification and room extraction
 * - Tesseract OCR fill-in for scanned sheets
 * - PostgreSQL + Qdrant persistence, estimate API result callback
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bidright/planparse-worker/internal/config"
	"github.com/bidright/planparse-worker/internal/processor"
	"github.com/bidright/planparse-worker/internal/queue"
	"github.com/bidright/planparse-worker/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.planparse"); err != nil {
		log.Printf("Warning: .env.planparse not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("PlanParse Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, PostgreSQL=%s, Qdrant=%s, Workers=%d, QueueDriver=%s",
		cfg.RedisURL, cfg.DatabaseURL, cfg.QdrantURL, cfg.WorkerConcurrency, cfg.QueueDriver)

	// Initialize unified storage manager (PostgreSQL + Qdrant)
	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized (PostgreSQL + Qdrant)")

	// Initialize plan processor
	log.Printf("Initializing plan processor with model gateway integration...")
	proc, err := processor.NewPlanProcessor(&processor.ProcessorConfig{
		VoyageAPIKey:      cfg.VoyageAPIKey,
		TesseractPath:     cfg.TesseractPath,
		StorageManager:    storageManager,
		ModelGatewayURL:   cfg.ModelGatewayURL,
		PageTextURL:       cfg.PageTextURL,
		EstimateAPIURL:    cfg.EstimateAPIURL,
		MaxDeepParsePages: cfg.MaxDeepParsePages,
		ClassifyTextLimit: cfg.ClassifyTextLimit,
		SampleLimit:       cfg.ClassifySampleLimit,
		MinSheetText:      cfg.MinSheetText,
	})
	if err != nil {
		log.Fatalf("Failed to initialize plan processor: %v", err)
	}
	log.Printf("Plan processor initialized")

	// Initialize queue consumer. The Node estimate API enqueues via plain
	// Redis LIST operations; asynq is available for Go-to-Go deployments.
	var stopConsumer func() error

	switch cfg.QueueDriver {
	case "asynq":
		log.Printf("Connecting to Redis queue (asynq driver)...")
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := consumer.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stopConsumer = func() error { return consumer.Stop(context.Background()) }

	default:
		log.Printf("Connecting to Redis queue (redis driver)...")
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := consumer.Start(); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stopConsumer = consumer.Stop
	}

	log.Printf("Queue consumer started with concurrency=%d", cfg.WorkerConcurrency)

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("PlanParse Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s)", cfg.QueueName, cfg.QueueDriver)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Deep parse cap: %d pages", cfg.MaxDeepParsePages)
	log.Printf("Classification sample limit: %d pages", cfg.ClassifySampleLimit)
	log.Printf("Model gateway: %s", cfg.ModelGatewayURL)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := stopConsumer(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

// healthCheck verifies storage connectivity; wired to an HTTP probe in
// deployments that want one.
func healthCheck(sm *storage.StorageManager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sm.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
