/**
 * Queue Consumer for PlanParse Worker
 *
 * Consumes plan parse jobs from the BullMQ/Redis queue.
 * Uses Asynq (Go BullMQ-compatible library) for queue management.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bidright/planparse-worker/internal/errors"
	"github.com/bidright/planparse-worker/internal/processor"
)

// JobData represents the structure of a plan parse job from BullMQ
type JobData struct {
	PlanParseID string                 `json:"planParseId"`
	UserID      string                 `json:"userId"`
	ProjectID   string                 `json:"projectId,omitempty"`
	Filename    string                 `json:"filename"`
	TotalPages  int                    `json:"totalPages,omitempty"`
	Pages       []PagePayload          `json:"pages,omitempty"`
	PagesURL    string                 `json:"pagesUrl,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Consumer handles job consumption from Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.PlanProcessorInterface
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PlanProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 300000 (5 minutes)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
	}

	mux.HandleFunc("parse-plan", consumer.handleParsePlan)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// handleParsePlan processes one plan parse job
func (c *Consumer) handleParsePlan(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	log.Printf("[Parse %s] Processing plan: filename=%s, pages=%d, user=%s",
		jobData.PlanParseID, jobData.Filename, jobData.TotalPages, jobData.UserID)

	if err := c.processor.UpdateJobStatus(ctx, jobData.PlanParseID, "processing", 0, map[string]interface{}{
		"filename":  jobData.Filename,
		"userId":    jobData.UserID,
		"projectId": jobData.ProjectID,
	}); err != nil {
		log.Printf("[Parse %s] Warning: Failed to update status to processing: %v", jobData.PlanParseID, err)
	}

	timeout := time.Duration(300000) * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessPlan(processCtx, toProcessRequest(&jobData))

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Parse %s] Processing timed out after %v (timeout: %v)", jobData.PlanParseID, duration, timeout)

			timeoutErr := errors.NewProcessingTimeoutError(jobData.PlanParseID, timeout, err)
			errorMap := timeoutErr.ToMap()

			if updateErr := c.processor.UpdateJobStatus(ctx, jobData.PlanParseID, "failed", 100, errorMap); updateErr != nil {
				log.Printf("[Parse %s] Warning: Failed to update status to failed: %v", jobData.PlanParseID, updateErr)
			}

			return fmt.Errorf("processing timeout: %w", timeoutErr)
		}

		log.Printf("[Parse %s] Processing failed after %v: %v", jobData.PlanParseID, duration, err)

		if updateErr := c.processor.UpdateJobStatus(ctx, jobData.PlanParseID, "failed", 100, map[string]interface{}{
			"error":          err.Error(),
			"processingTime": duration.Milliseconds(),
		}); updateErr != nil {
			log.Printf("[Parse %s] Warning: Failed to update status to failed: %v", jobData.PlanParseID, updateErr)
		}

		return fmt.Errorf("plan parsing failed: %w", err)
	}

	log.Printf("[Parse %s] Processing completed in %v: success=%v, rooms=%d, fallback=%v",
		jobData.PlanParseID, duration, result.Success, result.RoomCount, result.FallbackUsed)

	if err := c.processor.UpdateJobStatus(ctx, jobData.PlanParseID, "completed", 100, map[string]interface{}{
		"roomCount":      result.RoomCount,
		"relevantPages":  result.RelevantPages,
		"fallbackUsed":   result.FallbackUsed,
		"processingTime": duration.Milliseconds(),
	}); err != nil {
		log.Printf("[Parse %s] Warning: Failed to update status to completed: %v", jobData.PlanParseID, err)
	}

	return nil
}

// toProcessRequest converts queue job data to the processor request shape.
func toProcessRequest(jobData *JobData) *processor.ProcessRequest {
	pages := make([]processor.PageText, 0, len(jobData.Pages))
	for _, pg := range jobData.Pages {
		pages = append(pages, processor.PageText{
			PageNumber: pg.PageNumber,
			Text:       pg.Text,
			Image:      pg.Image,
		})
	}

	totalPages := jobData.TotalPages
	if totalPages == 0 {
		totalPages = len(pages)
	}

	return &processor.ProcessRequest{
		PlanParseID: jobData.PlanParseID,
		UserID:      jobData.UserID,
		ProjectID:   jobData.ProjectID,
		Filename:    jobData.Filename,
		TotalPages:  totalPages,
		Pages:       pages,
		PagesURL:    jobData.PagesURL,
		Metadata:    jobData.Metadata,
	}
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
