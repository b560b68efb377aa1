/**
 * Direct Redis Queue Consumer for PlanParse Worker
 *
 * Compatible with the TypeScript RedisQueue implementation the estimate API
 * uses to enqueue parse jobs. Uses plain Redis LIST operations so the Node
 * producer and this worker agree byte for byte.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bidright/planparse-worker/internal/errors"
	"github.com/bidright/planparse-worker/internal/processor"
)

// RedisJobData represents a job envelope from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual plan parse job data
type JobPayload struct {
	PlanParseID string                 `json:"planParseId"`
	UserID      string                 `json:"userId"`
	ProjectID   string                 `json:"projectId,omitempty"`
	Filename    string                 `json:"filename"`
	TotalPages  int                    `json:"totalPages,omitempty"`
	Pages       []PagePayload          `json:"pages,omitempty"`
	PagesURL    string                 `json:"pagesUrl,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// PagePayload is one page of pre-extracted text. Image is an optional page
// render for scanned sheets.
type PagePayload struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
	Image      []byte // set by custom UnmarshalJSON
}

// UnmarshalJSON handles the image field in both the base64 string format and
// the legacy Node.js Buffer object format.
func (p *PagePayload) UnmarshalJSON(data []byte) error {
	type Alias PagePayload
	aux := &struct {
		Image interface{} `json:"image,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal page payload: %w", err)
	}

	if aux.Image == nil {
		return nil
	}

	switch v := aux.Image.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 page image: %w", err)
		}
		p.Image = decoded

	case map[string]interface{}:
		// Node.js Buffer object: {"type":"Buffer","data":[...]}
		bufferType, ok := v["type"].(string)
		if !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.Image = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.Image[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("page image must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.PlanProcessorInterface
	config    *RedisConsumerConfig
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PlanProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 300000 (5 minutes)
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "planparse:jobs"
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	log.Printf("Starting Redis queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	log.Println("Queue consumer started successfully")
	return nil
}

// Stop gracefully stops the consumer
func (c *RedisConsumer) Stop() error {
	log.Println("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// worker is a goroutine that processes jobs
func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log.Printf("Worker %d started", id)

	for {
		select {
		case <-c.ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if err.Error() != "no jobs available" {
					log.Printf("Worker %d error: %v", id, err)
				}
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("no jobs available")
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	jobID := result[1]

	jobData, err := c.client.HGet(c.ctx, fmt.Sprintf("%s:data", c.config.QueueName), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	// Idempotent: creates the job record if the API has not yet
	if err := c.processor.UpdateJobStatus(c.ctx, job.Payload.PlanParseID, "processing", 0, map[string]interface{}{
		"filename":  job.Payload.Filename,
		"userId":    job.Payload.UserID,
		"projectId": job.Payload.ProjectID,
	}); err != nil {
		log.Printf("Note: Could not update job status to processing (job may not exist in DB yet): %v", err)
	}

	c.updateJobStatus(job.Payload.PlanParseID, "processing", nil)

	log.Printf("Processing job %s: %s", job.Payload.PlanParseID, job.Payload.Filename)

	processResult, err := c.processJob(&job)
	if err != nil {
		log.Printf("Job %s failed: %v", job.Payload.PlanParseID, err)

		job.Attempts++
		if job.Attempts < job.MaxRetries {
			updatedData, _ := json.Marshal(job)
			c.client.HSet(c.ctx, fmt.Sprintf("%s:data", c.config.QueueName), job.ID, updatedData)
			c.client.LPush(c.ctx, c.config.QueueName, job.ID)
			log.Printf("Job %s re-queued for retry (attempt %d/%d)", job.Payload.PlanParseID, job.Attempts, job.MaxRetries)
		} else {
			c.updateJobStatus(job.Payload.PlanParseID, "failed", map[string]interface{}{
				"error":    err.Error(),
				"attempts": job.Attempts,
			})
		}
	} else {
		c.updateJobStatus(job.Payload.PlanParseID, "completed", processResult)
		log.Printf("Job %s completed successfully", job.Payload.PlanParseID)
	}

	return nil
}

// processJob handles the actual plan parsing
func (c *RedisConsumer) processJob(job *RedisJobData) (*processor.ProcessResult, error) {
	startTime := time.Now()

	pages := make([]processor.PageText, 0, len(job.Payload.Pages))
	for _, pg := range job.Payload.Pages {
		pages = append(pages, processor.PageText{
			PageNumber: pg.PageNumber,
			Text:       pg.Text,
			Image:      pg.Image,
		})
	}

	totalPages := job.Payload.TotalPages
	if totalPages == 0 {
		totalPages = len(pages)
	}

	request := &processor.ProcessRequest{
		PlanParseID: job.Payload.PlanParseID,
		UserID:      job.Payload.UserID,
		ProjectID:   job.Payload.ProjectID,
		Filename:    job.Payload.Filename,
		TotalPages:  totalPages,
		Pages:       pages,
		PagesURL:    job.Payload.PagesURL,
		Metadata:    job.Payload.Metadata,
	}

	timeout := time.Duration(300000) * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := c.processor.ProcessPlan(ctx, request)

	duration := time.Since(startTime)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("[Parse %s] Processing timed out after %v (timeout: %v)", job.Payload.PlanParseID, duration, timeout)

			timeoutErr := errors.NewProcessingTimeoutError(job.Payload.PlanParseID, timeout, err)
			errorMap := timeoutErr.ToMap()

			if updateErr := c.processor.UpdateJobStatus(c.ctx, job.Payload.PlanParseID, "failed", 100, errorMap); updateErr != nil {
				log.Printf("[Parse %s] Warning: Failed to update status to failed: %v", job.Payload.PlanParseID, updateErr)
			}

			return nil, fmt.Errorf("processing timeout: %w", timeoutErr)
		}

		return nil, err
	}

	log.Printf("[Parse %s] Processing completed in %v", job.Payload.PlanParseID, duration)
	return result, nil
}

// updateJobStatus updates the status of a job in both Redis AND PostgreSQL
func (c *RedisConsumer) updateJobStatus(planParseID string, status string, result interface{}) {
	// Redis queue bookkeeping
	if status == "processing" {
		c.client.SAdd(c.ctx, fmt.Sprintf("%s:processing", c.config.QueueName), planParseID)
	} else if status == "completed" {
		c.client.SRem(c.ctx, fmt.Sprintf("%s:processing", c.config.QueueName), planParseID)
		c.client.SAdd(c.ctx, fmt.Sprintf("%s:completed", c.config.QueueName), planParseID)
		if result != nil {
			resultData, _ := json.Marshal(result)
			c.client.HSet(c.ctx, fmt.Sprintf("%s:results", c.config.QueueName), planParseID, resultData)
		}
	} else if status == "failed" {
		c.client.SRem(c.ctx, fmt.Sprintf("%s:processing", c.config.QueueName), planParseID)
		c.client.SAdd(c.ctx, fmt.Sprintf("%s:failed", c.config.QueueName), planParseID)
		if result != nil {
			errorData, _ := json.Marshal(result)
			c.client.HSet(c.ctx, fmt.Sprintf("%s:errors", c.config.QueueName), planParseID, errorData)
		}
	}

	// PostgreSQL for persistent job tracking
	if status == "completed" {
		if processResult, ok := result.(*processor.ProcessResult); ok {
			if err := c.processor.UpdateJobStatus(c.ctx, planParseID, status, 100, map[string]interface{}{
				"roomCount":      processResult.RoomCount,
				"relevantPages":  processResult.RelevantPages,
				"fallbackUsed":   processResult.FallbackUsed,
				"processingTime": processResult.ProcessingTimeMs,
			}); err != nil {
				log.Printf("[PostgreSQL] ERROR: Failed to update job status: %v", err)
			} else {
				log.Printf("[PostgreSQL] Job %s updated successfully (rooms=%d, fallback=%v)",
					planParseID, processResult.RoomCount, processResult.FallbackUsed)
			}
		} else {
			log.Printf("[PostgreSQL] WARNING: ProcessResult type assertion failed. Marking as completed without details.")
			if err := c.processor.UpdateJobStatus(c.ctx, planParseID, status, 100, nil); err != nil {
				log.Printf("[PostgreSQL] ERROR: Failed to update job status (fallback): %v", err)
			}
		}
	} else if status == "failed" {
		errorMsg := "Unknown error"
		if resultMap, ok := result.(map[string]interface{}); ok {
			if errStr, ok := resultMap["error"].(string); ok {
				errorMsg = errStr
			}
		}

		if err := c.processor.UpdateJobStatus(c.ctx, planParseID, status, 0, map[string]interface{}{
			"error": errorMsg,
		}); err != nil {
			log.Printf("WARNING: Failed to update PostgreSQL job status for failed job: %v", err)
		}
	} else if status == "processing" {
		if err := c.processor.UpdateJobStatus(c.ctx, planParseID, status, 0, nil); err != nil {
			log.Printf("WARNING: Failed to update PostgreSQL job status to processing: %v", err)
		}
	}

	// Publish event for WebSocket streaming
	event := map[string]interface{}{
		"event":       fmt.Sprintf("job:%s", status),
		"planParseId": planParseID,
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	c.client.Publish(c.ctx, fmt.Sprintf("%s:events", c.config.QueueName), eventData)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats() (map[string]int64, error) {
	ctx := context.Background()

	waiting, _ := c.client.LLen(ctx, c.config.QueueName).Result()
	processing, _ := c.client.SCard(ctx, fmt.Sprintf("%s:processing", c.config.QueueName)).Result()
	completed, _ := c.client.SCard(ctx, fmt.Sprintf("%s:completed", c.config.QueueName)).Result()
	failed, _ := c.client.SCard(ctx, fmt.Sprintf("%s:failed", c.config.QueueName)).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}
