package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/queue"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/redis"
	"github.com/nimasrn/btc-invoice-gateway/pkg/worker"
)

const ProcessingTimeout = time.Second * 15
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// Config sizes the consumer side of the processor.
type Config struct {
	Queue      queue.QueueConfig
	Consumers  int
	Workers    int
	BufferSize int
}

// ProcessorService consumes the wallet event stream and hands every message
// to the registered Processor through a bounded worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	config    Config
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

func NewProcessorService(adapter redis.RedisAdapter, config Config) *ProcessorService {
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.BufferSize <= 0 {
		config.BufferSize = config.Workers * 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: adapter,
		config:  config,
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(config.BufferSize, config.Workers),
	}
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("Registered processor", "type", processor.GetType())
}

func (s *ProcessorService) Metrics() *ServiceMetrics {
	return s.metrics
}

func (s *ProcessorService) Start() error {
	logger.Info("Starting Processor Service...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(s.ctx); err != nil && !errors.Is(err, worker.ErrStopped) {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		queueConfig := s.config.Queue
		queueConfig.ConsumerName = fmt.Sprintf("%s-instance-%d", queueConfig.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}

		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
		logger.Info("Started consumer instance", "instance", i)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("Processor Service started", "consumers", len(s.queues), "workers", s.config.Workers)
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.Stats()
	logger.Info("Metrics", "total_processed", stats.Processed, "total_failed", stats.Failed, "rate_per_second", stats.RatePerSecond, "avg_duration_ms", stats.AvgDuration.Milliseconds(), "uptime_seconds", stats.Uptime.Seconds())

	// All consumers share one stream, so the first queue speaks for the rest.
	if len(s.queues) > 0 {
		if qStats, err := s.queues[0].GetStats(); err == nil {
			logger.Info("Queue stats", "queue", s.queues[0].Name(), "total", qStats.TotalMessages, "pending", qStats.PendingMessages, "dead_letters", qStats.DeadLetters)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Ping(); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}

	if len(s.queues) > 0 {
		stats, err := s.queues[0].GetStats()
		if err != nil {
			logger.Warn("HEALTH CHECK WARNING: Queue stats unavailable", "error", err)
			return
		}
		if stats.PendingMessages > 1000 {
			logger.Warn("HEALTH CHECK WARNING: Queue has high lag", "pending_messages", stats.PendingMessages)
		}
		if stats.DeadLetters > 0 {
			logger.Warn("HEALTH CHECK WARNING: dead letters present", "dead_letters", stats.DeadLetters)
		}
	}

	logger.Debug("HEALTH CHECK: OK")
}

// Stop drains consumers first so no message is handed to a stopped pool.
func (s *ProcessorService) Stop() {
	logger.Info("Shutting down Processor Service...")

	done := make(chan struct{}, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("Error stopping queue", "queue", index, "error", err)
			}
			done <- struct{}{}
		}(i, q)
	}
	for range s.queues {
		select {
		case <-done:
		case <-time.After(ShutdownTimeout + 5*time.Second):
			logger.Warn("Timeout waiting for queues to stop")
		}
	}

	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("Processor Service stopped")
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands msg to the pool and waits for the outcome so the
// queue can ack or retry it.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: make(chan error, 1),
		ctx:        msgCtx,
	}

	if err := s.worker.Enqueue(msgCtx, job); err != nil {
		return fmt.Errorf("enqueue message %s: %w", msg.ID, err)
	}

	select {
	case err := <-job.resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process message: %w", msgCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(_ context.Context, workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	if jobRes.ctx.Err() != nil {
		logger.Warn("Job context cancelled before processing started", "worker", workerIndex, "message_id", jobRes.msg.ID)
		return
	}

	start := time.Now()
	var resultErr error

	if s.processor == nil {
		// Nothing will ever handle it, so retrying is pointless.
		logger.Warn("No processor registered", "worker", workerIndex)
		s.metrics.RecordFailure()
	} else if err := s.processor.Process(jobRes.ctx, jobRes.msg); err != nil {
		s.metrics.RecordFailure()
		logger.Error("Failed to process message", "worker", workerIndex, "message_id", jobRes.msg.ID, "attempts", jobRes.msg.Attempts, "error", err)
		resultErr = err
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// resultChan is buffered, so this never blocks.
	jobRes.resultChan <- resultErr
}
