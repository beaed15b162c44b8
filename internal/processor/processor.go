package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/queue"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/worker"
)

const ProcessingTimeout = time.Second * 10
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// Processor handles one queue message. Returning nil ACKs it.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
	// Redis is pinged by the health loop; nil skips the ping.
	Redis Pinger
}

// ProcessorService consumes the reward queue with several consumers and
// hands every message to a shared worker pool. The relay and reconciler,
// when set, run alongside with the same lifetime.
type ProcessorService struct {
	opts       Options
	newQueue   queueFactory
	queues     []*queue.Queue
	processor  Processor
	relay      *OutboxRelay
	reconciler *LedgerReconciler
	metrics    *ServiceMetrics
	worker     *worker.WorkerManager
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

type queueFactory func(cfg queue.QueueConfig) (*queue.Queue, error)

func NewProcessorService(newQueue queueFactory, processor Processor, opts Options) *ProcessorService {
	if opts.Consumers <= 0 {
		opts.Consumers = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		opts:      opts,
		newQueue:  newQueue,
		processor: processor,
		metrics:   NewServiceMetrics(),
		worker:    worker.NewWorkerManager(opts.Workers*10, opts.Workers, nil),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *ProcessorService) WithRelay(relay *OutboxRelay) *ProcessorService {
	s.relay = relay
	return s
}

func (s *ProcessorService) WithReconciler(reconciler *LedgerReconciler) *ProcessorService {
	s.reconciler = reconciler
	return s
}

func (s *ProcessorService) Metrics() *ServiceMetrics {
	return s.metrics
}

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service", "processor", s.processor.GetType())

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(s.ctx); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.opts.Consumers; i++ {
		cfg := s.opts.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-%d", cfg.ConsumerName, i)

		q, err := s.newQueue(cfg)
		if err != nil {
			return fmt.Errorf("failed to create queue consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	if s.relay != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.relay.Run(s.ctx)
		}()
	}
	if s.reconciler != nil {
		if err := s.reconciler.Start(s.ctx); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go s.healthChecker()

	logger.Info("processor service started", "consumers", len(s.queues), "workers", s.opts.Workers)
	return nil
}

func (s *ProcessorService) reportMetrics() {
	st := s.metrics.GetStats()
	logger.Info("processor metrics",
		"processed", st.Processed,
		"failed", st.Failed,
		"rate_per_second", st.RatePerSecond,
		"avg_duration_ms", st.AvgDuration.Milliseconds(),
		"uptime_seconds", int64(st.Uptime.Seconds()))
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()

	if s.opts.Redis != nil {
		if err := s.opts.Redis.Ping(ctx); err != nil {
			logger.Error("health check failed: redis unreachable", "error", err)
			return
		}
	}

	// Consumers share one stream and group, so the first one speaks for all.
	if len(s.queues) == 0 {
		return
	}
	stats, err := s.queues[0].GetStats(ctx)
	if err != nil {
		logger.Warn("health check: queue stats unavailable", "error", err)
		return
	}
	if stats.PendingMessages > 1000 {
		logger.Warn("health check: reward queue lagging", "pending", stats.PendingMessages)
	}
	logger.Debug("health check ok", "stream_len", stats.TotalMessages, "pending", stats.PendingMessages)
}

// Stop drains consumers, then workers, then background loops.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")

	var stopping sync.WaitGroup
	for i, q := range s.queues {
		stopping.Add(1)
		go func(index int, q *queue.Queue) {
			defer stopping.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue consumer", "consumer", index, "error", err)
			}
		}(i, q)
	}
	stopping.Wait()

	if s.reconciler != nil {
		s.reconciler.Stop()
	}

	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("processor service stopped")
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

// messageHandler blocks the consumer until a worker has handled msg, so
// the queue's ACK/redelivery decision follows the processor's result.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	j := &job{ctx: ctx, msg: msg, result: make(chan error, 1)}
	if !s.worker.Enqueue(ctx, j) {
		return fmt.Errorf("worker pool rejected message %s", msg.ID)
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for worker on message %s: %w", msg.ID, ctx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Warn("reward event not processed, will be redelivered",
			"worker", workerIndex, "queue_id", j.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// result is buffered so this never blocks.
	j.result <- err
}
