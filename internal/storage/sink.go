package storage

import (
	"context"
	"sync"
	"time"

	"github.com/mselser95/cycle-arb/internal/arbitrage"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

const (
	kindOpportunity = "opportunity"
	kindExecution   = "execution"
)

type record struct {
	opp    *arbitrage.Opportunity
	result *types.ExecutionResult
}

func (r record) kind() string {
	if r.opp != nil {
		return kindOpportunity
	}
	return kindExecution
}

// AsyncSinkConfig holds async sink configuration.
type AsyncSinkConfig struct {
	Storage      Storage
	BufferSize   int
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// AsyncSink hands records to a Storage from a single background writer.
// Publishing never blocks the caller: a full buffer drops the record.
type AsyncSink struct {
	storage      Storage
	queue        chan record
	writeTimeout time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncSink creates a sink and starts its writer.
func NewAsyncSink(cfg *AsyncSinkConfig) *AsyncSink {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &AsyncSink{
		storage:      cfg.Storage,
		queue:        make(chan record, cfg.BufferSize),
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// PublishOpportunity queues an opportunity for storage.
func (s *AsyncSink) PublishOpportunity(opp *arbitrage.Opportunity) {
	s.publish(record{opp: opp})
}

// PublishExecution queues an execution result for storage.
func (s *AsyncSink) PublishExecution(result *types.ExecutionResult) {
	s.publish(record{result: result})
}

func (s *AsyncSink) publish(r record) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		SinkDroppedTotal.WithLabelValues(r.kind()).Inc()
		return
	}

	select {
	case s.queue <- r:
		SinkQueuedTotal.WithLabelValues(r.kind()).Inc()
		SinkQueueDepth.Set(float64(len(s.queue)))
	default:
		SinkDroppedTotal.WithLabelValues(r.kind()).Inc()
		s.logger.Warn("sink-buffer-full", zap.String("kind", r.kind()))
	}
}

func (s *AsyncSink) run() {
	defer s.wg.Done()

	for r := range s.queue {
		SinkQueueDepth.Set(float64(len(s.queue)))
		s.write(r)
	}
}

func (s *AsyncSink) write(r record) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	var err error
	if r.opp != nil {
		err = s.storage.StoreOpportunity(ctx, r.opp)
	} else {
		err = s.storage.StoreExecution(ctx, r.result)
	}

	if err != nil {
		WritesTotal.WithLabelValues(r.kind(), "error").Inc()
		s.logger.Error("storage-write-failed",
			zap.String("kind", r.kind()),
			zap.Error(err))
		return
	}
	WritesTotal.WithLabelValues(r.kind(), "ok").Inc()
}

// Close stops accepting records, drains the buffer and closes the storage.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	SinkQueueDepth.Set(0)

	return s.storage.Close()
}
