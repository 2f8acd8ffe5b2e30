package worker

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"socialnet/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second
)

// Manager runs worker goroutines that consume the event stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	instance    string
	log         zerolog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
	// Instance prefixes consumer names so several processes can share the
	// group. It must be stable across restarts for pending messages to be
	// replayed; defaults to the hostname.
	Instance string
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig, log zerolog.Logger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.Instance == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = xid.New().String()
		}
		cfg.Instance = host
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		instance:    cfg.Instance,
		log:         log,
	}
}

// Start launches the workers. Call Stop to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamEvents, queue.ConsumerGroupEvents); err != nil {
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i, m.consumerName(i))
	}

	m.log.Info().
		Int("workers", m.workerCount).
		Str("stream", queue.StreamEvents).
		Str("group", queue.ConsumerGroupEvents).
		Msg("workers started")
	return nil
}

// Stop blocks until every worker has returned.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.log.Info().Msg("workers stopped")
}

// Run starts the workers and stops them when ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	log := m.log.With().Int("worker", workerID).Str("consumer", consumerName).Logger()

	// messages delivered before a crash and never acked
	m.processPending(log, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			m.processMessages(log, consumerName)
		}
	}
}

func (m *Manager) processPending(log zerolog.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamEvents, queue.ConsumerGroupEvents, consumerName, m.batchSize)
		if err != nil {
			log.Warn().Err(err).Msg("read pending failed")
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info().Int("count", len(messages)).Msg("replaying pending messages")
		m.handleMessages(log, messages)
	}
}

func (m *Manager) processMessages(log zerolog.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, queue.StreamEvents, queue.ConsumerGroupEvents, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("read failed")
		select {
		case <-time.After(time.Second):
		case <-m.ctx.Done():
		}
		return
	}

	m.handleMessages(log, messages)
}

// handleMessages acks every message, including failed ones, so a poison
// message cannot block the stream. Repairs are idempotent and can be
// re-enqueued.
func (m *Manager) handleMessages(log zerolog.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Warn().Err(err).Str("msg_id", msg.ID).Str("type", msg.Event.Type).Msg("handler error")
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamEvents, queue.ConsumerGroupEvents, msg.ID); err != nil {
			log.Warn().Err(err).Str("msg_id", msg.ID).Msg("ack failed")
		}
	}
}

func (m *Manager) consumerName(workerID int) string {
	return m.instance + "-worker-" + strconv.Itoa(workerID)
}
