package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/metrics"
)

const shipTimeout = 5 * time.Second

type AuditConfig struct {
	Workers   int
	BatchSize int
	Timeout   time.Duration
	Topic     string
}

// AuditManager groups audit entries into batches of BatchSize, or whatever
// arrived within Timeout of the first entry, and hands the batches to a
// pool of workers that ship them to the producer.
type AuditManager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	topic       string
	producer    kafka.Producer
	log         *zap.Logger

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	once       sync.Once

	// stateMu orders sends on inputChan before the close of shutdownCh, so
	// the aggregator's final drain sees every queued entry.
	stateMu  sync.RWMutex
	stopping bool

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(cfg AuditConfig, producer kafka.Producer, log *zap.Logger) *AuditManager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &AuditManager{
		workerCount: cfg.Workers,
		batchSize:   cfg.BatchSize,
		timeout:     cfg.Timeout,
		topic:       cfg.Topic,
		producer:    producer,
		log:         log.Named("audit"),
		inputChan:   make(chan AuditLogEntry, cfg.Workers*cfg.BatchSize*2),
		batchChan:   make(chan []AuditLogEntry, cfg.Workers*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *AuditManager) Start(ctx context.Context) {
	m.log.Info("starting audit manager", zap.Int("workers", m.workerCount), zap.Int("batch_size", m.batchSize))
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}

	go m.monitorShutdown(ctx)
}

func (m *AuditManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.log.Debug("context cancelled, stopping audit manager")
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

// Shutdown stops accepting batches and waits for the workers to drain, or
// for ctx to expire.
func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.log.Info("shutting down audit manager")
		m.stateMu.Lock()
		m.stopping = true
		close(m.shutdownCh)
		m.stateMu.Unlock()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.log.Info("audit manager stopped", zap.Int("pending", m.Pending()))
		case <-ctx.Done():
			m.log.Warn("audit manager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

// LogEntry queues entry. Once the manager is stopping the entry is shipped
// synchronously instead.
func (m *AuditManager) LogEntry(ctx context.Context, entry AuditLogEntry) {
	m.updatePendingCount(1)

	m.stateMu.RLock()
	if m.stopping {
		m.stateMu.RUnlock()
		m.shipNow(ctx, entry)
		return
	}

	select {
	case m.inputChan <- entry:
		m.stateMu.RUnlock()
	case <-ctx.Done():
		m.stateMu.RUnlock()
		m.shipNow(ctx, entry)
	}
}

func (m *AuditManager) shipNow(ctx context.Context, entry AuditLogEntry) {
	m.ship(ctx, -1, []AuditLogEntry{entry})
	m.updatePendingCount(-1)
}

func (m *AuditManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AuditLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	flush := func() {
		if timer != nil {
			timer.Stop()
		}
		timeoutC = nil
		if len(batch) > 0 {
			m.dispatchBatch(ctx, batch)
			batch = nil
		}
	}

	defer func() {
		// entries already queued still get shipped
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
				continue
			default:
			}
			break
		}
		flush()
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				flush()
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			flush()

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AuditManager) dispatchBatch(ctx context.Context, batch []AuditLogEntry) {
	batchCopy := make([]AuditLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		// every worker is busy
		m.ship(ctx, -1, batchCopy)
		m.updatePendingCount(-len(batchCopy))
	}
}

func (m *AuditManager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	m.log.Debug("audit worker started", zap.Int("worker", id))

	for batch := range m.batchChan {
		m.ship(ctx, id, batch)
		m.updatePendingCount(-len(batch))
	}
	m.log.Debug("audit worker exiting", zap.Int("worker", id))
}

func (m *AuditManager) ship(ctx context.Context, workerID int, batch []AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shipTimeout)
	defer cancel()

	for _, entry := range batch {
		value, err := json.Marshal(entry)
		if err != nil {
			metrics.AuditEntriesDroppedTotal.Inc()
			m.log.Error("failed to encode audit entry", zap.Error(err))
			continue
		}
		if err := m.producer.SendMessage(ctx, m.topic, []byte(entry.Handler), value); err != nil {
			metrics.AuditEntriesDroppedTotal.Inc()
			m.log.Warn("failed to ship audit entry",
				zap.Int("worker", workerID),
				zap.String("handler", entry.Handler),
				zap.Error(err),
			)
		}
	}
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}

// Pending reports entries accepted but not yet shipped.
func (m *AuditManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}
