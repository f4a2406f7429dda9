package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager batches audit entries off the request path and hands them to a
// worker pool for publishing. Entries are best-effort: a full pipeline
// falls back to the log instead of blocking a handler.
type Manager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	producer    Producer
	log         *zap.Logger

	inputChan  chan Entry
	batchChan  chan []Entry
	shutdownCh chan struct{}
	once       sync.Once
	wg         sync.WaitGroup
}

func NewManager(workerCount, batchSize int, timeout time.Duration, producer Producer, log *zap.Logger) *Manager {
	if workerCount <= 0 {
		workerCount = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Manager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		producer:    producer,
		log:         log,
		inputChan:   make(chan Entry, workerCount*batchSize*2),
		batchChan:   make(chan []Entry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}
}

// Record queues one entry; it never blocks the caller.
func (m *Manager) Record(entry Entry) {
	select {
	case m.inputChan <- entry:
	default:
		m.logEntry(entry)
	}
}

func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.log.Info("audit manager stopped")
		case <-ctx.Done():
			m.log.Warn("audit manager shutdown interrupted")
		}

		if err := m.producer.Close(); err != nil {
			m.log.Error("failed to close audit producer", zap.Error(err))
		}
	})
}

func (m *Manager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []Entry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *Manager) dispatchBatch(batch []Entry) {
	batchCopy := make([]Entry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		for _, entry := range batchCopy {
			m.logEntry(entry)
		}
	}
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()

	for batch := range m.batchChan {
		for _, entry := range batch {
			m.publish(entry)
		}
	}
	m.log.Debug("audit worker exiting", zap.Int("worker", id))
}

// publish uses its own timeout so shutdown-time drains still flush.
func (m *Manager) publish(entry Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		m.log.Error("failed to marshal audit entry", zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.producer.SendMessage(sendCtx, []byte(entry.ID.String()), payload); err != nil {
		m.log.Error("failed to publish audit entry", zap.Error(err))
		m.logEntry(entry)
	}
}

func (m *Manager) logEntry(entry Entry) {
	m.log.Info("audit (direct)",
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.String("actor", entry.Actor),
		zap.Int("status", entry.Status),
	)
}
