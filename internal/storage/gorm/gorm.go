// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. The postgres and
// sqlite backends wrap it with their own connection handling.
package gormstorage

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/motorsim/motorsim/internal/database"
	"github.com/motorsim/motorsim/internal/model"
	"github.com/motorsim/motorsim/internal/model/convert"
	"github.com/motorsim/motorsim/internal/queue"
	"github.com/motorsim/motorsim/pkg/core"

	"gorm.io/gorm"
)

const (
	// DefaultFlushInterval is how often queued rows are written.
	DefaultFlushInterval = 250 * time.Millisecond
	// DefaultQueueLimit caps each queue while the database is unreachable.
	DefaultQueueLimit = 100000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Commands    *queue.Queue[model.Command]
	AxisSamples *queue.Queue[model.AxisSample]
}

func newQueues(limit int) *queues {
	return &queues{
		Commands:    queue.New[model.Command](limit),
		AxisSamples: queue.New[model.AxisSample](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// New creates a new GORM storage backend. deps.DB must be set before Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.QueueLimit <= 0 {
		deps.QueueLimit = DefaultQueueLimit
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(deps.QueueLimit),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend has no database")
	}
	b.deps.Logger.Info("Migrating schema")
	if err := database.Setup(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
	})
	return nil
}

// StartSession inserts the session and its simulators and remembers the ID
// for the rows that follow.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	return nil
}

// SetSessionID sets the current session ID for the DB writer.
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// EndSession flushes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	b.Flush()
	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	return b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", time.Now()).Error
}

// RecordCommand converts and queues an exchange.
func (b *Backend) RecordCommand(r *core.CommandRecord) error {
	b.queues.Commands.Push(convert.CoreToCommand(*r))
	return nil
}

// RecordAxisState converts and queues an axis sample.
func (b *Backend) RecordAxisState(s *core.AxisState) error {
	b.queues.AxisSamples.Push(convert.CoreToAxisSample(*s))
	return nil
}

// Pending returns the number of rows waiting to be written.
func (b *Backend) Pending() int {
	return b.queues.Commands.Len() + b.queues.AxisSamples.Len()
}

// Dropped returns how many rows were discarded because a queue was full.
func (b *Backend) Dropped() uint64 {
	return b.queues.Commands.Dropped() + b.queues.AxisSamples.Dropped()
}

// Flush writes every queued row now.
func (b *Backend) Flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sessionID := uint(b.sessionID.Load())
	log := b.deps.Logger

	writeQueue(b.deps.DB, b.queues.Commands, "commands", log, func(items []model.Command) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(b.deps.DB, b.queues.AxisSamples, "axis samples", log, func(items []model.AxisSample) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the head of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) {
	items := q.Drain()
	if len(items) == 0 {
		return
	}

	tx := db.Begin()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error writing queue", "queue", name, "count", len(items), "error", err)
		tx.Rollback()
		if n := q.Requeue(items); n > 0 {
			log.Warn("Queue full, discarded oldest rows", "queue", name, "discarded", n, "total", q.Dropped())
		}
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing queue", "queue", name, "error", err)
		if n := q.Requeue(items); n > 0 {
			log.Warn("Queue full, discarded oldest rows", "queue", name, "discarded", n, "total", q.Dropped())
		}
		return
	}
	log.Debug("Wrote queue", "queue", name, "count", len(items))
}

// writerLoop periodically drains the queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
