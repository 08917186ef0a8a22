// Package audit persists entity change records off the request path.
package audit

import (
	"context"
	"log"
	"sync"
	"time"

	"crm/internal/model"

	"github.com/google/uuid"
)

// Entry describes one mutation. Before and After are snapshotted with their
// JSON representation when the entry is recorded.
type Entry struct {
	EntityType model.EntityType
	EntityID   uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Before     interface{}
	After      interface{}
	Context    *string
}

// Store persists a single audit row.
type Store interface {
	Log(ctx context.Context, entry *model.AuditLog) error
}

// Publisher receives every row once it is stored.
type Publisher interface {
	Publish(entry *model.AuditLog)
}

type Options struct {
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Recorder queues audit entries and writes them from a single goroutine.
type Recorder struct {
	store       Store
	publisher   Publisher
	queue       chan *model.AuditLog
	maxAttempts int
	retryDelay  time.Duration

	mu       sync.RWMutex
	closed   bool
	overflow sync.WaitGroup
	done     chan struct{}
}

// NewRecorder starts the writer goroutine. publisher may be nil.
func NewRecorder(store Store, publisher Publisher, opts Options) *Recorder {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	r := &Recorder{
		store:       store,
		publisher:   publisher,
		queue:       make(chan *model.AuditLog, opts.QueueSize),
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues the entry and returns without waiting for the write.
// ctx is accepted for symmetry with the stores; the write itself never uses it.
func (r *Recorder) Record(_ context.Context, e Entry) {
	row := &model.AuditLog{
		ID:           uuid.New(),
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		UserID:       e.UserID,
		Action:       e.Action,
		BeforeValues: model.Snapshot(e.Before),
		AfterValues:  model.Snapshot(e.After),
		Context:      e.Context,
		CreatedAt:    time.Now(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.Printf("audit: recorder closed, dropping %q on %s %s", row.Action, row.EntityType, row.EntityID)
		return
	}

	select {
	case r.queue <- row:
	default:
		r.overflow.Add(1)
		go func() {
			defer r.overflow.Done()
			r.queue <- row
		}()
	}
}

// Close stops accepting entries and blocks until the queue is drained.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.overflow.Wait()
	close(r.queue)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for row := range r.queue {
		r.write(row)
	}
}

func (r *Recorder) write(row *model.AuditLog) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.store.Log(context.Background(), row)
		if err == nil {
			if r.publisher != nil {
				r.publisher.Publish(row)
			}
			return
		}

		log.Printf("audit: write %q on %s %s failed (attempt %d/%d): %v",
			row.Action, row.EntityType, row.EntityID, attempt, r.maxAttempts, err)
		if attempt < r.maxAttempts {
			time.Sleep(time.Duration(attempt) * r.retryDelay)
		}
	}
	log.Printf("audit: giving up on %q for %s %s", row.Action, row.EntityType, row.EntityID)
}
