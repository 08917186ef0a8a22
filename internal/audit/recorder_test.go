package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm/internal/audit"
	"crm/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu       sync.Mutex
	rows     []*model.AuditLog
	failures int
	calls    int
	block    chan struct{}
}

func (s *memoryStore) Log(_ context.Context, entry *model.AuditLog) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	s.rows = append(s.rows, entry)
	return nil
}

func (s *memoryStore) snapshot() ([]*model.AuditLog, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.AuditLog(nil), s.rows...), s.calls
}

type memoryPublisher struct {
	mu   sync.Mutex
	seen []uuid.UUID
}

func (p *memoryPublisher) Publish(entry *model.AuditLog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, entry.ID)
}

func TestRecordPersistsSnapshots(t *testing.T) {
	store := &memoryStore{}
	pub := &memoryPublisher{}
	rec := audit.NewRecorder(store, pub, audit.Options{QueueSize: 4, MaxAttempts: 1})

	leadID := uuid.New()
	userID := uuid.New()
	before := model.Lead{ID: leadID, Name: "Old", Status: model.LeadStatusNew}
	after := model.Lead{ID: leadID, Name: "New", Status: model.LeadStatusNew}

	rec.Record(context.Background(), audit.Entry{
		EntityType: model.EntityLead,
		EntityID:   leadID,
		UserID:     &userID,
		Action:     model.ActionUpdateLead,
		Before:     before,
		After:      after,
	})
	rec.Close()

	rows, _ := store.snapshot()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, model.EntityLead, row.EntityType)
	assert.Equal(t, leadID, row.EntityID)
	assert.Equal(t, &userID, row.UserID)
	assert.Equal(t, "Old", row.BeforeValues["name"])
	assert.Equal(t, "New", row.AfterValues["name"])
	assert.False(t, row.CreatedAt.IsZero())
	assert.Equal(t, []uuid.UUID{row.ID}, pub.seen)
}

func TestRecordCreateHasNoBefore(t *testing.T) {
	store := &memoryStore{}
	rec := audit.NewRecorder(store, nil, audit.Options{QueueSize: 1, MaxAttempts: 1})

	rec.Record(context.Background(), audit.Entry{
		EntityType: model.EntityRole,
		EntityID:   uuid.New(),
		Action:     model.ActionCreateRole,
		After:      model.Role{Name: "Support"},
	})
	rec.Close()

	rows, _ := store.snapshot()
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].BeforeValues)
	assert.Equal(t, "Support", rows[0].AfterValues["name"])
}

func TestRecordRetriesFailedWrites(t *testing.T) {
	store := &memoryStore{failures: 2}
	rec := audit.NewRecorder(store, nil, audit.Options{QueueSize: 1, MaxAttempts: 3, RetryDelay: time.Millisecond})

	rec.Record(context.Background(), audit.Entry{EntityType: model.EntityLead, EntityID: uuid.New(), Action: model.ActionDeleteLead})
	rec.Close()

	rows, calls := store.snapshot()
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, calls)
}

func TestRecordGivesUpAfterMaxAttempts(t *testing.T) {
	store := &memoryStore{failures: 5}
	pub := &memoryPublisher{}
	rec := audit.NewRecorder(store, pub, audit.Options{QueueSize: 1, MaxAttempts: 2, RetryDelay: time.Millisecond})

	rec.Record(context.Background(), audit.Entry{EntityType: model.EntityLead, EntityID: uuid.New(), Action: model.ActionDeleteLead})
	rec.Close()

	rows, calls := store.snapshot()
	assert.Empty(t, rows)
	assert.Equal(t, 2, calls)
	assert.Empty(t, pub.seen)
}

func TestRecordNeverBlocksWhenQueueIsFull(t *testing.T) {
	store := &memoryStore{block: make(chan struct{})}
	rec := audit.NewRecorder(store, nil, audit.Options{QueueSize: 1, MaxAttempts: 1})

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rec.Record(context.Background(), audit.Entry{EntityType: model.EntityLead, EntityID: uuid.New(), Action: model.ActionCreateLead})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(store.block)
	rec.Close()

	rows, _ := store.snapshot()
	assert.Len(t, rows, 10)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	store := &memoryStore{}
	rec := audit.NewRecorder(store, nil, audit.Options{QueueSize: 1, MaxAttempts: 1})
	rec.Close()
	rec.Close()

	rec.Record(context.Background(), audit.Entry{EntityType: model.EntityUser, EntityID: uuid.New(), Action: model.ActionLogin})

	rows, _ := store.snapshot()
	assert.Empty(t, rows)
}
