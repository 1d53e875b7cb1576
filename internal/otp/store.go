package otp

import (
	"context"
	"sync"
	"time"
)

type Record struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds at most one pending record per email.
type Store interface {
	Get(ctx context.Context, email string) (Record, bool, error)
	Put(ctx context.Context, email string, record Record) error
	Delete(ctx context.Context, email string) error
	// Consume deletes the record only when it still carries code, and reports
	// whether it did.
	Consume(ctx context.Context, email, code string) (bool, error)
}

type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]Record
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, records: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, email string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[email]
	return record, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, email string, record Record) error {
	m.mu.Lock()
	m.records[email] = record
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	delete(m.records, email)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, email, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[email]
	if !ok || record.Code != code {
		return false, nil
	}
	delete(m.records, email)
	return true, nil
}

// Sweep drops records older than the store ttl and returns how many it removed.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for email, record := range m.records {
		if now.Sub(record.CreatedAt) > m.ttl {
			delete(m.records, email)
			removed++
		}
	}
	return removed
}
