package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
)

// MockRecorder implements Recorder using an in-memory map.
type MockRecorder struct {
	records map[string]model.UploadRecord
	mu      sync.Mutex
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{records: make(map[string]model.UploadRecord)}
}

func (m *MockRecorder) Record(ctx context.Context, rec *model.UploadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.InvocationID == "" {
		return fmt.Errorf("upload record has no invocation id")
	}
	if _, ok := m.records[rec.InvocationID]; ok {
		return fmt.Errorf("invocation %s: %w", rec.InvocationID, ErrDuplicate)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records[rec.InvocationID] = *rec
	return nil
}

func (m *MockRecorder) Get(ctx context.Context, invocationID string) (*model.UploadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[invocationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Len returns the number of stored records.
func (m *MockRecorder) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
