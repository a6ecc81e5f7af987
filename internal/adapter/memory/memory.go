package memory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/adapter"
)

// MemoryAdapter implements adapter.Store with an in-memory map.
// It backs DEV_MODE and tests; every call is counted so tests can assert on
// the exact request sequence.
type MemoryAdapter struct {
	files map[string]*adapter.FileMetadata
	order []string
	data  map[string][]byte
	calls map[string]int
	mu    sync.RWMutex

	// FailCreate, when set, is returned by CreateFolder.
	FailCreate error
	// FailUpload, when set, is returned by UploadFile.
	FailUpload error
}

// Call names reported by Calls.
const (
	CallGetFolder    = "GetFolder"
	CallFindChildren = "FindChildren"
	CallCreateFolder = "CreateFolder"
	CallUploadFile   = "UploadFile"
)

// NewMemoryAdapter creates an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		files: make(map[string]*adapter.FileMetadata),
		data:  make(map[string][]byte),
		calls: make(map[string]int),
	}
}

// Put stores an item as-is. A missing ID is generated.
func (m *MemoryAdapter) Put(f adapter.FileMetadata) *adapter.FileMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(f)
}

func (m *MemoryAdapter) put(f adapter.FileMetadata) *adapter.FileMetadata {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if _, ok := m.files[f.ID]; !ok {
		m.order = append(m.order, f.ID)
	}
	m.files[f.ID] = &f
	out := f
	return &out
}

// Calls returns how many times the named method was invoked.
func (m *MemoryAdapter) Calls(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[name]
}

// TotalCalls returns the number of Store calls made so far.
func (m *MemoryAdapter) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Content returns the uploaded bytes of a file.
func (m *MemoryAdapter) Content(fileID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[fileID]
	return b, ok
}

// GetFolder returns the stored item or adapter.ErrNotFound.
func (m *MemoryAdapter) GetFolder(ctx context.Context, folderID string) (*adapter.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[CallGetFolder]++

	f, ok := m.files[folderID]
	if !ok {
		return nil, &adapter.APIError{StatusCode: http.StatusNotFound, Message: "File not found: " + folderID + ".", Err: adapter.ErrNotFound}
	}
	out := *f
	return &out, nil
}

// FindChildren returns non-trashed matches in insertion order.
func (m *MemoryAdapter) FindChildren(ctx context.Context, q adapter.ChildQuery) ([]adapter.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[CallFindChildren]++

	files := []adapter.FileMetadata{}
	for _, id := range m.order {
		f := m.files[id]
		if f.Trashed || f.Name != q.Name || !hasParent(f, q.ParentID) {
			continue
		}
		if q.FoldersOnly && !f.IsFolder() {
			continue
		}
		if q.DriveID != "" && f.DriveID != q.DriveID {
			continue
		}
		files = append(files, *f)
	}
	return files, nil
}

// CreateFolder adds a folder under parentID.
func (m *MemoryAdapter) CreateFolder(ctx context.Context, name, parentID string) (*adapter.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[CallCreateFolder]++

	if m.FailCreate != nil {
		return nil, m.FailCreate
	}
	return m.put(adapter.FileMetadata{
		Name:     name,
		MIMEType: adapter.FolderMIMEType,
		Parents:  []string{parentID},
		DriveID:  m.driveOf(parentID),
	}), nil
}

// UploadFile reads content fully and stores it as a new file.
func (m *MemoryAdapter) UploadFile(ctx context.Context, name, parentID, mimeType string, content io.Reader) (*adapter.FileMetadata, error) {
	m.mu.Lock()
	m.calls[CallUploadFile]++
	fail := m.FailUpload
	m.mu.Unlock()

	if fail != nil {
		return nil, fail
	}

	b, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.put(adapter.FileMetadata{
		Name:     name,
		MIMEType: mimeType,
		Parents:  []string{parentID},
		DriveID:  m.driveOf(parentID),
		Size:     int64(len(b)),
	})
	m.data[f.ID] = b
	return f, nil
}

func (m *MemoryAdapter) driveOf(folderID string) string {
	if f, ok := m.files[folderID]; ok {
		return f.DriveID
	}
	return ""
}

func hasParent(f *adapter.FileMetadata, parentID string) bool {
	for _, p := range f.Parents {
		if p == parentID {
			return true
		}
	}
	return false
}

// Provider implements adapter.StoreProvider by always returning the same MemoryAdapter.
type Provider struct {
	store *MemoryAdapter
}

// NewProvider creates a Provider around store. A nil store gets a fresh one.
func NewProvider(store *MemoryAdapter) *Provider {
	if store == nil {
		store = NewMemoryAdapter()
	}
	return &Provider{store: store}
}

// Store returns the underlying MemoryAdapter.
func (p *Provider) Store() *MemoryAdapter {
	return p.store
}

// GetStore ignores the client; the memory store needs no credentials.
func (p *Provider) GetStore(ctx context.Context, client *http.Client) (adapter.Store, error) {
	return p.store, nil
}
