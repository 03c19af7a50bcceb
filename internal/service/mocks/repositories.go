package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/linkbox/internal/models"
	"github.com/SergeiKhy/linkbox/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link
	clock time.Time

	// HideExisting makes ExistsByShortCode always report false, simulating a
	// concurrent insert that lands between the pre-check and the insert.
	HideExisting bool
	// Err is returned by every method when set.
	Err error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.links[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	// monotonically increasing timestamps keep List ordering deterministic
	m.clock = m.clock.Add(time.Second)
	link.AccessCount = 0
	link.CreatedAt = m.clock

	stored := *link
	m.links[link.ShortCode] = &stored
	return nil
}

func (m *MockLinkRepository) ExistsByShortCode(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return false, m.Err
	}
	if m.HideExisting {
		return false, nil
	}
	_, exists := m.links[code]
	return exists, nil
}

func (m *MockLinkRepository) List(ctx context.Context) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	links := make([]models.Link, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, *link)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (m *MockLinkRepository) IncrementAccess(ctx context.Context, code string) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	link.AccessCount++

	result := *link
	return &result, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.links[code]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, code)
	return nil
}

// Get returns a copy of the stored link without touching its counter.
func (m *MockLinkRepository) Get(code string) (models.Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return models.Link{}, false
	}
	return *link, true
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.Err = nil
	m.HideExisting = false
}

// MockExportRepository implements repository.ExportRepository for testing
type MockExportRepository struct {
	mu      sync.RWMutex
	exports []models.Export

	// RecordErr is returned by Record when set.
	RecordErr error
}

func NewMockExportRepository() *MockExportRepository {
	return &MockExportRepository{}
}

func (m *MockExportRepository) Record(ctx context.Context, export *models.Export) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.exports = append([]models.Export{*export}, m.exports...)
	return nil
}

func (m *MockExportRepository) Recent(ctx context.Context, limit int) ([]models.Export, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.exports) {
		limit = len(m.exports)
	}
	result := make([]models.Export, limit)
	copy(result, m.exports[:limit])
	return result, nil
}
