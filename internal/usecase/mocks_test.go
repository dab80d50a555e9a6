package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// MockCatalogRepository returns products sharing a token with the filter
type MockCatalogRepository struct {
	products []domain.Product
	err      error
	delay    time.Duration
	calls    int32
	active   int32
	maxSeen  int32
}

func NewMockCatalogRepository(products ...domain.Product) *MockCatalogRepository {
	return &MockCatalogRepository{products: products}
}

func (m *MockCatalogRepository) FindCandidateProducts(ctx context.Context, filter domain.CandidateFilter) ([]domain.Product, error) {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, cur) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return nil, m.err
	}

	var out []domain.Product
	for _, p := range m.products {
		name := strings.ToLower(p.MatchName())
		for _, t := range filter.Tokens {
			if strings.Contains(name, t) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (m *MockCatalogRepository) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// MockPriceRepository returns fixed active prices per product
type MockPriceRepository struct {
	prices map[string][]domain.ActivePrice
	err    error
}

func NewMockPriceRepository() *MockPriceRepository {
	return &MockPriceRepository{prices: make(map[string][]domain.ActivePrice)}
}

func (m *MockPriceRepository) FindActivePrices(ctx context.Context, productID string) ([]domain.ActivePrice, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.prices[productID], nil
}

// MockStandardizer maps names through a fixed table
type MockStandardizer struct {
	results map[string]string
	err     error
	block   bool
	calls   int32
	hints   []string
	mu      sync.Mutex
}

func NewMockStandardizer(results map[string]string) *MockStandardizer {
	return &MockStandardizer{results: results}
}

func (m *MockStandardizer) Standardize(ctx context.Context, name, unit, hint string) (*domain.StandardizationResult, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.hints = append(m.hints, hint)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	std, ok := m.results[name]
	if !ok {
		return nil, domain.ErrStandardizerFailure
	}
	return &domain.StandardizationResult{StandardizedName: std, Confidence: 0.9}, nil
}

func (m *MockStandardizer) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data map[string][]byte
	mu   sync.Mutex
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockParser returns a fixed extraction
type MockParser struct {
	extraction *domain.Extraction
	err        error
}

func (m *MockParser) Parse(r io.Reader, filename string) (*domain.Extraction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.extraction, nil
}

// MockCatalogWriter records calls and fails for configured product names
type MockCatalogWriter struct {
	failNames map[string]bool
	uploads   int
	prices    []domain.PriceInput
}

func (m *MockCatalogWriter) RecordUpload(ctx context.Context, supplierName, fileName, source string) (string, string, error) {
	m.uploads++
	return "upload-1", "supplier-1", nil
}

func (m *MockCatalogWriter) RecordPrice(ctx context.Context, input domain.PriceInput) (*domain.Price, error) {
	if m.failNames[input.ProductName] {
		return nil, domain.ErrPersistenceFailure
	}
	m.prices = append(m.prices, input)
	return &domain.Price{Amount: input.Amount}, nil
}

func (m *MockCatalogWriter) UpdateStandardizedName(ctx context.Context, productID, name string) (*domain.Product, error) {
	return &domain.Product{ID: productID, StandardizedName: name}, nil
}
