package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/spreadsheet"
	"github.com/pricelens/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

type fakeCatalog struct {
	products []domain.Product
}

func (f *fakeCatalog) FindCandidateProducts(ctx context.Context, filter domain.CandidateFilter) ([]domain.Product, error) {
	return f.products, nil
}

type fakePrices struct {
	prices map[string][]domain.ActivePrice
}

func (f *fakePrices) FindActivePrices(ctx context.Context, productID string) ([]domain.ActivePrice, error) {
	return f.prices[productID], nil
}

type fakeWriter struct {
	mu     sync.Mutex
	prices []domain.PriceInput
}

func (f *fakeWriter) RecordUpload(ctx context.Context, supplierName, fileName, source string) (string, string, error) {
	return "upload-1", "supplier-" + strings.ToLower(strings.ReplaceAll(supplierName, " ", "-")), nil
}

func (f *fakeWriter) RecordPrice(ctx context.Context, input domain.PriceInput) (*domain.Price, error) {
	if input.ProductID == "" && input.ProductName == "" {
		return nil, fmt.Errorf("%w: product id or name is required", domain.ErrInvalidInput)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = append(f.prices, input)
	return &domain.Price{ID: "price-1", ProductID: "p1", Amount: input.Amount, ValidFrom: input.ValidFrom}, nil
}

func (f *fakeWriter) UpdateStandardizedName(ctx context.Context, productID, name string) (*domain.Product, error) {
	if productID == "missing" {
		return nil, fmt.Errorf("%w: product %s not found", domain.ErrInvalidInput, productID)
	}
	return &domain.Product{ID: productID, StandardizedName: name}, nil
}

// setupTestRouter wires real services over in-memory repositories
func setupTestRouter(t *testing.T) (*gin.Engine, *fakeWriter) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
			MaxUploadMB:    1,
		},
		RateLimit: config.RateLimitConfig{PerIP: 1000, Burst: 1000},
	}

	now := time.Now()
	catalog := &fakeCatalog{products: []domain.Product{
		{ID: "p1", Name: "Wortel", StandardizedName: "carrot", Unit: "kg"},
		{ID: "p2", Name: "Sweet Potato", Unit: "kg"},
	}}
	prices := &fakePrices{prices: map[string][]domain.ActivePrice{
		"p1": {
			{SupplierID: "s1", SupplierName: "Sayur Jaya", Amount: 8000, Quantity: 1, Unit: "kg", ValidFrom: now, CreatedAt: now},
			{SupplierID: "s2", SupplierName: "Pasar Segar", Amount: 9000, Quantity: 1, Unit: "kg", ValidFrom: now, CreatedAt: now},
			{SupplierID: "s3", SupplierName: "Kebun Kita", Amount: 10000, Quantity: 1, Unit: "kg", ValidFrom: now, CreatedAt: now},
		},
	}}
	writer := &fakeWriter{}
	logger := zerolog.Nop()

	comparison, err := usecase.NewComparisonService(catalog, prices, nil, nil, nil, logger, usecase.DefaultComparisonConfig())
	require.NoError(t, err)
	extraction, err := usecase.NewExtractionService(spreadsheet.NewParser(logger), writer, logger, usecase.DefaultExtractionConfig())
	require.NoError(t, err)

	handler := NewHandler(comparison, extraction, writer, logger, cfg.Server.MaxUploadMB)
	return SetupRouter(cfg, handler, logger), writer
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheckEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "pricelens-backend", resp["service"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCompareItemEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("matches and analyzes price", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/comparisons", gin.H{
			"item":              gin.H{"name": "Wortel", "unit": "kg", "quantity": 1, "scannedPrice": 15000},
			"excludeSupplierId": "s3",
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result domain.ComparisonResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Matched)
		assert.Equal(t, "p1", result.Product.ID)
		require.NotNil(t, result.Analysis)
		assert.Equal(t, domain.StatusOverpriced, result.Analysis.Status)
		assert.Equal(t, 2, result.Analysis.OfferCount)
		assert.Len(t, result.Analysis.BetterDeals, 2)

		raw := decode(t, w)
		assert.Equal(t, "none", raw["escalation"].(map[string]interface{})["tier"])
	})

	t.Run("applies overrides", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/comparisons", gin.H{
			"item":      gin.H{"name": "Wortel", "scannedPrice": 8500},
			"overrides": gin.H{"minSavingsPct": 50},
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result domain.ComparisonResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.NotNil(t, result.Analysis)
		assert.Empty(t, result.Analysis.BetterDeals)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/comparisons", gin.H{"item": gin.H{"scannedPrice": 1000}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects invalid override", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/comparisons", gin.H{
			"item":      gin.H{"name": "Wortel"},
			"overrides": gin.H{"staleDays": 0},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/comparisons", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCompareBatchEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("returns one result per item", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/comparisons/batch", gin.H{
			"items": []gin.H{
				{"id": "a", "name": "Wortel", "scannedPrice": 9000},
				{"id": "b", "name": ""},
				{"name": "Sweet Potato", "scannedPrice": 7000},
			},
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Results []domain.BatchResult `json:"results"`
			Count   int                  `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Count)
		for _, r := range resp.Results {
			assert.NotEmpty(t, r.ItemID)
			assert.Empty(t, r.Error)
		}
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/comparisons/batch", gin.H{"items": []gin.H{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEvaluateExtractionEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	testCases := []struct {
		name         string
		body         gin.H
		wantStatus   int
		wantDecision string
	}{
		{
			name:         "too few products",
			body:         gin.H{"report": gin.H{"totalRowsDetected": 3, "totalRowsProcessed": 3, "productCount": 3}},
			wantStatus:   http.StatusOK,
			wantDecision: "REPLACE_WITH_AI",
		},
		{
			name: "threshold override",
			body: gin.H{
				"report":     gin.H{"totalRowsDetected": 3, "totalRowsProcessed": 3, "productCount": 3},
				"thresholds": gin.H{"minProductsForSuccess": 2},
			},
			wantStatus:   http.StatusOK,
			wantDecision: "ACCEPTED",
		},
		{
			name:         "nothing found",
			body:         gin.H{"report": gin.H{"totalRowsDetected": 12}},
			wantStatus:   http.StatusOK,
			wantDecision: "ESCALATE_AI",
		},
		{
			name:       "negative counts",
			body:       gin.H{"report": gin.H{"productCount": -1}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid thresholds",
			body: gin.H{
				"report":     gin.H{"productCount": 10},
				"thresholds": gin.H{"completenessThreshold": 2},
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/extractions/evaluate", tc.body)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.wantDecision != "" {
				assert.Equal(t, tc.wantDecision, decode(t, w)["decision"])
			}
		})
	}
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions/spreadsheet", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractSpreadsheetEndpoint(t *testing.T) {
	priceList := strings.Join([]string{
		"Nama Barang,Satuan,Harga",
		"Wortel,kg,12000",
		"Kentang,kg,15000",
		"Tomat,kg,9000",
		"Bawang Merah,kg,35000",
		"Cabai Rawit,kg,60000",
		"Jahe,kg,22000",
	}, "\n")

	t.Run("records accepted list for supplier", func(t *testing.T) {
		router, writer := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartUpload(t, "harga.csv", priceList, map[string]string{"supplier": "Toko Segar"}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result usecase.ExtractionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, domain.OutcomeAccepted, result.Decision.Decision)
		assert.Len(t, result.Extraction.Rows, 6)
		assert.Equal(t, 6, result.Recorded)
		assert.Equal(t, "upload-1", result.UploadID)
		assert.Len(t, writer.prices, 6)
		assert.Equal(t, "supplier-toko-segar", writer.prices[0].SupplierID)
	})

	t.Run("extracts without recording when no supplier given", func(t *testing.T) {
		router, writer := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartUpload(t, "harga.csv", priceList, nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Empty(t, writer.prices)
	})

	t.Run("rejects unsupported file type", func(t *testing.T) {
		router, _ := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartUpload(t, "harga.pdf", "%PDF-1.4", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		router, _ := setupTestRouter(t)

		w := doJSON(t, router, http.MethodPost, "/api/v1/extractions/spreadsheet", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResolveExtractionEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rows := func(n int) []gin.H {
		out := make([]gin.H, n)
		for i := range out {
			out[i] = gin.H{"line": i + 2, "name": fmt.Sprintf("item %d", i), "price": 1000}
		}
		return out
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/extractions/resolve", gin.H{
		"ruleBased": gin.H{"source": "rule", "rows": rows(2), "report": gin.H{"totalRowsDetected": 8, "totalRowsProcessed": 2, "productCount": 2}},
		"ai":        gin.H{"source": "ai", "rows": rows(8), "report": gin.H{"productCount": 8}},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result usecase.ExtractionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "ai", result.Extraction.Source)
	assert.True(t, result.Decision.ShouldReplace)

	w = doJSON(t, router, http.MethodPost, "/api/v1/extractions/resolve", gin.H{"ai": gin.H{"source": "ai"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimilarityEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	testCases := []struct {
		query     string
		candidate string
		wantScore float64
		wantTier  string
	}{
		{query: "sweet potato", candidate: "Potato Sweet", wantScore: 95, wantTier: "sorted-word"},
		{query: "potato", candidate: "sweet potato", wantScore: 0, wantTier: "rejected"},
		{query: "wortel", candidate: "carrot", wantScore: 100, wantTier: "exact"},
	}

	for _, tc := range testCases {
		t.Run(tc.query+" vs "+tc.candidate, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/similarity", gin.H{"query": tc.query, "candidate": tc.candidate})
			require.Equal(t, http.StatusOK, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tc.wantScore, resp["score"])
			assert.Equal(t, tc.wantTier, resp["tier"])
		})
	}

	t.Run("requires both names", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/similarity", gin.H{"query": "carrot"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRecordPriceEndpoint(t *testing.T) {
	router, writer := setupTestRouter(t)

	t.Run("creates price", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/prices", gin.H{
			"productName":  "Wortel",
			"supplierName": "Sayur Jaya",
			"amount":       8500,
			"quantity":     1,
			"unit":         "kg",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Len(t, writer.prices, 1)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/prices", gin.H{"productName": "Wortel", "amount": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps invalid input to 400", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/prices", gin.H{"amount": 1000})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateStandardizedNameEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/v1/products/p1/standardized-name", gin.H{"name": "carrot"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "carrot", decode(t, w)["standardizedName"])

	w = doJSON(t, router, http.MethodPut, "/api/v1/products/missing/standardized-name", gin.H{"name": "carrot"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/v1/products/p1/standardized-name", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrUnsupportedFile, http.StatusBadRequest},
		{domain.ErrNoCandidate, http.StatusNotFound},
		{domain.ErrDataInconsistency, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: timeout", domain.ErrStandardizerFailure), http.StatusBadGateway},
		{domain.ErrPersistenceFailure, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}
