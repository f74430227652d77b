package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickaccounting/internal/core"
	"quickaccounting/internal/log"
	"quickaccounting/internal/services"
	"quickaccounting/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	clock := func() time.Time { return time.Date(2024, 3, 20, 8, 0, 0, 0, time.Local) }
	ledger := services.NewLedgerService(repo, services.WithClock(clock))
	logger := log.New(log.Config{Level: slog.LevelDebug, Format: "text", Output: io.Discard})

	return NewServer(":0", ledger, repo, logger)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestReadyReportsStoreFailure(t *testing.T) {
	logger := log.New(log.Config{Level: slog.LevelInfo, Output: io.Discard})
	srv := NewServer(":0", services.NewLedgerService(nil), failingPinger{}, logger)

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/categories/", "/categories"} {
		rr := do(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)

		got := decode[categoriesDTO](t, rr)
		assert.Equal(t, []string{"餐饮", "交通", "购物", "娱乐", "其他"}, got.ExpenseCategories)
		assert.Equal(t, []string{"工资", "生活费", "其他收入"}, got.IncomeCategories)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "malformed json",
			body:       `{"amount": 5,`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid request body",
		},
		{
			name:       "missing amount",
			body:       `{"type":"expense","category":"餐饮"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "amount is required",
		},
		{
			name:       "income category on expense",
			body:       `{"amount":10,"type":"expense","category":"工资"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid category",
		},
		{
			name:       "expense category on income",
			body:       `{"amount":10,"type":"income","category":"餐饮"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid category",
		},
		{
			name:       "bad date",
			body:       `{"amount":10,"type":"expense","category":"餐饮","date":"2024/03/15"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid date format",
		},
		{
			name:       "empty date",
			body:       `{"amount":1,"type":"expense","category":"餐饮","date":""}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid date format",
		},
		{
			name:       "blank date",
			body:       `{"amount":1,"type":"expense","category":"餐饮","date":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid date format",
		},
		{
			name:       "padded type",
			body:       `{"amount":1,"type":" expense ","category":"餐饮"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "unknown transaction type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/transaction/", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)

			got := decode[errorResponse](t, rr)
			assert.Contains(t, got.Detail, tt.wantDetail)
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/transaction/",
		`{"amount":50,"type":"expense","category":"餐饮","description":"lunch","date":"2024-03-15"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[messageResponse](t, rr)
	assert.Equal(t, msgTransactionAdded, created.Message)
	require.NotEmpty(t, created.ID)

	rr = do(t, srv, http.MethodGet, "/statistics/month/2024-03", "")
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[statisticsDTO](t, rr)
	require.Len(t, stats.Transactions, 1)
	assert.Equal(t, 0.0, stats.TotalIncome)
	assert.Equal(t, 50.0, stats.TotalExpense)
	assert.Equal(t, -50.0, stats.Net)

	tx := stats.Transactions[0]
	assert.Equal(t, created.ID, tx.ID)
	assert.Equal(t, "expense", tx.Type)
	assert.Equal(t, "餐饮", tx.Category)
	assert.Equal(t, "餐饮: lunch", tx.Description)
	assert.Equal(t, "2024-03-15", tx.Date)

	rr = do(t, srv, http.MethodDelete, "/transaction/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, msgTransactionDeleted, decode[messageResponse](t, rr).Message)

	rr = do(t, srv, http.MethodGet, "/statistics/day/2024-03-15", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[statisticsDTO](t, rr).Transactions)

	rr = do(t, srv, http.MethodDelete, "/transaction/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[errorResponse](t, rr).Detail, "not found")
}

func TestCreateTransactionWithoutTrailingSlashAndDefaultDate(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/transaction", `{"amount":3000,"type":"income","category":"工资"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/statistics/day/2024-03-20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[statisticsDTO](t, rr)
	require.Len(t, stats.Transactions, 1)
	assert.Equal(t, 3000.0, stats.Net)
	assert.Equal(t, "工资", stats.Transactions[0].Description)
}

func TestStatisticsEmptyPeriod(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/statistics/year/1999", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"total_income":0,"total_expense":0,"net":0,"transactions":[]}`, rr.Body.String())
}

func TestStatisticsValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path       string
		wantDetail string
	}{
		{"/statistics/week/2024-10", "invalid period type"},
		{"/statistics/month/2024-03-15", "expected format: YYYY-MM"},
		{"/statistics/year/24", "expected format: YYYY"},
		{"/statistics/day/2024-13-01", "expected format: YYYY-MM-DD"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.path, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decode[errorResponse](t, rr).Detail, tt.wantDetail)
		})
	}
}

func TestDeleteUnknownTransaction(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodDelete, "/transaction/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type brokenLedger struct{}

func (brokenLedger) AddTransaction(context.Context, services.TransactionInput) (core.Transaction, error) {
	return core.Transaction{}, &core.StorageError{Op: "insert transaction", Err: errors.New("disk I/O error")}
}

func (brokenLedger) DeleteTransaction(context.Context, string) error {
	return &core.StorageError{Op: "delete transaction", Err: errors.New("disk I/O error")}
}

func (brokenLedger) Statistics(context.Context, string, string) (core.Statistics, error) {
	return core.Statistics{}, &core.StorageError{Op: "query transactions", Err: errors.New("disk I/O error")}
}

func (brokenLedger) Categories() ([]string, []string) {
	return core.ExpenseCategories(), core.IncomeCategories()
}

func TestStorageFailures(t *testing.T) {
	var logs bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Format: "json", Output: &logs})
	srv := NewServer(":0", brokenLedger{}, nil, logger)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"create", http.MethodPost, "/transaction/", `{"amount":1,"type":"expense","category":"其他"}`, http.StatusBadRequest},
		{"delete", http.MethodDelete, "/transaction/abc", "", http.StatusInternalServerError},
		{"statistics", http.MethodGet, "/statistics/month/2024-03", "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)

			detail := decode[errorResponse](t, rr).Detail
			assert.Equal(t, msgStorageFailure, detail)
			assert.NotContains(t, detail, "disk I/O")
		})
	}

	assert.Contains(t, logs.String(), `"error_type":"database_error"`)
	assert.Equal(t, int64(3), srv.Metrics().TotalRequests)
}

func TestRejectedDateIsNotStored(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/transaction/", `{"amount":1,"type":"expense","category":"餐饮","date":""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/statistics/day/2024-03-20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[statisticsDTO](t, rr).Transactions)
}

func TestRecoverPanicWritesJSON(t *testing.T) {
	var logs bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Format: "json", Output: &logs})
	srv := NewServer(":0", brokenLedger{}, nil, logger)

	h := srv.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/categories", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "internal server error", decode[errorResponse](t, rr).Detail)
	assert.Contains(t, logs.String(), "panic: boom")
}

func TestRecoverPanicReraisesAbort(t *testing.T) {
	logger := log.New(log.Config{Level: slog.LevelInfo, Output: io.Discard})
	srv := NewServer(":0", brokenLedger{}, nil, logger)

	h := srv.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not Found", decode[errorResponse](t, rr).Detail)

	rr = do(t, srv, http.MethodPut, "/categories/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
