package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/render"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	day := func(date, amount string) core.Transaction {
		d, err := time.Parse("2006-01-02", date)
		require.NoError(t, err)
		return core.Transaction{
			Date:           d,
			RawDescription: "txn",
			Description:    "TXN",
			Amount:         decimal.RequireFromString(amount),
		}
	}

	netflix := &core.Merchant{
		ID: "netflix", Name: "Netflix",
		Category: "Entertainment", Section: core.SectionMonthly,
		Stats: core.Stats{Count: 2, MonthsActive: 2},
		Transactions: []core.Transaction{
			day("2025-01-05", "15.99"),
			day("2025-02-05", "15.99"),
		},
	}
	costco := &core.Merchant{
		ID: "costco", Name: "Costco",
		Category: "Food", Section: core.SectionVariable,
		Stats: core.Stats{Count: 1, MonthsActive: 1},
		Transactions: []core.Transaction{
			day("2025-01-12", "145.00"),
		},
	}

	ds := &core.Dataset{
		Sections: map[core.SectionID]map[string]*core.Merchant{
			core.SectionMonthly:  {netflix.ID: netflix},
			core.SectionVariable: {costco.ID: costco},
		},
		Year:      2025,
		NumMonths: 2,
	}
	meta := render.Meta{Year: 2025, NumMonths: 2, Sources: []string{"card"}, CurrencyFormat: "${amount}"}
	logger := applog.New(applog.Config{Handler: applog.DefaultConfig().Handler})

	srv := NewServer("127.0.0.1:0", ds, meta, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
	})
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestIndexRendersReportPage(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Spending Report 2025")
	assert.Contains(t, body, "/static/report.js")
}

func TestDatasetEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var doc struct {
		Year      int `json:"year"`
		NumMonths int `json:"numMonths"`
		Summary   struct {
			GrandTotal string `json:"grandTotal"`
		} `json:"summary"`
		Sections map[string][]struct {
			ID string `json:"id"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 2025, doc.Year)
	assert.Equal(t, 2, doc.NumMonths)
	assert.Equal(t, "176.98", doc.Summary.GrandTotal)
	require.Len(t, doc.Sections["monthly"], 1)
	assert.Equal(t, "netflix", doc.Sections["monthly"][0].ID)
}

func TestViewEndpointFilters(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/view?filters=%2Bm%3Anetflix", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Summary struct {
			GrandTotal string `json:"grandTotal"`
		} `json:"summary"`
		Sections map[string][]struct {
			ID string `json:"id"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "31.98", doc.Summary.GrandTotal)
	assert.Empty(t, doc.Sections["variable"])
}

func TestViewEndpointDropsMalformedTerms(t *testing.T) {
	srv := testServer(t)

	// One good term, one with an unknown type char.
	req := httptest.NewRequest(http.MethodGet, "/api/view?filters="+
		"%2Bm%3Anetflix%26%2Bx%3Abogus", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Dropped-Filters"))
}

func TestViewEndpointRejectsBadVerbosity(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/view?v=9", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewCacheHit(t *testing.T) {
	srv := testServer(t)

	var first, second []byte
	for i, dst := range []*[]byte{&first, &second} {
		req := httptest.NewRequest(http.MethodGet, "/api/view?filters=%2Bm%3Anetflix", nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		*dst = body
	}
	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.viewCache.Size())
}

func TestSecurityHeaders(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < requestsPerMinute; i++ {
		assert.True(t, rl.allow("10.0.0.1"))
	}
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))
}
