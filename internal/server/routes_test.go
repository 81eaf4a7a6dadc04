package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/snapshot"
)

// --- mocks ---

type mockSnapshots struct {
	assembleFn func(ctx context.Context) (*models.PortfolioSnapshot, error)
}

func (m *mockSnapshots) Assemble(ctx context.Context) (*models.PortfolioSnapshot, error) {
	return m.assembleFn(ctx)
}

type mockRefresh struct {
	triggerFn func(ctx context.Context) bool
	status    models.RefreshStatus
}

func (m *mockRefresh) TryRunCycle(ctx context.Context) bool { return m.triggerFn(ctx) }
func (m *mockRefresh) Trigger(ctx context.Context) bool     { return m.triggerFn(ctx) }
func (m *mockRefresh) Status() models.RefreshStatus         { return m.status }

type mockCache struct {
	stats models.CacheStats
}

func (m *mockCache) Stats() models.CacheStats { return m.stats }

type mockEvents struct {
	subscribers int
}

func (m *mockEvents) ServeWS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (m *mockEvents) Subscribers() int { return m.subscribers }

func newTestServer(t *testing.T, services Services) *Server {
	t.Helper()
	if services.Snapshots == nil {
		services.Snapshots = &mockSnapshots{assembleFn: func(context.Context) (*models.PortfolioSnapshot, error) {
			return nil, snapshot.ErrNoData
		}}
	}
	if services.Refresh == nil {
		services.Refresh = &mockRefresh{triggerFn: func(context.Context) bool { return true }}
	}
	if services.Cache == nil {
		services.Cache = &mockCache{}
	}
	return newServer(common.NewDefaultConfig(), common.NewSilentLogger(), time.Now(), services)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

// --- tests ---

func TestPortfolio_ReturnsSnapshot(t *testing.T) {
	pe := 18.2
	s := newTestServer(t, Services{
		Snapshots: &mockSnapshots{assembleFn: func(context.Context) (*models.PortfolioSnapshot, error) {
			return &models.PortfolioSnapshot{
				TotalInvestment:   500,
				TotalPresentValue: 600,
				TotalGainLoss:     100,
				Sectors: []models.SectorSummary{{
					Sector: "Tech",
					Holdings: []models.HoldingSnapshot{{
						Holding: models.Holding{Symbol: "X", Name: "X Ltd", Quantity: 10, PurchasePrice: 50},
						CMP:     60,
						PERatio: &pe,
					}},
				}},
			}, nil
		}},
	})

	rr := do(t, s, http.MethodGet, "/api/portfolio")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			TotalInvestment float64 `json:"total_investment"`
			Sectors         []struct {
				Sector   string `json:"sector"`
				Holdings []struct {
					Symbol         string   `json:"symbol"`
					Particulars    string   `json:"particulars"`
					CMP            float64  `json:"cmp"`
					PERatio        *float64 `json:"pe_ratio"`
					LatestEarnings *string  `json:"latest_earnings"`
				} `json:"holdings"`
			} `json:"sectors"`
		} `json:"data"`
	}
	decode(t, rr, &body)

	assert.True(t, body.Success)
	assert.Equal(t, 500.0, body.Data.TotalInvestment)
	require.Len(t, body.Data.Sectors, 1)
	h := body.Data.Sectors[0].Holdings[0]
	assert.Equal(t, "X", h.Symbol)
	assert.Equal(t, "X Ltd", h.Particulars)
	assert.Equal(t, 60.0, h.CMP)
	require.NotNil(t, h.PERatio)
	assert.Nil(t, h.LatestEarnings)
}

func TestPortfolio_NoDataIsNotReady(t *testing.T) {
	s := newTestServer(t, Services{})

	rr := do(t, s, http.MethodGet, "/api/portfolio")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))

	var body Response
	decode(t, rr, &body)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)
}

func TestPortfolio_AssembleError(t *testing.T) {
	s := newTestServer(t, Services{
		Snapshots: &mockSnapshots{assembleFn: func(context.Context) (*models.PortfolioSnapshot, error) {
			return nil, errors.New("boom")
		}},
	})

	rr := do(t, s, http.MethodGet, "/api/portfolio")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body Response
	decode(t, rr, &body)
	assert.False(t, body.Success)
	assert.Equal(t, "Internal server error", body.Message)
}

func TestPortfolio_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Services{})

	rr := do(t, s, http.MethodPost, "/api/portfolio")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET", rr.Header().Get("Allow"))
}

func TestRefresh_Started(t *testing.T) {
	triggered := 0
	s := newTestServer(t, Services{
		Refresh: &mockRefresh{triggerFn: func(context.Context) bool {
			triggered++
			return true
		}},
	})

	rr := do(t, s, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, triggered)

	var body struct {
		Success bool            `json:"success"`
		Data    map[string]bool `json:"data"`
	}
	decode(t, rr, &body)
	assert.True(t, body.Success)
	assert.True(t, body.Data["started"])
}

func TestRefresh_AlreadyRunning(t *testing.T) {
	s := newTestServer(t, Services{
		Refresh: &mockRefresh{triggerFn: func(context.Context) bool { return false }},
	})

	rr := do(t, s, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusConflict, rr.Code)

	var body struct {
		Success bool            `json:"success"`
		Data    map[string]bool `json:"data"`
	}
	decode(t, rr, &body)
	assert.False(t, body.Success)
	assert.False(t, body.Data["started"])
}

func TestRefresh_GetNotAllowed(t *testing.T) {
	s := newTestServer(t, Services{})
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/api/refresh").Code)
}

func TestRefreshStatus(t *testing.T) {
	last := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	next := last.Add(15 * time.Minute)
	msg := "read holdings: gone"
	s := newTestServer(t, Services{
		Refresh: &mockRefresh{status: models.RefreshStatus{
			IsRunning: false,
			LastRunAt: &last,
			NextRunAt: &next,
			LastError: &msg,
		}},
	})

	rr := do(t, s, http.MethodGet, "/api/status/scraper")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Success bool                 `json:"success"`
		Data    models.RefreshStatus `json:"data"`
	}
	decode(t, rr, &body)
	assert.True(t, body.Success)
	assert.False(t, body.Data.IsRunning)
	require.NotNil(t, body.Data.NextRunAt)
	assert.True(t, next.Equal(*body.Data.NextRunAt))
	require.NotNil(t, body.Data.LastError)
	assert.Equal(t, msg, *body.Data.LastError)
}

func TestRefreshStatus_NeverRunEncodesNulls(t *testing.T) {
	s := newTestServer(t, Services{
		Refresh: &mockRefresh{},
	})

	rr := do(t, s, http.MethodGet, "/api/status/scraper")
	assert.JSONEq(t, `{"success":true,"data":{"is_running":false,"last_run_at":null,"next_run_at":null,"last_error":null}}`, rr.Body.String())
}

func TestCacheStats(t *testing.T) {
	updated := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	s := newTestServer(t, Services{
		Cache: &mockCache{stats: models.CacheStats{
			TotalEntries:  1,
			RefreshLocked: true,
			Entries: []models.CacheEntryStat{{
				Key:       "cmp:INFY",
				Expired:   false,
				UpdatedAt: updated,
				ExpiresAt: updated.Add(30 * time.Second),
			}},
		}},
	})

	rr := do(t, s, http.MethodGet, "/api/status/cache")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    models.CacheStats `json:"data"`
	}
	decode(t, rr, &body)
	assert.Equal(t, 1, body.Data.TotalEntries)
	assert.True(t, body.Data.RefreshLocked)
	require.Len(t, body.Data.Entries, 1)
	assert.Equal(t, "cmp:INFY", body.Data.Entries[0].Key)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Services{})

	rr := do(t, s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	decode(t, rr, &body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Server is running", body["message"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestVersion(t *testing.T) {
	s := newTestServer(t, Services{})

	rr := do(t, s, http.MethodGet, "/api/version")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data map[string]string `json:"data"`
	}
	decode(t, rr, &body)
	assert.Equal(t, common.GetVersion(), body.Data["version"])
}

func TestDiagnostics(t *testing.T) {
	s := newTestServer(t, Services{
		Cache:  &mockCache{stats: models.CacheStats{TotalEntries: 7}},
		Events: &mockEvents{subscribers: 2},
	})

	rr := do(t, s, http.MethodGet, "/api/diagnostics")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	decode(t, rr, &body)
	assert.Equal(t, 7.0, body.Data["cache_entries"])
	assert.Equal(t, 2.0, body.Data["event_subscribers"])
}

func TestShutdown(t *testing.T) {
	s := newTestServer(t, Services{})
	ch := make(chan struct{}, 1)
	s.SetShutdownChannel(ch)

	rr := do(t, s, http.MethodPost, "/api/shutdown")
	assert.Equal(t, http.StatusOK, rr.Code)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("shutdown was not signalled")
	}
}

func TestShutdown_ForbiddenInProduction(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Environment = "production"
	s := newServer(cfg, common.NewSilentLogger(), time.Now(), Services{
		Snapshots: &mockSnapshots{},
		Refresh:   &mockRefresh{},
		Cache:     &mockCache{},
	})

	rr := do(t, s, http.MethodPost, "/api/shutdown")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOptionalRoutes(t *testing.T) {
	s := newTestServer(t, Services{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/ws/refresh").Code)

	s = newTestServer(t, Services{
		Events: &mockEvents{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
	})
	rr := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics\n", rr.Body.String())
	assert.Equal(t, http.StatusSwitchingProtocols, do(t, s, http.MethodGet, "/api/ws/refresh").Code)
}
