package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/portfolio"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Portfolio.FilePath = ""
	cfg.Portfolio.Holdings = []common.HoldingConfig{
		{Symbol: "INFY", Name: "Infosys", Sector: "Tech", Quantity: 10, PurchasePrice: 50},
	}
	cfg.Refresh.PriceDelay = "0s"
	cfg.Refresh.RatioDelay = "0s"
	cfg.Refresh.RunOnStart = false
	return cfg
}

func TestNew_InitializesAllServices(t *testing.T) {
	a, err := New(testConfig(t), common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Portfolio)
	assert.NotNil(t, a.Prices)
	assert.NotNil(t, a.Ratios)
	assert.NotNil(t, a.Refresh)
	assert.NotNil(t, a.Scheduler)
	assert.NotNil(t, a.Snapshots)
	assert.NotNil(t, a.Events)
	assert.False(t, a.StartupTime.IsZero())
	assert.Equal(t, 1, a.Portfolio.Len())
}

func TestNew_PortfolioRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Portfolio = common.PortfolioConfig{}

	_, err := New(cfg, common.NewSilentLogger())
	assert.ErrorIs(t, err, portfolio.ErrNotConfigured)
}

func TestNewApp_LoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.toml")
	content := `
[logging]
level = "disabled"

[refresh]
interval_minutes = 5

[[portfolio.holdings]]
symbol = "TCS"
quantity = 2
purchase_price = 3000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	a, err := NewApp(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 5*time.Minute, a.Config.Refresh.Interval())
	assert.Equal(t, []string{"TCS"}, a.Portfolio.Symbols())
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "explicit.toml", ResolveConfigPath("explicit.toml"))

	t.Setenv("FOLIO_CONFIG", "/etc/folio/folio.toml")
	assert.Equal(t, "/etc/folio/folio.toml", ResolveConfigPath(""))
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(testConfig(t), common.NewSilentLogger())
	require.NoError(t, err)

	a.StartScheduler(context.Background())
	a.Close()
	assert.NotPanics(t, a.Close)
}

// A cycle against stub upstreams feeds the snapshot read path.
func TestRefreshFeedsSnapshot(t *testing.T) {
	yahooSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/INFY.NS", r.URL.Path)
		w.Write([]byte(`{"chart":{"result":[{"meta":{"currency":"INR","regularMarketPrice":60}}]}}`))
	}))
	defer yahooSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/INFY:NSE", r.URL.Path)
		w.Write([]byte(`<div class="gyFHrc"><div class="mfs7Fc">P/E ratio</div><div class="P6K39c">24.10</div></div>
<div class="gyFHrc"><div class="mfs7Fc">Earnings date</div><div class="P6K39c">Apr 17, 2026</div></div>`))
	}))
	defer googleSrv.Close()

	cfg := testConfig(t)
	cfg.Clients.Yahoo.BaseURL = yahooSrv.URL
	cfg.Clients.Google.BaseURL = googleSrv.URL

	a, err := New(cfg, common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	require.True(t, a.Refresh.TryRunCycle(context.Background()))

	_, ok := cache.Strict[models.PriceQuote](a.Cache, cache.PriceKey("INFY"))
	assert.True(t, ok)

	snap, err := a.Snapshots.Assemble(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Sectors, 1)

	h := snap.Sectors[0].Holdings[0]
	assert.Equal(t, 60.0, h.CMP)
	assert.Equal(t, 600.0, h.PresentValue)
	assert.Equal(t, 100.0, h.GainLoss)
	assert.Equal(t, 20.0, h.GainLossPercentage)
	require.NotNil(t, h.PERatio)
	assert.Equal(t, 24.10, *h.PERatio)
	require.NotNil(t, h.LatestEarnings)
	assert.Equal(t, "Apr 17, 2026", *h.LatestEarnings)

	st := a.Refresh.Status()
	assert.Nil(t, st.LastError)
	require.NotNil(t, st.NextRunAt)
}
