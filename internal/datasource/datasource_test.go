package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/models"
)

func testHTTPClient() *RateLimitedHTTPClient {
	cfg := DefaultHTTPClientConfig()
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 1
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	cfg.RateLimit = 1000
	return NewRateLimitedHTTPClient(cfg, nil)
}

var day = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func agileResults(start time.Time, n int, price func(i int) float64) []map[string]interface{} {
	// newest first, as the API returns them
	out := make([]map[string]interface{}, 0, n)
	for i := n - 1; i >= 0; i-- {
		t := start.Add(time.Duration(i) * models.SlotDuration)
		out = append(out, map[string]interface{}{
			"valid_from":    t.Format(time.RFC3339),
			"valid_to":      t.Add(models.SlotDuration).Format(time.RFC3339),
			"value_inc_vat": price(i),
		})
	}
	return out
}

func TestOctopusClientFetchPrices(t *testing.T) {
	var gotPath, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFrom = r.URL.Query().Get("period_from")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   4,
			"next":    nil,
			"results": agileResults(day, 4, func(i int) float64 { return float64(10 + i) }),
		})
	}))
	defer srv.Close()

	c := NewOctopusClient(testHTTPClient(), srv.URL, "", nil)
	slots, err := c.FetchPrices(context.Background(), "h", day, day.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "/AGILE-24-10-01/electricity-tariffs/E-1R-AGILE-24-10-01-H/standard-unit-rates/", gotPath)
	assert.Equal(t, "2025-01-15T00:00:00Z", gotFrom)
	require.Len(t, slots, 4)
	assert.True(t, slots[0].Time.Equal(day))
	assert.Equal(t, 10.0, slots[0].Price)
	assert.Equal(t, 13.0, slots[3].Price)
	assert.Equal(t, models.PriceMeasured, slots[0].Source)
}

func TestOctopusClientFollowsPages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"results": agileResults(day, 2, func(int) float64 { return 5 }),
			})
			return
		}
		next := srv.URL + r.URL.Path + "?page=2"
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"next":    next,
			"results": agileResults(day.Add(time.Hour), 2, func(int) float64 { return 8 }),
		})
	}))
	defer srv.Close()

	c := NewOctopusClient(testHTTPClient(), srv.URL, "", nil)
	slots, err := c.FetchPrices(context.Background(), "H", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, 5.0, slots[0].Price)
	assert.Equal(t, 8.0, slots[3].Price)
}

func TestOctopusClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"not found", http.StatusNotFound, ErrCodeNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrCodeAuthenticationFailed},
		{"server error", http.StatusInternalServerError, ErrCodeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewOctopusClient(testHTTPClient(), srv.URL, "", nil)
			_, err := c.FetchPrices(context.Background(), "H", day, day.Add(time.Hour))
			require.Error(t, err)
			var dsErr DataSourceError
			require.True(t, errors.As(err, &dsErr))
			assert.Equal(t, tt.code, dsErr.Code)
			assert.Equal(t, octopusName, dsErr.Source)
		})
	}
}

func TestOctopusClientRequiresRegion(t *testing.T) {
	c := NewOctopusClient(testHTTPClient(), "http://unused", "", nil)
	_, err := c.FetchPrices(context.Background(), "", day, day.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestCarbonClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/intensity/2025-01-15T00:00Z/2025-01-15T02:00Z", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"from":"2025-01-15T00:30Z","to":"2025-01-15T01:00Z","intensity":{"forecast":120,"actual":null,"index":"moderate"}},
			{"from":"2025-01-15T00:00Z","to":"2025-01-15T00:30Z","intensity":{"forecast":110,"index":"low"}},
			{"from":"2025-01-15T01:00Z","to":"2025-01-15T01:30Z","intensity":{"forecast":null}}
		]}`)
	}))
	defer srv.Close()

	c := NewCarbonClient(testHTTPClient(), srv.URL, nil)
	slots, err := c.FetchCarbon(context.Background(), day, day.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 110, slots[0].Intensity)
	assert.Equal(t, 120, slots[1].Intensity)
}

func TestCarbonClientFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := NewCarbonClient(testHTTPClient(), srv.URL, nil)
	slots, err := c.FetchCarbon(context.Background(), day, day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestCarbonFor(t *testing.T) {
	prices := []models.PriceSlot{{Time: day, Price: 10}, {Time: day.Add(models.SlotDuration), Price: 11}}

	neutral := CarbonFor(prices, nil)
	require.Len(t, neutral, 2)
	assert.Equal(t, models.NeutralCarbonIntensity, neutral[1].Intensity)

	carbon := []models.CarbonSlot{{Time: day, Intensity: 90}}
	assert.Equal(t, carbon, CarbonFor(prices, carbon))
}

const scriptPage = `<html><head><script>
var labels = ['Wed 00h', 'Wed 01h', 'Wed 02h'];
var prices = ['11.84', '10.66', "9.5"];
</script></head><body></body></html>`

const tablePage = `<html><body>
<table><tr><td>ignored</td></tr></table>
<table class="wide forecast-table">
<tr><th>Date</th><th>Time</th><th>Price</th></tr>
<tr><td>2025-01-15</td><td>00:00</td><td>12.5</td></tr>
<tr><td>2025-01-15</td><td>01:00</td><td><b>7.25</b></td></tr>
<tr><td>bad</td><td>row</td><td>x</td></tr>
</table></body></html>`

func TestForecastParseScriptVars(t *testing.T) {
	c := NewForecastClient(testHTTPClient(), "", nil)
	slots := c.Parse(scriptPage, day)

	require.Len(t, slots, 6)
	assert.True(t, slots[0].Time.Equal(day))
	assert.True(t, slots[1].Time.Equal(day.Add(30*time.Minute)))
	assert.Equal(t, 11.84, slots[1].Price)
	assert.Equal(t, 9.5, slots[5].Price)
	assert.True(t, slots[5].Time.Equal(day.Add(150*time.Minute)))
	assert.Equal(t, models.PricePredicted, slots[0].Source)
}

func TestForecastParseMismatchedScriptFallsBackToTable(t *testing.T) {
	page := strings.Replace(tablePage, "<body>",
		`<body><script>var prices = ['1', '2']; var labels = ['a'];</script>`, 1)
	c := NewForecastClient(testHTTPClient(), "", nil)
	slots := c.Parse(page, day)

	require.Len(t, slots, 4)
	assert.Equal(t, 12.5, slots[0].Price)
	assert.Equal(t, 7.25, slots[2].Price)
	assert.True(t, slots[2].Time.Equal(day.Add(time.Hour)))
}

func TestForecastParseNothing(t *testing.T) {
	c := NewForecastClient(testHTTPClient(), "", nil)
	assert.Empty(t, c.Parse("<html><body><p>maintenance</p></body></html>", day))
}

func TestForecastClientFetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "H", r.URL.Query().Get("region"))
		fmt.Fprint(w, scriptPage)
	}))
	defer srv.Close()

	clk := clock.NewMockClock(day.Add(9 * time.Hour))
	c := NewForecastClient(testHTTPClient(), srv.URL, nil, WithForecastClock(clk))
	slots, err := c.FetchPrices(context.Background(), "h", day.Add(time.Hour), day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, 10.66, slots[0].Price)
}

func TestForecastClientUnavailableIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewForecastClient(testHTTPClient(), srv.URL, nil)
	slots, err := c.FetchPrices(context.Background(), "H", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) Name() string {
	return m.Called().String(0)
}

func (m *MockPriceSource) FetchPrices(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, error) {
	args := m.Called(ctx, region, from, to)
	slots, _ := args.Get(0).([]models.PriceSlot)
	return slots, args.Error(1)
}

func halfHourly(start time.Time, n int, price float64, kind models.PriceKind) []models.PriceSlot {
	out := make([]models.PriceSlot, n)
	for i := range out {
		out[i] = models.PriceSlot{Time: start.Add(time.Duration(i) * models.SlotDuration), Price: price, Source: kind}
	}
	return out
}

func TestChainUsesPublishedWhenCoverageSufficient(t *testing.T) {
	from := day.Add(16 * time.Hour)
	to := from.Add(24 * time.Hour)
	// 16:00 today through 06:00 tomorrow is 28 slots
	published := &MockPriceSource{}
	published.On("Name").Return("octopus")
	published.On("FetchPrices", mock.Anything, "H", from, to).
		Return(halfHourly(from, 28, 12, models.PriceMeasured), nil)
	predicted := &MockPriceSource{}

	chain := NewChain(nil, PublishedStrategy{Source: published}, PredictedStrategy{Source: predicted})
	slots, origin, err := chain.Fetch(context.Background(), "H", from, to)
	require.NoError(t, err)
	assert.Equal(t, models.OriginOctopusActual, origin)
	assert.Len(t, slots, 28)
	predicted.AssertNotCalled(t, "FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChainFallsBackOnShortCoverage(t *testing.T) {
	from := day.Add(10 * time.Hour)
	to := from.Add(24 * time.Hour)
	published := &MockPriceSource{}
	published.On("Name").Return("octopus")
	published.On("FetchPrices", mock.Anything, "H", from, to).
		Return(halfHourly(from, 27, 12, models.PriceMeasured), nil)
	predicted := &MockPriceSource{}
	predicted.On("Name").Return("agile_forecast")
	predicted.On("FetchPrices", mock.Anything, "H", from, to).
		Return(halfHourly(from, 48, 14, models.PricePredicted), nil)

	chain := NewChain(nil, PublishedStrategy{Source: published}, PredictedStrategy{Source: predicted})
	slots, origin, err := chain.Fetch(context.Background(), "H", from, to)
	require.NoError(t, err)
	assert.Equal(t, models.OriginForecast, origin)
	assert.Len(t, slots, 48)
}

func TestChainAllFail(t *testing.T) {
	published := &MockPriceSource{}
	published.On("Name").Return("octopus")
	published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, NewDataSourceError("octopus", ErrCodeNetworkError, "down", ErrNetworkError))
	predicted := &MockPriceSource{}
	predicted.On("Name").Return("agile_forecast")
	predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.PriceSlot{}, nil)

	chain := NewChain(nil, PublishedStrategy{Source: published}, PredictedStrategy{Source: predicted})
	_, _, err := chain.Fetch(context.Background(), "H", day, day.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRequiredCoverage(t *testing.T) {
	from := time.Date(2025, 1, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 16, 6, 0, 0, 0, time.UTC), RequiredCoverage(from))
}

func TestCachedPriceSource(t *testing.T) {
	inner := &MockPriceSource{}
	inner.On("Name").Return("octopus")
	inner.On("FetchPrices", mock.Anything, "H", day, day.Add(time.Hour)).
		Return(halfHourly(day, 2, 10, models.PriceMeasured), nil).Once()

	c := NewCachedPriceSource(inner, time.Minute)
	first, err := c.FetchPrices(context.Background(), "H", day, day.Add(time.Hour))
	require.NoError(t, err)
	second, err := c.FetchPrices(context.Background(), "H", day, day.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	hits, misses, ratio := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.InDelta(t, 0.5, ratio, 1e-9)
	inner.AssertNumberOfCalls(t, "FetchPrices", 1)
}

func TestCachedPriceSourceSkipsEmpty(t *testing.T) {
	inner := &MockPriceSource{}
	inner.On("Name").Return("agile_forecast")
	inner.On("FetchPrices", mock.Anything, "H", day, day.Add(time.Hour)).Return([]models.PriceSlot{}, nil)

	c := NewCachedPriceSource(inner, time.Minute)
	for i := 0; i < 2; i++ {
		_, err := c.FetchPrices(context.Background(), "H", day, day.Add(time.Hour))
		require.NoError(t, err)
	}
	inner.AssertNumberOfCalls(t, "FetchPrices", 2)
	assert.Equal(t, 0, c.ItemCount())
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 0
	cfg.RateLimit = 1000
	cfg.CircuitBreakerMax = 2
	client := NewRateLimitedHTTPClient(cfg, nil)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.True(t, client.IsOpen())

	_, err := client.Get(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "circuit breaker open")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
