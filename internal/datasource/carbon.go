package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
)

const (
	DefaultCarbonBaseURL = "https://api.carbonintensity.org.uk"

	carbonName = "carbon_intensity"
	// format accepted by the intensity range endpoint
	carbonTimeLayout = "2006-01-02T15:04Z"
)

// CarbonClient reads the national grid carbon intensity forecast.
// Regional endpoints need authentication, so the national series is used.
type CarbonClient struct {
	http    *RateLimitedHTTPClient
	baseURL string
	logger  logrus.FieldLogger
}

type carbonResponse struct {
	Data []struct {
		From      string `json:"from"`
		To        string `json:"to"`
		Intensity struct {
			Forecast *int   `json:"forecast"`
			Actual   *int   `json:"actual"`
			Index    string `json:"index"`
		} `json:"intensity"`
	} `json:"data"`
}

func NewCarbonClient(httpClient *RateLimitedHTTPClient, baseURL string, log *logrus.Logger) *CarbonClient {
	if baseURL == "" {
		baseURL = DefaultCarbonBaseURL
	}
	return &CarbonClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.OrDiscard(log).WithField("source", carbonName),
	}
}

func (c *CarbonClient) Name() string {
	return carbonName
}

// FetchCarbon never fails: any upstream problem yields an empty series and a
// warning, and callers substitute neutral intensity.
func (c *CarbonClient) FetchCarbon(ctx context.Context, from, to time.Time) ([]models.CarbonSlot, error) {
	u := fmt.Sprintf("%s/intensity/%s/%s", c.baseURL,
		from.UTC().Format(carbonTimeLayout), to.UTC().Format(carbonTimeLayout))

	var resp carbonResponse
	if err := c.http.GetJSON(ctx, carbonName, u, &resp); err != nil {
		c.logger.WithError(err).Warn("Carbon intensity unavailable")
		return []models.CarbonSlot{}, nil
	}

	slots := make([]models.CarbonSlot, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Intensity.Forecast == nil {
			continue
		}
		t, err := time.Parse(carbonTimeLayout, d.From)
		if err != nil {
			c.logger.WithField("from", d.From).Debug("Skipping unparseable carbon slot")
			continue
		}
		slots = append(slots, models.CarbonSlot{Time: t, Intensity: *d.Intensity.Forecast})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Time.Before(slots[j].Time) })

	c.logger.WithField("slots", len(slots)).Info("Retrieved carbon intensity slots")
	return models.FilterCarbon(slots, from, to), nil
}

// CarbonFor returns carbon when present, otherwise neutral slots matching prices.
func CarbonFor(prices []models.PriceSlot, carbon []models.CarbonSlot) []models.CarbonSlot {
	if len(carbon) > 0 {
		return carbon
	}
	return models.NeutralCarbon(prices)
}
