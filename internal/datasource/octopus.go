package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
)

const (
	DefaultOctopusBaseURL = "https://api.octopus.energy/v1/products"
	DefaultAgileProduct   = "AGILE-24-10-01"

	octopusName = "octopus"
)

// OctopusClient reads published Agile unit rates.
type OctopusClient struct {
	http    *RateLimitedHTTPClient
	baseURL string
	product string
	logger  logrus.FieldLogger
}

type octopusRate struct {
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
	ValueIncVAT float64   `json:"value_inc_vat"`
}

type octopusPage struct {
	Count   int           `json:"count"`
	Next    *string       `json:"next"`
	Results []octopusRate `json:"results"`
}

// NewOctopusClient creates a client; an empty baseURL uses the public API.
func NewOctopusClient(httpClient *RateLimitedHTTPClient, baseURL, product string, log *logrus.Logger) *OctopusClient {
	if baseURL == "" {
		baseURL = DefaultOctopusBaseURL
	}
	if product == "" {
		product = DefaultAgileProduct
	}
	return &OctopusClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		product: product,
		logger:  logger.OrDiscard(log).WithField("source", octopusName),
	}
}

func (c *OctopusClient) Name() string {
	return octopusName
}

func (c *OctopusClient) ratesURL(region string, from, to time.Time) string {
	q := url.Values{}
	q.Set("period_from", from.UTC().Format(time.RFC3339))
	q.Set("period_to", to.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s/%s/electricity-tariffs/E-1R-%s-%s/standard-unit-rates/?%s",
		c.baseURL, c.product, c.product, strings.ToUpper(region), q.Encode())
}

// FetchPrices follows result pages until exhausted. Published rates are
// returned newest first by the API, so the result is re-sorted.
func (c *OctopusClient) FetchPrices(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, error) {
	if region == "" {
		return nil, NewDataSourceError(octopusName, ErrCodeInvalidData, "region is required", ErrInvalidData)
	}

	next := c.ratesURL(region, from, to)
	var slots []models.PriceSlot
	for pages := 0; next != "" && pages < 10; pages++ {
		var page octopusPage
		if err := c.http.GetJSON(ctx, octopusName, next, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			slots = append(slots, models.PriceSlot{
				Time:   r.ValidFrom.UTC(),
				Price:  r.ValueIncVAT,
				Source: models.PriceMeasured,
			})
		}
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time.Before(slots[j].Time) })
	slots = models.FilterPrices(slots, from, to)

	c.logger.WithFields(logrus.Fields{
		"region": region,
		"slots":  len(slots),
	}).Info("Retrieved price slots")
	return slots, nil
}

// CoversUntil reports whether slots reach the given instant.
func CoversUntil(slots []models.PriceSlot, until time.Time) bool {
	if len(slots) == 0 {
		return false
	}
	last := slots[len(slots)-1].Time.Add(models.SlotDuration)
	return !last.Before(until)
}
