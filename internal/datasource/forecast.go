package datasource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
)

const (
	DefaultForecastURL = "https://energy.guylipman.com/forecasts"

	forecastName = "agile_forecast"
	maxPageBytes = 4 << 20
)

var (
	jsPricesRe = regexp.MustCompile(`(?s)var prices\s*=\s*\[(.*?)\];`)
	jsLabelsRe = regexp.MustCompile(`(?s)var labels\s*=\s*\[(.*?)\];`)
)

// ForecastClient scrapes a seven-day hourly Agile price forecast.
type ForecastClient struct {
	http    *RateLimitedHTTPClient
	baseURL string
	clock   clock.Clock
	loc     *time.Location
	logger  logrus.FieldLogger
}

// ForecastOption customizes a ForecastClient.
type ForecastOption func(*ForecastClient)

// WithForecastClock sets the clock used to anchor hourly labels to dates.
func WithForecastClock(c clock.Clock) ForecastOption {
	return func(f *ForecastClient) { f.clock = c }
}

// WithForecastLocation sets the zone the page's day labels refer to.
func WithForecastLocation(loc *time.Location) ForecastOption {
	return func(f *ForecastClient) { f.loc = loc }
}

func NewForecastClient(httpClient *RateLimitedHTTPClient, baseURL string, log *logrus.Logger, opts ...ForecastOption) *ForecastClient {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	c := &ForecastClient{
		http:    httpClient,
		baseURL: baseURL,
		clock:   clock.RealClock{},
		loc:     time.UTC,
		logger:  logger.OrDiscard(log).WithField("source", forecastName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ForecastClient) Name() string {
	return forecastName
}

// FetchPrices returns predicted half-hour slots. Scrape failures are logged
// and produce an empty result rather than an error.
func (c *ForecastClient) FetchPrices(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, error) {
	u := fmt.Sprintf("%s?region=%s", c.baseURL, url.QueryEscape(strings.ToUpper(region)))
	resp, err := c.http.Get(ctx, u)
	if err != nil {
		c.logger.WithError(err).Warn("Forecast page unavailable")
		return []models.PriceSlot{}, nil
	}
	defer resp.Body.Close()
	if err := statusError(forecastName, resp); err != nil {
		c.logger.WithError(err).Warn("Forecast page unavailable")
		return []models.PriceSlot{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read forecast page")
		return []models.PriceSlot{}, nil
	}

	base := clock.Today(c.clock.Now().In(c.loc))
	slots := c.Parse(string(body), base)
	c.logger.WithFields(logrus.Fields{
		"region": region,
		"slots":  len(slots),
	}).Info("Parsed forecast slots")
	return models.FilterPrices(slots, from, to), nil
}

// Parse extracts hourly forecasts from the page. Script variables are tried
// first, then forecast tables. Each hourly value becomes two half-hour slots.
func (c *ForecastClient) Parse(page string, base time.Time) []models.PriceSlot {
	if hourly := parseScriptVars(page); len(hourly) > 0 {
		out := make([]models.PriceSlot, 0, 2*len(hourly))
		for i, p := range hourly {
			out = append(out, halfHours(base.Add(time.Duration(i)*time.Hour), p)...)
		}
		return out
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		c.logger.WithError(err).Debug("HTML parse failed")
		return nil
	}
	for _, rows := range candidateTables(doc) {
		if out := c.parseRows(rows); len(out) > 0 {
			return out
		}
	}
	c.logger.Warn("No forecast data found on page")
	return nil
}

func parseScriptVars(page string) []float64 {
	pm := jsPricesRe.FindStringSubmatch(page)
	lm := jsLabelsRe.FindStringSubmatch(page)
	if pm == nil || lm == nil {
		return nil
	}
	prices := splitJSArray(pm[1])
	labels := splitJSArray(lm[1])
	if len(prices) != len(labels) {
		return nil
	}
	out := make([]float64, 0, len(prices))
	for _, p := range prices {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func splitJSArray(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func halfHours(t time.Time, price float64) []models.PriceSlot {
	return []models.PriceSlot{
		{Time: t.UTC(), Price: price, Source: models.PricePredicted},
		{Time: t.Add(models.SlotDuration).UTC(), Price: price, Source: models.PricePredicted},
	}
}

var rowLayouts = []string{
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	"2006-01-02T15:04",
	"Mon 2 Jan 15:04",
}

func (c *ForecastClient) parseRows(rows [][]string) []models.PriceSlot {
	var out []models.PriceSlot
	for _, cells := range rows {
		if len(cells) < 3 {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(cells[2]), 64)
		if err != nil {
			continue
		}
		stamp := strings.TrimSpace(cells[0]) + " " + strings.TrimSpace(cells[1])
		for _, layout := range rowLayouts {
			t, err := time.ParseInLocation(layout, stamp, c.loc)
			if err != nil {
				continue
			}
			if t.Year() == 0 {
				t = t.AddDate(c.clock.Now().In(c.loc).Year(), 0, 0)
			}
			out = append(out, halfHours(t, price)...)
			break
		}
	}
	return out
}

// candidateTables returns td text rows for each table, ordered by how
// specifically the table is marked as a forecast table.
func candidateTables(doc *html.Node) [][][]string {
	var classed, tagged, generic [][][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			rows := tableRows(n)
			switch {
			case hasAttr(n, "class", "forecast-table"):
				classed = append(classed, rows)
			case hasAttr(n, "data-table", "forecasts"):
				tagged = append(tagged, rows)
			default:
				generic = append(generic, rows)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return append(append(classed, tagged...), generic...)
}

func hasAttr(n *html.Node, key, value string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			for _, f := range strings.Fields(a.Val) {
				if f == value {
					return true
				}
			}
		}
	}
	return false
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for td := n.FirstChild; td != nil; td = td.NextSibling {
				if td.Type == html.ElementNode && td.Data == "td" {
					cells = append(cells, textOf(td))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(table)
	return rows
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
