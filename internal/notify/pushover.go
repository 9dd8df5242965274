// Package notify delivers push notifications with a persistent daily cap.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/datasource"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/store"
)

const (
	DefaultAPIURL     = "https://api.pushover.net/1/messages.json"
	MaxMessageLength  = 1024
	DefaultMaxDaily   = 5
	DefaultSound      = "pushover"
	rateLimitKeepDays = 2
)

var (
	ErrInvalidMessage     = errors.New("invalid notification")
	ErrMissingCredentials = errors.New("pushover user key and api token are required")
)

// Message is a single push notification.
type Message struct {
	Title    string
	Body     string
	Priority int
	Sound    string
	HTML     bool
}

// Validate rejects messages Pushover would refuse.
func (m Message) Validate() error {
	if n := utf8.RuneCountInString(m.Body); n > MaxMessageLength {
		return fmt.Errorf("%w: message is %d characters, limit %d", ErrInvalidMessage, n, MaxMessageLength)
	}
	if m.Priority < -2 || m.Priority > 2 {
		return fmt.Errorf("%w: priority %d outside -2..2", ErrInvalidMessage, m.Priority)
	}
	return nil
}

// Notifier sends messages. Send reports false without error when delivery
// failed or was suppressed; errors are reserved for invalid messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) (bool, error)
}

// Config holds Pushover credentials and limits.
type Config struct {
	UserKey  string
	APIToken string
	APIURL   string
	MaxDaily int
}

// PushoverClient sends notifications through the Pushover API.
type PushoverClient struct {
	cfg   Config
	http  *datasource.RateLimitedHTTPClient
	store *store.Store
	clock clock.Clock
	audit *logger.AuditLogger
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

// NewPushoverClient builds a client. st tracks the daily send count.
func NewPushoverClient(cfg Config, httpClient *datasource.RateLimitedHTTPClient, st *store.Store, log *logrus.Logger) (*PushoverClient, error) {
	if cfg.UserKey == "" || cfg.APIToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.MaxDaily <= 0 {
		cfg.MaxDaily = DefaultMaxDaily
	}
	return &PushoverClient{
		cfg:   cfg,
		http:  httpClient,
		store: st,
		clock: st.Clock(),
		audit: logger.NewAuditLogger(logger.OrDiscard(log)),
	}, nil
}

func (c *PushoverClient) today() string {
	return c.clock.Now().Format(clock.DateLayout)
}

// SentToday returns the number of notifications delivered today.
func (c *PushoverClient) SentToday() int {
	counts := store.Load[map[string]int](c.store, store.NotificationLimits)
	return counts[c.today()]
}

// Send validates and delivers msg unless today's cap is reached.
func (c *PushoverClient) Send(ctx context.Context, msg Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}

	if sent := c.SentToday(); sent >= c.cfg.MaxDaily {
		c.audit.LogNotification(msg.Title, msg.Priority, false,
			fmt.Sprintf("daily limit reached (%d/%d)", sent, c.cfg.MaxDaily))
		return false, nil
	}

	if err := c.post(ctx, msg); err != nil {
		c.audit.LogNotification(msg.Title, msg.Priority, false, err.Error())
		return false, nil
	}

	if err := c.record(ctx); err != nil {
		c.audit.WithError(err).Warn("Failed to record notification count")
	}
	c.audit.LogNotification(msg.Title, msg.Priority, true, "")
	return true, nil
}

func (c *PushoverClient) post(ctx context.Context, msg Message) error {
	sound := msg.Sound
	if sound == "" {
		sound = DefaultSound
	}
	form := url.Values{}
	form.Set("token", c.cfg.APIToken)
	form.Set("user", c.cfg.UserKey)
	form.Set("title", msg.Title)
	form.Set("message", msg.Body)
	form.Set("priority", strconv.Itoa(msg.Priority))
	form.Set("sound", sound)
	if msg.HTML {
		form.Set("html", "1")
	}

	resp, err := c.http.Post(ctx, c.cfg.APIURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("pushover returned %s: %w", resp.Status, err)
	}
	if resp.StatusCode >= 300 || body.Status != 1 {
		return fmt.Errorf("pushover returned %s: %s", resp.Status, strings.Join(body.Errors, "; "))
	}
	return nil
}

// record bumps today's count and drops all but the most recent days.
func (c *PushoverClient) record(ctx context.Context) error {
	today := c.today()
	return store.Update(ctx, c.store, store.NotificationLimits, func(counts *map[string]int) error {
		if *counts == nil {
			*counts = map[string]int{}
		}
		(*counts)[today]++

		dates := make([]string, 0, len(*counts))
		for d := range *counts {
			dates = append(dates, d)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(dates)))
		for _, d := range dates[min(len(dates), rateLimitKeepDays):] {
			delete(*counts, d)
		}
		return nil
	})
}

// ResetToday clears today's count.
func (c *PushoverClient) ResetToday(ctx context.Context) error {
	today := c.today()
	return store.Update(ctx, c.store, store.NotificationLimits, func(counts *map[string]int) error {
		delete(*counts, today)
		return nil
	})
}

// Disabled is a Notifier used when push delivery is switched off.
type Disabled struct {
	audit *logger.AuditLogger
}

func NewDisabled(log *logrus.Logger) *Disabled {
	return &Disabled{audit: logger.NewAuditLogger(logger.OrDiscard(log))}
}

func (d *Disabled) Send(_ context.Context, msg Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	d.audit.LogNotification(msg.Title, msg.Priority, false, "notifications disabled")
	return false, nil
}
