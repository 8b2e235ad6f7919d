package arrivals

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/yegors/arrival-board/internal/config"
	"github.com/yegors/arrival-board/internal/jsonutil"
	"github.com/yegors/arrival-board/pkg/logger"
)

var (
	// ErrNotConfigured is returned when the API key or stop id is missing
	ErrNotConfigured = errors.New("transit source not configured")

	// ErrMalformedPayload is returned when the response body is not JSON
	ErrMalformedPayload = errors.New("malformed stop-monitoring payload")
)

// Fetcher performs a single bounded GET
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client fetches and extracts arrivals for one stop
type Client struct {
	baseURL     string
	apiKey      string
	stopID      string
	operatorRef string
	maxResults  int
	filter      RouteFilter
	occupancy   OccupancyModel
	fetcher     Fetcher
	logger      *logger.Logger
}

// NewClient creates a new arrivals client
func NewClient(cfg config.TransitConfig, occupancy OccupancyModel, fetcher Fetcher, log *logger.Logger) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		stopID:      cfg.StopID,
		operatorRef: cfg.OperatorRef,
		maxResults:  cfg.MaxResults,
		filter:      ParseRouteFilter(cfg.RouteFilter),
		occupancy:   occupancy,
		fetcher:     fetcher,
		logger:      log.Named("arrivals-client"),
	}
}

// StopID returns the monitored stop
func (c *Client) StopID() string {
	return c.stopID
}

// Fetch requests the stop's upcoming visits and extracts them. On any error
// the returned Result is empty and the caller should keep its previous data.
func (c *Client) Fetch(ctx context.Context, now time.Time) (Result, error) {
	if c.apiKey == "" || c.stopID == "" {
		return Result{}, ErrNotConfigured
	}

	body, err := c.fetcher.Get(ctx, c.requestURL())
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch arrivals: %w", err)
	}

	doc, err := jsonutil.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	res := extractVisits(monitoredVisits(doc), ExtractOptions{
		Max:       c.maxResults,
		Filter:    c.filter,
		Occupancy: c.occupancy,
		Now:       now,
	})

	c.logger.Debug("Extracted arrivals",
		logger.String("stop_id", c.stopID),
		logger.Int("count", res.Len()),
		logger.String("stop_name", res.StopName))

	return res, nil
}

func (c *Client) requestURL() string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("MonitoringRef", c.stopID)
	if c.operatorRef != "" {
		q.Set("OperatorRef", c.operatorRef)
	}
	q.Set("MaximumStopVisits", strconv.Itoa(c.maxResults))
	return c.baseURL + "?" + q.Encode()
}
