// Package geocode resolves free-text place names via the OpenStreetMap Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/geoprofiles/internal/resilience"
)

const (
	defaultBaseURL     = "https://nominatim.openstreetmap.org"
	defaultUserAgent   = "geoprofiles/1.0"
	defaultMinInterval = 600 * time.Millisecond
)

// Client looks up a place by free-text query.
type Client interface {
	// Search returns the best match for query, or nil when nothing matched.
	Search(ctx context.Context, query string) (*Place, error)
}

// Place is a single geocoder match.
type Place struct {
	OSMType     string
	OSMID       int64
	Latitude    float64
	Longitude   float64
	PlaceRank   int
	DisplayName string
}

// StableID returns the geocoder's persistent identifier for the place,
// e.g. "R165475" for OSM relation 165475.
func (p *Place) StableID() string {
	prefix := "X"
	if p.OSMType != "" {
		prefix = strings.ToUpper(p.OSMType[:1])
	}
	return prefix + strconv.FormatInt(p.OSMID, 10)
}

// Option configures the geocoder.
type Option func(*nominatim)

// WithBaseURL overrides the Nominatim endpoint (self-hosted instances, tests).
func WithBaseURL(u string) Option {
	return func(n *nominatim) {
		n.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header required by the Nominatim usage policy.
func WithUserAgent(ua string) Option {
	return func(n *nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *nominatim) {
		n.httpClient = hc
	}
}

// WithMinInterval sets the minimum spacing between consecutive requests.
// Zero or negative disables throttling.
func WithMinInterval(d time.Duration) Option {
	return func(n *nominatim) {
		if d <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

type nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a Nominatim-backed Client.
func NewClient(opts ...Option) Client {
	n := &nominatim{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(rate.Every(defaultMinInterval), 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// nominatimResult is one element of the jsonv2 search response.
type nominatimResult struct {
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	PlaceRank   int    `json:"place_rank"`
	DisplayName string `json:"display_name"`
}

// Search implements Client.
func (n *nominatim) Search(ctx context.Context, query string) (*Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	reqURL := n.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(results) == 0 {
		return nil, nil
	}

	return toPlace(results[0])
}

func toPlace(r nominatimResult) (*Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lat %q", r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lon %q", r.Lon)
	}
	return &Place{
		OSMType:     r.OSMType,
		OSMID:       r.OSMID,
		Latitude:    lat,
		Longitude:   lon,
		PlaceRank:   r.PlaceRank,
		DisplayName: r.DisplayName,
	}, nil
}
