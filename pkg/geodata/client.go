// Package geodata fetches parcel and street features from an ArcGIS-style
// feature service, such as the Detroit open data portal.
package geodata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/detroit-blocks/blockline/internal/geometry"
	"github.com/detroit-blocks/blockline/internal/ingest"
	"github.com/detroit-blocks/blockline/internal/model"
	"github.com/detroit-blocks/blockline/internal/resilience"
)

// Client fetches features from a feature service.
type Client interface {
	// FetchParcels retrieves all parcel features matching the where clause.
	FetchParcels(ctx context.Context, where string) ([]geometry.ParcelFeature, error)

	// FetchStreets retrieves all street centerlines matching the where clause.
	FetchStreets(ctx context.Context, where string) ([]geometry.Street, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for feature service calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPageSize sets the number of features requested per page.
func WithPageSize(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithConcurrency bounds the number of pages fetched in parallel.
func WithConcurrency(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRetry sets the retry policy for page fetches.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker configuration. Each layer gets its own
// breaker, so a failing parcel layer never blocks street queries.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *client) {
		c.breakers = resilience.NewServiceBreakers(cfg)
	}
}

type client struct {
	baseURL     string
	parcelLayer string
	streetLayer string

	httpClient  *http.Client
	limiter     *rate.Limiter
	breakers    *resilience.ServiceBreakers
	retry       resilience.RetryConfig
	pageSize    int
	concurrency int
	log         *zap.Logger
}

// NewClient creates a feature service client. baseURL is the service root;
// parcelLayer and streetLayer are layer paths relative to it
// (e.g. "parcel_file_current/FeatureServer/0").
func NewClient(baseURL, parcelLayer, streetLayer string, opts ...Option) Client {
	c := &client{
		baseURL:     baseURL,
		parcelLayer: parcelLayer,
		streetLayer: streetLayer,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(5, 5),
		breakers:    resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
		retry:       resilience.DefaultRetryConfig(),
		pageSize:    2000,
		concurrency: 4,
		log:         zap.L().With(zap.String("component", "geodata")),
	}
	c.retry.OnRetry = resilience.RetryLogger("geodata", "query")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchParcels implements Client.
func (c *client) FetchParcels(ctx context.Context, where string) ([]geometry.ParcelFeature, error) {
	features, err := c.fetchAll(ctx, c.parcelLayer, where)
	if err != nil {
		return nil, err
	}

	parcels := make([]geometry.ParcelFeature, 0, len(features))
	skipped := 0
	for _, f := range features {
		p := attributesToParcel(f.Attributes)
		if p.ID == "" {
			skipped++
			continue
		}
		g, err := f.Geometry.toGeom()
		if err != nil {
			c.log.Debug("parcel geometry unusable", zap.String("parcel", p.ID), zap.Error(err))
		}
		parcels = append(parcels, geometry.ParcelFeature{Parcel: p, Geometry: g})
	}
	if skipped > 0 {
		c.log.Warn("skipped parcels without identifier", zap.Int("count", skipped))
	}
	return parcels, nil
}

// FetchStreets implements Client.
func (c *client) FetchStreets(ctx context.Context, where string) ([]geometry.Street, error) {
	features, err := c.fetchAll(ctx, c.streetLayer, where)
	if err != nil {
		return nil, err
	}

	streets := make([]geometry.Street, 0, len(features))
	skipped := 0
	for _, f := range features {
		name := attributeString(f.Attributes, "street_name", "STREETNAME", "FULLNAME", "name")
		id := attributeString(f.Attributes, "object_id", "OBJECTID", "id")
		line, err := f.Geometry.toLineString()
		if err != nil || name == "" {
			skipped++
			continue
		}
		streets = append(streets, geometry.Street{ID: id, Name: name, Line: line})
	}
	if skipped > 0 {
		c.log.Warn("skipped unusable street features", zap.Int("count", skipped))
	}
	return streets, nil
}

// fetchAll pages through a layer: a count query first, then bounded parallel
// offset queries. Page order is restored before returning.
func (c *client) fetchAll(ctx context.Context, layer, where string) ([]feature, error) {
	if where == "" {
		where = "1=1"
	}

	total, err := c.fetchCount(ctx, layer, where)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	pages := (total + c.pageSize - 1) / c.pageSize
	c.log.Info("fetching layer",
		zap.String("layer", layer),
		zap.Int("features", total),
		zap.Int("pages", pages),
	)

	byPage := make([][]feature, pages)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for page := 0; page < pages; page++ {
		page := page
		g.Go(func() error {
			offset := page * c.pageSize
			feats, err := c.fetchPage(gctx, layer, where, offset)
			if err != nil {
				return eris.Wrapf(err, "geodata: page at offset %d", offset)
			}
			mu.Lock()
			byPage[page] = feats
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]feature, 0, total)
	for _, feats := range byPage {
		all = append(all, feats...)
	}
	return all, nil
}

func (c *client) fetchCount(ctx context.Context, layer, where string) (int, error) {
	params := url.Values{
		"where":           {where},
		"returnCountOnly": {"true"},
		"f":               {"json"},
	}
	body, err := c.query(ctx, layer, params)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, eris.Wrap(err, "geodata: parse count response")
	}
	return resp.Count, nil
}

func (c *client) fetchPage(ctx context.Context, layer, where string, offset int) ([]feature, error) {
	params := url.Values{
		"where":             {where},
		"outFields":         {"*"},
		"returnGeometry":    {"true"},
		"outSR":             {"4326"},
		"resultOffset":      {fmt.Sprintf("%d", offset)},
		"resultRecordCount": {fmt.Sprintf("%d", c.pageSize)},
		"f":                 {"json"},
	}
	body, err := c.query(ctx, layer, params)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geodata: parse query response")
	}
	if resp.Error != nil {
		return nil, eris.Errorf("geodata: service error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Features, nil
}

// query issues one rate-limited GET through the layer's circuit breaker and
// the retry policy. 429 and 5xx responses are transient.
func (c *client) query(ctx context.Context, layer string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "/" + layer + "/query?" + params.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breakers.Get(layer), func(ctx context.Context) ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "geodata: rate limit")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "geodata: build request")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "geodata: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				err := eris.Errorf("geodata: status %d", resp.StatusCode)
				if resilience.IsTransientHTTPStatus(resp.StatusCode) {
					return nil, resilience.NewTransientError(err, resp.StatusCode)
				}
				return nil, err
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, eris.Wrap(err, "geodata: read body")
			}
			return body, nil
		})
	})
}

// attributesToParcel maps a feature attribute bag onto a Parcel through the
// same column aliases the file ingester uses.
func attributesToParcel(attrs map[string]any) model.Parcel {
	if len(attrs) == 0 {
		return model.Parcel{}
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make([]string, len(keys))
	for i, k := range keys {
		row[i] = attributeValueString(attrs[k])
	}

	cols, err := ingest.MapColumns(keys)
	if err != nil {
		return model.Parcel{}
	}
	return cols.Parcel(row)
}

func attributeString(attrs map[string]any, names ...string) string {
	for _, n := range names {
		if v, ok := attrs[n]; ok {
			if s := attributeValueString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func attributeValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
