// Package wfs reads GDELT features from the GeoMesa datastore published by
// GeoServer, pushing the ECQL filter down through WFS GetFeature.
package wfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/config"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/httpclient"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/observability"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/ogc"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

const (
	backendName  = "wfs"
	errSnippetSz = 8 << 10
)

func init() {
	store.Register(backendName, Open)
}

type Store struct {
	logger *slog.Logger
	client *http.Client
	owsURL *url.URL
	params store.Params
	count  int
}

// Open validates the bundle, builds the store and probes the feature type.
// Any failure here is ErrUnavailable.
func Open(ctx context.Context, cfg config.StoreCfg, logger *slog.Logger) (store.Store, error) {
	p := store.ParamsFrom(cfg)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, err := New(logger, httpclient.NewOutbound(0), cfg.GeoServerURL, p)
	if err != nil {
		return nil, err
	}
	if cfg.MaxFeatures > 0 {
		// one past the cap so the projector can still see truncation
		s.count = cfg.MaxFeatures + 1
	}
	logger.Info("opening feature store",
		"backend", backendName,
		"layer", p.Layer(),
		"ows", s.owsURL.String(),
		"count", s.count,
		"featureType", gdelt.FeatureTypeSpec(),
		"params", p.DataStoreParams(false))
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func New(logger *slog.Logger, client *http.Client, geoServerBase string, p store.Params) (*Store, error) {
	u, err := url.Parse(ogc.OWSEndpoint(geoServerBase))
	if err != nil {
		return nil, fmt.Errorf("%w: parse ows url: %w", store.ErrUnavailable, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: ows url %q needs scheme and host", store.ErrUnavailable, u.String())
	}
	if client == nil {
		client = httpclient.NewOutbound(0)
	}
	return &Store{
		logger: logger,
		client: client,
		owsURL: u,
		params: p,
	}, nil
}

// Ping issues DescribeFeatureType for the configured layer.
func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, ogc.DescribeFeatureTypeParams(s.params.Layer()))
	if err != nil {
		return fmt.Errorf("%w: describe %s: %w", store.ErrUnavailable, s.params.Layer(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || isXML(resp) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errSnippetSz))
		return fmt.Errorf("%w: describe %s: status %d: %s", store.ErrUnavailable,
			s.params.Layer(), resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Query streams the matching features. The returned cursor owns the
// response body.
func (s *Store) Query(ctx context.Context, p query.Predicate) (store.Cursor, error) {
	gf := ogc.GetFeature{TypeNames: s.params.Layer(), CQLFilter: p.CQL(), Count: s.count}
	s.logger.Debug("wfs GetFeature", "layer", gf.TypeNames, "cql", gf.CQLFilter, "count", gf.Count)

	start := time.Now()
	resp, err := s.do(ctx, gf.Params())
	dur := time.Since(start).Seconds()
	if err != nil {
		observability.ObserveStoreQuery(backendName, "error", dur)
		return nil, fmt.Errorf("%w: %w", store.ErrQueryExecution, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || isXML(resp) {
		observability.ObserveStoreQuery(backendName, "error", dur)
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errSnippetSz))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: upstream status %d: %s", store.ErrQueryExecution,
			resp.StatusCode, strings.TrimSpace(string(b)))
	}
	observability.ObserveStoreQuery(backendName, "ok", dur)
	return &cursor{body: resp.Body, fr: gdelt.NewFeatureReader(resp.Body), count: s.count}, nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) do(ctx context.Context, params url.Values) (*http.Response, error) {
	u := *s.owsURL
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", ogc.OutputGeoJSON)
	if s.params.User != "" && s.params.Password != "" {
		req.SetBasicAuth(s.params.User, s.params.Password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// GeoServer reports filter errors as an OWS ExceptionReport, sometimes with 200.
func isXML(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return strings.HasSuffix(mt, "/xml") || strings.HasSuffix(mt, "+xml")
}

type cursor struct {
	body io.ReadCloser
	fr   *gdelt.FeatureReader
	cur  gdelt.Feature
	err  error
	done bool

	count int
	read  int

	closeOnce sync.Once
	closeErr  error
}

func (c *cursor) Next() bool {
	if c.done || c.err != nil {
		return false
	}
	f, err := c.fr.Next()
	if errors.Is(err, io.EOF) {
		c.done = true
		return false
	}
	if err != nil {
		c.err = fmt.Errorf("%w: read features: %w", store.ErrQueryExecution, err)
		return false
	}
	c.cur = f
	c.read++
	return true
}

func (c *cursor) Limited() bool { return c.count > 0 && c.read >= c.count }

func (c *cursor) Feature() gdelt.Feature { return c.cur }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.closeOnce.Do(func() {
		c.done = true
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
