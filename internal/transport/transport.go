// Package transport performs outbound HTTP requests to the statistics service.
//
// The upstream server rejects handshakes that only offer modern cipher suites, so the
// default TLS policy is lowered. Certificate verification is never disabled. Everything
// about that policy lives here so the series client does not need to change when the
// upstream modernizes.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 15 * time.Second
	// DefaultRateLimit is the sustained request rate towards the upstream (requests/second).
	DefaultRateLimit = 5.0

	maxBodyBytes = 10 << 20
)

// Request is a single GET request.
type Request struct {
	URL     string
	Headers map[string]string
}

// Fetcher performs a request and returns the raw response body.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Config configures the HTTP transport.
type Config struct {
	Timeout       time.Duration
	SecurityLevel SecurityLevel
	RateLimit     float64 // requests per second, <= 0 disables limiting
	Registerer    prometheus.Registerer
}

// HTTP is the Fetcher used in production.
type HTTP struct {
	client  *http.Client
	limiter *rate.Limiter
	latency *prometheus.HistogramVec
	log     zerolog.Logger
}

// New creates an HTTP transport.
func New(cfg Config, log zerolog.Logger) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	h := &HTTP{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSClientConfig:     TLSConfig(cfg.SecurityLevel),
				TLSHandshakeTimeout: cfg.Timeout,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "macrolens",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of upstream series requests by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		log: log.With().Str("component", "transport").Logger(),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(h.latency); err != nil {
			h.log.Warn().Err(err).Msg("Failed to register upstream latency histogram")
		}
	}
	return h
}

// Fetch issues a GET request and returns the body of a 2xx response.
func (h *HTTP) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, limitError(ctx, req.URL, err)
		}
	}

	start := time.Now()
	body, err := h.do(ctx, req)
	outcome := "ok"
	if err != nil {
		var terr *Error
		if errors.As(err, &terr) {
			outcome = string(terr.Kind)
		}
	}
	h.latency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return body, err
}

func (h *HTTP) do(ctx context.Context, req Request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: req.URL, Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, classify(req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &Error{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			Err:        fmt.Errorf("upstream returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(req.URL, err)
	}
	return body, nil
}

// limitError classifies a failed rate limiter wait. Wait also fails before the deadline
// when the next token would only arrive after it; that is reported as a timeout too.
func limitError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return classify(url, ctxErr)
	}
	if _, ok := ctx.Deadline(); ok {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return classify(url, err)
}

func classify(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: url, Err: err}
}

// SecurityLevel selects the TLS cipher policy.
type SecurityLevel int

const (
	// SecurityLegacy accepts every cipher suite Go implements and TLS 1.0+.
	SecurityLegacy SecurityLevel = 1
	// SecurityModern uses Go's default suites with TLS 1.2+.
	SecurityModern SecurityLevel = 2
)

// TLSConfig returns the client TLS configuration for a security level.
// Server certificates are always verified.
func TLSConfig(level SecurityLevel) *tls.Config {
	if level != SecurityLegacy {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}

	suites := make([]uint16, 0, 32)
	for _, s := range tls.CipherSuites() {
		suites = append(suites, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		suites = append(suites, s.ID)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS10,
		CipherSuites: suites,
	}
}
