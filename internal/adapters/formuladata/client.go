// Package formuladata fetches per-stage formula parameters from the formula
// data provider and pushes computed karma back to it.
package formuladata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/formula"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// UserIDPlaceholder is replaced by the path-escaped user id in endpoint templates.
const UserIDPlaceholder = "{user_id}"

const maxBodyBytes = 1 << 20

// Endpoints holds the provider URL templates, e.g.
// "http://localhost:5002/v1/formula-data/a-formula/{user_id}".
type Endpoints struct {
	AScore     string
	RScore     string
	PostRating string
	Karma      string
	KarmaLevel string
	// UpdateInfo receives computed karma; empty disables publishing.
	UpdateInfo string
}

func (e Endpoints) template(stage formula.Stage) string {
	switch stage {
	case formula.StageAScore:
		return e.AScore
	case formula.StageRScore:
		return e.RScore
	case formula.StagePostRating:
		return e.PostRating
	case formula.StageKarma:
		return e.Karma
	case formula.StageKarmaLevel:
		return e.KarmaLevel
	default:
		return ""
	}
}

// BreakerSettings configures the circuit breaker in front of the provider.
type BreakerSettings struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open-state duration before probing
	MinRequests  uint32        // requests needed before the ratio is considered
	FailureRatio float64       // trip when failures/requests reaches this
}

// DefaultBreakerSettings returns 3 probes, 1m window, 30s open, 60% of 10.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxRequests: 3, Interval: time.Minute, Timeout: 30 * time.Second, MinRequests: 10, FailureRatio: 0.6}
}

// Client talks to the formula data provider.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker[[]byte]
	settings  BreakerSettings
	validate  *validator.Validate
	log       logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(s BreakerSettings) Option {
	return func(c *Client) {
		c.settings = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a client. Every stage endpoint must be set.
func New(endpoints Endpoints, opts ...Option) (*Client, error) {
	c := &Client{
		endpoints: endpoints,
		http:      http.DefaultClient,
		timeout:   5 * time.Second,
		settings:  DefaultBreakerSettings(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, stage := range formula.Stages {
		if strings.TrimSpace(endpoints.template(stage)) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, stage)
		}
	}

	c.breaker = newBreaker("formula-data", c.settings, c.log)
	return c, nil
}

func newBreaker(name string, s BreakerSettings, log logger.Logger) *gobreaker.CircuitBreaker[[]byte] {
	metrics.UpdateBreakerState(name, 0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, stateToInt(to))
		},
	})
}

func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// URL expands the endpoint template of a stage for a user.
func (c *Client) URL(stage formula.Stage, userID string) string {
	return strings.ReplaceAll(c.endpoints.template(stage), UserIDPlaceholder, url.PathEscape(userID))
}

// AScoreInputs fetches the A-Score parameters.
func (c *Client) AScoreInputs(ctx context.Context, userID string) (formula.AScoreInputs, error) {
	var p aScorePayload
	if err := c.fetch(ctx, formula.StageAScore, userID, &p); err != nil {
		return formula.AScoreInputs{}, err
	}
	return p.inputs(), nil
}

// RScoreInputs fetches the R-Score parameters.
func (c *Client) RScoreInputs(ctx context.Context, userID string) (formula.RScoreInputs, error) {
	var p rScorePayload
	if err := c.fetch(ctx, formula.StageRScore, userID, &p); err != nil {
		return formula.RScoreInputs{}, err
	}
	return p.inputs(), nil
}

// PostRatingInputs fetches the PostRating parameters.
func (c *Client) PostRatingInputs(ctx context.Context, userID string) (formula.PostRatingInputs, error) {
	var p postRatingPayload
	if err := c.fetch(ctx, formula.StagePostRating, userID, &p); err != nil {
		return formula.PostRatingInputs{}, err
	}
	return p.inputs(), nil
}

// KarmaInputs fetches the Karma parameters.
func (c *Client) KarmaInputs(ctx context.Context, userID string) (formula.KarmaInputs, error) {
	var p karmaPayload
	if err := c.fetch(ctx, formula.StageKarma, userID, &p); err != nil {
		return formula.KarmaInputs{}, err
	}
	return p.inputs(), nil
}

// KarmaLevelInputs fetches the KarmaLevel parameters.
func (c *Client) KarmaLevelInputs(ctx context.Context, userID string) (formula.KarmaLevelInputs, error) {
	var p karmaLevelPayload
	if err := c.fetch(ctx, formula.StageKarmaLevel, userID, &p); err != nil {
		return formula.KarmaLevelInputs{}, err
	}
	return p.inputs(), nil
}

// fetch GETs one stage payload, decodes it into dst and validates it. Every
// failure is reported as errs.ErrExternalDataUnavailable.
func (c *Client) fetch(ctx context.Context, stage formula.Stage, userID string, dst any) error {
	const op = "formuladata.Fetch"
	start := time.Now()
	fail := func(reason string, err error) error {
		metrics.RecordProviderFetchError(stage.String(), reason)
		c.log.Warn(ctx, "formula data fetch failed",
			logger.String("stage", stage.String()),
			logger.String("user_id", userID),
			logger.String("reason", reason),
			logger.Error(err),
		)
		return errs.New(op, errs.ErrExternalDataUnavailable, err).WithUser(userID).WithStage(stage.String())
	}

	body, err := c.call(ctx, http.MethodGet, c.URL(stage, userID), nil)
	metrics.RecordProviderFetch(stage.String(), float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fail(reasonFor(err), err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fail("decode", fmt.Errorf("%w: %w", ErrMalformedPayload, err))
	}
	if err := c.validate.Struct(dst); err != nil {
		return fail("validation", fmt.Errorf("%w: %w", ErrIncompletePayload, err))
	}
	return nil
}

// Publish pushes a computed karma to the update-info endpoint.
func (c *Client) Publish(ctx context.Context, upd types.KarmaUpdate) error {
	const op = "formuladata.Publish"
	if c.endpoints.UpdateInfo == "" {
		return ErrUpdateInfoDisabled
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if _, err := c.call(ctx, http.MethodPost, c.endpoints.UpdateInfo, payload); err != nil {
		metrics.RecordKarmaPublish("error")
		return errs.New(op, errs.ErrExternalDataUnavailable, err).WithUser(upd.UserID)
	}
	metrics.RecordKarmaPublish("ok")
	return nil
}

// CanPublish reports whether an update-info endpoint is configured.
func (c *Client) CanPublish() bool { return c.endpoints.UpdateInfo != "" }

// call runs one request through the breaker with the client timeout.
func (c *Client) call(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.breaker.Execute(func() ([]byte, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, target, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if !statusOK(method, resp.StatusCode) {
			return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, target, resp.StatusCode)
		}
		return data, nil
	})
}

// statusOK accepts exactly 200 for reads and any 2xx for writes.
func statusOK(method string, code int) bool {
	if method == http.MethodGet {
		return code == http.StatusOK
	}
	return code >= 200 && code < 300
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	default:
		return "transport"
	}
}
