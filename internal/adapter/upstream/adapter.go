// Package upstream fetches raw sighting records from third-party feeds.
//
// Each source tries its candidate endpoints in priority order and returns the
// first payload whose shape it recognizes. When every candidate fails it
// serves a bundled synthetic set, marked as such, so one dead upstream never
// empties the merged feed.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/observability"
)

// Adapter fetches raw records from one upstream source.
type Adapter interface {
	Tag() string
	Context() domain.SourceContext
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Kind selects how a candidate's response body is turned into JSON.
type Kind string

const (
	// KindAPI is a JSON endpoint.
	KindAPI Kind = "api"
	// KindScrape is an HTML page carrying JSON in a <script id=...> element.
	KindScrape Kind = "scrape"
	// KindRendered is a JavaScript-rendered page; ElementID is a CSS selector
	// whose text content is JSON once the page has rendered.
	KindRendered Kind = "rendered"
)

// Candidate is one upstream endpoint.
type Candidate struct {
	Name      string
	URL       string
	Kind      Kind
	ElementID string
}

// ErrAllCandidatesFailed is returned when no candidate produced a recognizable
// payload and the synthetic fallback is disabled.
var ErrAllCandidatesFailed = errors.New("all upstream candidates failed")

// ErrUnrecognizedPayload marks a response whose shape is neither a record list
// nor a known envelope.
var ErrUnrecognizedPayload = errors.New("unrecognized payload shape")

// AttemptError records why one candidate failed.
type AttemptError struct {
	Candidate string
	Err       error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("candidate %s: %v", e.Candidate, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Options configures every source built by this package.
type Options struct {
	RequestTimeout  time.Duration // per candidate attempt
	RateLimit       float64       // requests per second per source
	UserAgent       string
	FallbackEnabled bool
	HTTPClient      *http.Client
	Renderer        Renderer // nil disables rendered candidates
	Logger          *slog.Logger
	Metrics         *observability.Metrics
}

// Source is an Adapter backed by an ordered candidate list and an optional
// synthetic fallback set.
type Source struct {
	sc         domain.SourceContext
	candidates []Candidate
	fallback   []domain.RawRecord

	timeout         time.Duration
	userAgent       string
	fallbackEnabled bool
	client          *http.Client
	renderer        Renderer
	limiter         *rate.Limiter
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// NewSource creates a source. The fallback records are served, marked
// synthetic, when every candidate fails and opts.FallbackEnabled is set.
func NewSource(sc domain.SourceContext, candidates []Candidate, fallback []domain.RawRecord, opts Options) *Source {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Source{
		sc:              sc,
		candidates:      candidates,
		fallback:        fallback,
		timeout:         timeout,
		userAgent:       opts.UserAgent,
		fallbackEnabled: opts.FallbackEnabled,
		client:          client,
		renderer:        opts.Renderer,
		limiter:         rate.NewLimiter(limit, 1),
		logger:          opts.Logger.With("source", sc.Tag),
		metrics:         opts.Metrics,
	}
}

func (s *Source) Tag() string                   { return s.sc.Tag }
func (s *Source) Context() domain.SourceContext { return s.sc }

// Candidates returns the endpoints tried in order.
func (s *Source) Candidates() []Candidate { return s.candidates }

// Fetch tries each candidate in order and returns the first recognized
// payload's records. An empty recognized list is a valid answer.
func (s *Source) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var errs []error
	for _, c := range s.candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		records, err := s.attempt(ctx, c)
		if err != nil {
			s.metrics.CandidateAttempts.WithLabelValues(s.sc.Tag, attemptOutcome(err)).Inc()
			s.logger.Warn("candidate failed", "candidate", c.Name, "kind", c.Kind, "error", err)
			errs = append(errs, &AttemptError{Candidate: c.Name, Err: err})
			continue
		}

		s.metrics.CandidateAttempts.WithLabelValues(s.sc.Tag, "ok").Inc()
		s.logger.Info("candidate succeeded", "candidate", c.Name, "records", len(records))
		return records, nil
	}

	if s.fallbackEnabled && len(s.fallback) > 0 {
		s.logger.Warn("all candidates failed, serving synthetic fallback",
			"attempts", len(errs),
			"records", len(s.fallback),
		)
		return MarkSynthetic(s.fallback), nil
	}
	return nil, errors.Join(append([]error{ErrAllCandidatesFailed}, errs...)...)
}

func (s *Source) attempt(ctx context.Context, c Candidate) ([]domain.RawRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		body []byte
		err  error
	)
	switch c.Kind {
	case KindScrape:
		body, err = s.get(ctx, c.URL, "text/html")
		if err == nil {
			body, err = ExtractScriptJSON(body, c.ElementID)
		}
	case KindRendered:
		if s.renderer == nil {
			return nil, errors.New("no renderer configured")
		}
		body, err = s.renderer.Render(ctx, c.URL, c.ElementID)
		if err != nil {
			err = &RenderError{Err: err}
		}
	default:
		body, err = s.get(ctx, c.URL, "application/json")
	}
	if err != nil {
		return nil, err
	}

	p := domain.ResolvePayload(unwrapPageProps(body))
	if !p.Recognized() {
		return nil, ErrUnrecognizedPayload
	}
	if p.Skipped > 0 {
		s.logger.Debug("skipped non-object elements", "candidate", c.Name, "skipped", p.Skipped)
	}
	return p.Records, nil
}

// MarkSynthetic returns copies of records carrying the synthetic marker.
func MarkSynthetic(records []domain.RawRecord) []domain.RawRecord {
	out := make([]domain.RawRecord, len(records))
	for i, r := range records {
		cp := make(domain.RawRecord, len(r)+1)
		for k, v := range r {
			cp[k] = v
		}
		cp[domain.SyntheticMarker] = true
		out[i] = cp
	}
	return out
}

func attemptOutcome(err error) string {
	var (
		statusErr *StatusError
		renderErr *RenderError
	)
	switch {
	case errors.As(err, &statusErr):
		return "http_error"
	case errors.As(err, &renderErr):
		return "render_error"
	case errors.Is(err, ErrUnrecognizedPayload), errors.Is(err, ErrScriptNotFound):
		return "unrecognized"
	default:
		return "transport_error"
	}
}
