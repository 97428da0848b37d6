package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/logger"
)

const (
	probeUserAgent   = "Mozilla/5.0 (compatible; sherlock-center/1.0)"
	maxBodyBytes     = 1 << 20 // 1 MiB is plenty for error-message matching
	defaultProbeRate = 50      // probes per second across all workers
)

// HTTPEngine probes sites over HTTP with a bounded worker pool and a
// shared request rate limit.
type HTTPEngine struct {
	sites   []Site
	client  *http.Client
	limiter *rate.Limiter
	log     logger.Logger

	workers int
	timeout time.Duration
}

// NewHTTPEngine creates an engine over the given catalog. workers
// bounds probe concurrency and timeout applies to each site request.
func NewHTTPEngine(sites []Site, workers int, timeout time.Duration, log logger.Logger) *HTTPEngine {
	if workers < 1 {
		workers = 1
	}
	return &HTTPEngine{
		sites: sites,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				// Redirects to login or landing pages read as absent
				// profiles, so stop at the first response.
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultProbeRate), workers),
		log:     log,
		workers: workers,
		timeout: timeout,
	}
}

// TotalSites implements Engine.
func (e *HTTPEngine) TotalSites() int {
	return len(e.sites)
}

// Run implements Engine.
func (e *HTTPEngine) Run(ctx context.Context, username string, observe func(Outcome)) error {
	if len(e.sites) == 0 {
		return ErrUnavailable
	}

	jobs := make(chan Site)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for site := range jobs {
				observe(e.probe(ctx, site, username))
			}
		}()
	}

	for _, site := range e.sites {
		select {
		case jobs <- site:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return fmt.Errorf("probe run cancelled: %w", ctx.Err())
		}
	}
	close(jobs)
	wg.Wait()

	return nil
}

// probe checks a single site and classifies the response.
func (e *HTTPEngine) probe(ctx context.Context, site Site, username string) Outcome {
	outcome := Outcome{
		SiteName: site.Name,
		URLMain:  site.URLMain,
		URLUser:  site.ProfileURL(username),
	}

	if err := e.limiter.Wait(ctx); err != nil {
		outcome.Status = domain.OutcomeUnknown
		msg := err.Error()
		outcome.ErrorMessage = &msg
		return outcome
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	status, body, err := e.fetch(reqCtx, outcome.URLUser)
	elapsed := time.Since(start).Seconds()
	outcome.QueryTime = &elapsed

	if err != nil {
		outcome.Status = domain.OutcomeError
		msg := err.Error()
		outcome.ErrorMessage = &msg
		e.log.Debug("Probe request failed",
			logger.String("site", site.Name),
			logger.Error(err),
		)
		return outcome
	}

	outcome.HTTPStatus = &status
	outcome.Status = classify(site, status, body)
	return outcome
}

func (e *HTTPEngine) fetch(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read probe response: %w", err)
	}

	return resp.StatusCode, string(body), nil
}

// classify maps an HTTP response to a probe outcome using the site's
// error detection mode.
func classify(site Site, status int, body string) domain.OutcomeStatus {
	switch site.ErrorType {
	case errorTypeStatusCode:
		if status >= 200 && status < 300 {
			return domain.OutcomeClaimed
		}
		return domain.OutcomeAvailable
	case errorTypeMessage:
		if site.ErrorMsg != "" && strings.Contains(body, site.ErrorMsg) {
			return domain.OutcomeAvailable
		}
		if status >= 200 && status < 300 {
			return domain.OutcomeClaimed
		}
		return domain.OutcomeAvailable
	default:
		return domain.OutcomeUnknown
	}
}
