// Package cycleapi implements the remote cycle service client.
package cycleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/pkg/circuitbreaker"
	"github.com/cycle-hub/cycle-progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the cycle service client.
type ClientConfig struct {
	// BaseURL is the service base URL
	BaseURL string

	// APIKey is the bearer token for authentication (if applicable)
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request-level debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		Timeout:           30 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the cycle service API client. It wraps every call with rate
// limiting, a circuit breaker, and bounded retries so a degraded service
// resolves to explicit failures instead of hanging callers.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retrier        *retry.Retrier
	mapper         *Mapper
}

// NewClient creates a new cycle service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:      config.Logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		mapper:      NewMapper(config.Logger),
	}

	c.circuitBreaker = circuitbreaker.CycleAPIBreaker(func(name string, from, to circuitbreaker.State) {
		c.logger.Warn("circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	})
	c.retrier = retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(10*time.Second),
		retry.WithMultiplier(2.0),
		retry.WithJitter(0.2),
		retry.WithRetryIf(isRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("retrying cycle service request",
				"attempt", attempt, "delay", delay, "error", err)
		}),
	)

	return c
}

// Mapper exposes the client's DTO mapper for callers that fetch DTOs
// through other channels (cache rebuilds, archive imports).
func (c *Client) Mapper() *Mapper { return c.mapper }

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// CurrentCycle fetches the caller's current cycle. Returns
// shared.ErrNoActiveCycle when the user has none.
func (c *Client) CurrentCycle(ctx context.Context) (*cycle.Cycle, error) {
	var response APIResponse[*CycleDTO]
	if err := c.doRequest(ctx, http.MethodGet, "/cycles/current", nil, &response); err != nil {
		return nil, fmt.Errorf("get current cycle: %w", err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}
	if response.Data == nil {
		return nil, shared.ErrNoActiveCycle
	}

	return c.mapper.CycleFromDTO(response.Data)
}

// CreateCycle creates a new cycle and returns the persisted entity.
func (c *Client) CreateCycle(ctx context.Context, draft *cycle.Cycle) (*cycle.Cycle, error) {
	req := c.mapper.CycleToCreateDTO(draft)

	var response APIResponse[CycleDTO]
	if err := c.doRequest(ctx, http.MethodPost, "/cycles", req, &response); err != nil {
		return nil, fmt.Errorf("create cycle: %w", err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}

	return c.mapper.CycleFromDTO(&response.Data)
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Goals fetches all goals of a cycle. Unmappable records are skipped and
// returned as anomalies rather than failing the fetch.
func (c *Client) Goals(ctx context.Context, cycleID string) ([]*goal.Goal, []shared.Anomaly, error) {
	path := fmt.Sprintf("/cycles/%s/goals", url.PathEscape(cycleID))

	var response APIResponse[[]GoalDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, nil, fmt.Errorf("get goals for cycle %s: %w", cycleID, err)
	}

	if !response.Success {
		return nil, nil, fmt.Errorf("api error: %s", response.Error)
	}

	goals, anomalies := c.mapper.GoalsFromDTO(response.Data)
	return goals, anomalies, nil
}

// PatchGoalProgress submits a partial progress update and returns the
// authoritative goal state. The patch must already be validated against the
// goal's variant; the service rejects mismatches with a validation error.
func (c *Client) PatchGoalProgress(ctx context.Context, goalID string, patch goal.Patch) (*goal.Goal, error) {
	path := fmt.Sprintf("/goals/%s/progress", url.PathEscape(goalID))

	var response APIResponse[GoalDTO]
	if err := c.doRequest(ctx, http.MethodPatch, path, c.mapper.PatchToDTO(patch), &response); err != nil {
		return nil, fmt.Errorf("patch goal %s: %w", goalID, err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}

	return c.mapper.GoalFromDTO(&response.Data)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Activities fetches and normalizes the heterogeneous activity list of a
// cycle. Malformed records degrade to safe defaults; the anomalies describe
// every substitution made.
func (c *Client) Activities(ctx context.Context, cycleID string) ([]activity.Normalized, []shared.Anomaly, error) {
	path := fmt.Sprintf("/cycles/%s/activities", url.PathEscape(cycleID))

	var response APIResponse[[]ActivityDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, nil, fmt.Errorf("get activities for cycle %s: %w", cycleID, err)
	}

	if !response.Success {
		return nil, nil, fmt.Errorf("api error: %s", response.Error)
	}

	normalized, anomalies := c.mapper.NormalizeActivities(response.Data, time.Now().UTC())
	return normalized, anomalies, nil
}

// RawActivities fetches the activities of a cycle as full domain entities,
// variant payloads included. Used by background reconciliation, which
// persists the raw records rather than the flattened timeline rows.
func (c *Client) RawActivities(ctx context.Context, cycleID string) ([]*activity.Activity, []shared.Anomaly, error) {
	path := fmt.Sprintf("/cycles/%s/activities", url.PathEscape(cycleID))

	var response APIResponse[[]ActivityDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, nil, fmt.Errorf("get activities for cycle %s: %w", cycleID, err)
	}

	if !response.Success {
		return nil, nil, fmt.Errorf("api error: %s", response.Error)
	}

	now := time.Now().UTC()
	raw := make([]*activity.Activity, 0, len(response.Data))
	var anomalies []shared.Anomaly
	for i := range response.Data {
		a, anoms := c.mapper.ActivityFromDTO(&response.Data[i], now)
		anomalies = append(anomalies, anoms...)
		raw = append(raw, a)
	}
	return raw, anomalies, nil
}

// LogActivity records a new activity against a cycle and returns the stored
// record as the service sees it, normalization anomalies included.
func (c *Client) LogActivity(ctx context.Context, draft *activity.Activity) (*activity.Activity, []shared.Anomaly, error) {
	path := fmt.Sprintf("/cycles/%s/activities", url.PathEscape(draft.CycleID))

	var response APIResponse[ActivityDTO]
	if err := c.doRequest(ctx, http.MethodPost, path, c.mapper.ActivityToCreateDTO(draft), &response); err != nil {
		return nil, nil, fmt.Errorf("log activity for cycle %s: %w", draft.CycleID, err)
	}

	if !response.Success {
		return nil, nil, fmt.Errorf("api error: %s", response.Error)
	}

	stored, anomalies := c.mapper.ActivityFromDTO(&response.Data, time.Now().UTC())
	return stored, anomalies, nil
}

// DeleteActivity removes an activity. XP earned from it is never clawed
// back; the ledger is append-only.
func (c *Client) DeleteActivity(ctx context.Context, activityID string) error {
	path := fmt.Sprintf("/activities/%s", url.PathEscape(activityID))

	// The service answers 204, there is no envelope to check.
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete activity %s: %w", activityID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// PostCompetencyEvidence submits evidence for a competency and returns the
// recomputed progression.
func (c *Client) PostCompetencyEvidence(ctx context.Context, competencyID string, ev competency.Evidence) (*competency.Progress, error) {
	path := fmt.Sprintf("/competencies/%s/evidence", url.PathEscape(competencyID))

	var response APIResponse[CompetencyProgressDTO]
	if err := c.doRequest(ctx, http.MethodPost, path, c.mapper.EvidenceToDTO(ev), &response); err != nil {
		return nil, fmt.Errorf("post evidence for competency %s: %w", competencyID, err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}

	return c.mapper.ProgressFromDTO(&response.Data)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// HealthCheck probes the remote cycle service. It bypasses the circuit
// breaker and retrier so a tripped breaker does not mask recovery.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.doSingleRequest(ctx, http.MethodGet, "/health", nil, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking,
// and retries. The circuit breaker samples the whole retry sequence as one
// outcome, so flapping requests still trip it.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	return c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}

			err := c.doSingleRequest(ctx, method, path, body, result)

			var rateLimitErr *RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
			}
			return err
		})
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body any, result any) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("cycle service request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w: %w", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		return c.mapHTTPError(resp.StatusCode, respBody)
	}

	// Unmarshal response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrRemoteInvalidResponse, err)
		}
	}

	return nil
}

// mapHTTPError translates a 4xx/5xx response into domain error kinds so
// callers can branch on NotFound vs Validation vs transient failures.
func (c *Client) mapHTTPError(status int, body []byte) error {
	var apiErr APIErrorDTO
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr = APIErrorDTO{
			Code:    CodeServerError,
			Message: fmt.Sprintf("status %d", status),
		}
	}

	switch {
	case status == http.StatusNotFound || apiErr.Code == CodeNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, apiErr.Message)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest || apiErr.Code == CodeValidation:
		return fmt.Errorf("%w: %s", shared.ErrValidation, apiErr.Message)
	case status == http.StatusServiceUnavailable || apiErr.Code == CodeUnavailable:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, apiErr.Message)
	case status >= 500:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, &apiErr)
	default:
		return &apiErr
	}
}

// isRetryable classifies errors for the retrier. Validation and not-found
// responses are permanent; throttling, 5xx, and transport errors retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	if errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrNetwork) {
		return true
	}

	errStr := err.Error()
	for _, marker := range []string{"timeout", "connection refused", "temporary", "reset", "EOF"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the cycle service is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response APIResponse[map[string]any]
	err := c.doSingleRequest(ctx, http.MethodGet, "/health", nil, &response)
	return err == nil && response.Success
}

// ClientStatus is a diagnostics snapshot of the client's guards.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker circuitbreaker.Counts
	CircuitState   string
	IsHealthy      bool
}

// Status returns the current status of the client.
func (c *Client) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.Counts(),
		CircuitState:   c.circuitBreaker.State().String(),
		IsHealthy:      c.IsHealthy(ctx),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
