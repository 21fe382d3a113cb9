package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// Config holds configuration for the relay client.
type Config struct {
	// BaseURL is the relay root, e.g. http://127.0.0.1:8787.
	BaseURL string

	// Player is the account every write acts as.
	Player ledger.Address

	// MaxRetries is the maximum number of retry attempts for retryable errors.
	// Defaults to 3 if zero.
	MaxRetries int

	// BaseRetryDelay is the initial delay before the first retry.
	// Defaults to 250ms if zero.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff delay.
	// Defaults to 4 seconds if zero.
	MaxRetryDelay time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	HTTPClient *http.Client

	Logger *log.Logger
}

// Client is a ledger.Ledger backed by a relay.
type Client struct {
	config Config
	http   *http.Client
	logger *log.Logger
}

var (
	_ ledger.Ledger          = (*Client)(nil)
	_ ledger.CountersReader  = (*Client)(nil)
	_ ledger.StandingsReader = (*Client)(nil)
)

// NewClient creates a relay client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 250 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 4 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{config: cfg, http: httpClient, logger: logger}
}

// --- Core request methods ---

// doRequest sends one request and decodes a 2xx body into out.
func (c *Client) doRequest(ctx context.Context, method, path, idemKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if c.config.Player != "" {
		req.Header.Set(HeaderPlayer, string(c.config.Player))
	}
	if idemKey != "" {
		req.Header.Set(HeaderIdempotency, idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			if sentinel := ledger.FromCode(eb.Code); sentinel != nil {
				return fmt.Errorf("remote: %s: %w", eb.Message, sentinel)
			}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("remote: invalid response JSON: %w", err)
		}
	}
	return nil
}

// doRequestWithRetry retries transport failures and retryable statuses.
// Writes reuse one idempotency key across retries so a request that
// reached the ledger before its response was lost is not applied twice.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body, out any) error {
	idemKey := ""
	if method != http.MethodGet {
		idemKey = ledger.BatchKey(ctx)
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doRequest(ctx, method, path, idemKey, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if ledger.IsRejection(err) || ctx.Err() != nil {
			return err
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.IsRetryable() {
			return err
		}
		c.logger.Debug("relay call failed, retrying", "path", path, "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("remote: max retries exceeded: %w", lastErr)
}

// retryDelay calculates the backoff delay for a given attempt number.
func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.config.BaseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > c.config.MaxRetryDelay {
		delay = c.config.MaxRetryDelay
	}
	return delay
}

func roundPath(round ledger.RoundID, suffix string) string {
	return "/api/v1/rounds/" + strconv.FormatUint(uint64(round), 10) + suffix
}

func playerPath(round ledger.RoundID, player ledger.Address, suffix string) string {
	return roundPath(round, "/players/"+url.PathEscape(string(player))+suffix)
}

// --- ledger.Ledger ---

func (c *Client) Account() ledger.Address { return c.config.Player }

func (c *Client) StartEntry(ctx context.Context, round ledger.RoundID, payment decimal.Decimal) (uint32, error) {
	var resp entryResponse
	err := c.doRequestWithRetry(ctx, http.MethodPost, roundPath(round, "/entries"), entryRequest{Payment: payment}, &resp)
	return resp.Entry, err
}

func (c *Client) StartAttempt(ctx context.Context, round ledger.RoundID) error {
	return c.doRequestWithRetry(ctx, http.MethodPost, roundPath(round, "/attempts"), struct{}{}, nil)
}

func (c *Client) EndAttempt(ctx context.Context, round ledger.RoundID) error {
	return c.doRequestWithRetry(ctx, http.MethodPost, roundPath(round, "/attempts/end"), struct{}{}, nil)
}

func (c *Client) SubmitScoreBatch(ctx context.Context, round ledger.RoundID, amount uint64) error {
	return c.doRequestWithRetry(ctx, http.MethodPost, roundPath(round, "/scores"), scoreRequest{Amount: amount}, nil)
}

func (c *Client) ObstaclePassed(ctx context.Context, round ledger.RoundID, player ledger.Address, entry, obstacleCount uint32, delta uint64) error {
	req := obstacleRequest{Player: player, Entry: entry, ObstacleCount: obstacleCount, Delta: delta}
	return c.doRequestWithRetry(ctx, http.MethodPost, roundPath(round, "/obstacles"), req, nil)
}

func (c *Client) SetOperator(ctx context.Context, operator ledger.Address, allowed bool) error {
	return c.doRequestWithRetry(ctx, http.MethodPost, "/api/v1/operators", operatorRequest{Operator: operator, Allowed: allowed}, nil)
}

func (c *Client) CreateRound(ctx context.Context, entryFee decimal.Decimal, duration time.Duration) (ledger.RoundID, error) {
	var resp roundIDResponse
	req := createRoundRequest{EntryFee: entryFee, DurationSec: int64(duration / time.Second)}
	err := c.doRequestWithRetry(ctx, http.MethodPost, "/api/v1/rounds", req, &resp)
	return resp.ID, err
}

func (c *Client) FinalizeRound(ctx context.Context, round ledger.RoundID) error {
	return c.doRequestWithRetry(ctx, http.MethodPost, roundPath(round, "/finalize"), struct{}{}, nil)
}

// Counters reads every counter in one request.
func (c *Client) Counters(ctx context.Context, round ledger.RoundID, player ledger.Address) (ledger.Counters, error) {
	var out ledger.Counters
	err := c.doRequestWithRetry(ctx, http.MethodGet, playerPath(round, player, "/counters"), nil, &out)
	return out, err
}

func (c *Client) AttemptsUsed(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint32, error) {
	cs, err := c.Counters(ctx, round, player)
	return cs.AttemptsUsed, err
}

func (c *Client) CurrentAttemptScore(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	cs, err := c.Counters(ctx, round, player)
	return cs.CurrentAttemptScore, err
}

func (c *Client) TotalScore(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	cs, err := c.Counters(ctx, round, player)
	return cs.TotalScore, err
}

func (c *Client) EntryIndex(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint32, error) {
	cs, err := c.Counters(ctx, round, player)
	return cs.EntryIndex, err
}

func (c *Client) AttemptActive(ctx context.Context, round ledger.RoundID, player ledger.Address) (bool, error) {
	cs, err := c.Counters(ctx, round, player)
	return cs.AttemptActive, err
}

func (c *Client) Score(ctx context.Context, round ledger.RoundID, player ledger.Address) (uint64, error) {
	var out scoreResponse
	err := c.doRequestWithRetry(ctx, http.MethodGet, playerPath(round, player, "/score"), nil, &out)
	return out.Score, err
}

func (c *Client) Round(ctx context.Context, round ledger.RoundID) (ledger.Round, error) {
	var out ledger.Round
	err := c.doRequestWithRetry(ctx, http.MethodGet, roundPath(round, ""), nil, &out)
	return out, err
}

func (c *Client) LatestRound(ctx context.Context) (ledger.RoundID, bool, error) {
	var out roundIDResponse
	err := c.doRequestWithRetry(ctx, http.MethodGet, "/api/v1/rounds/latest", nil, &out)
	return out.ID, out.Found, err
}

func (c *Client) Players(ctx context.Context, round ledger.RoundID) ([]ledger.Address, error) {
	var out []ledger.Address
	err := c.doRequestWithRetry(ctx, http.MethodGet, roundPath(round, "/players"), nil, &out)
	return out, err
}

func (c *Client) Standings(ctx context.Context, round ledger.RoundID) ([]ledger.Standing, error) {
	var out []ledger.Standing
	err := c.doRequestWithRetry(ctx, http.MethodGet, roundPath(round, "/standings"), nil, &out)
	return out, err
}

// EventsSince fetches retained events after the given sequence number.
func (c *Client) EventsSince(ctx context.Context, after uint64, limit int) ([]ledger.Event, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []ledger.Event
	err := c.doRequestWithRetry(ctx, http.MethodGet, "/api/v1/events?"+q.Encode(), nil, &out)
	return out, err
}
