package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sandevgo/deskbot/internal/config"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
	"github.com/sandevgo/deskbot/pkg/retry"
)

const (
	apiKeyHeader    = "X-API-Key"
	categoriesPath  = "/api/v1/categories"
	ticketsPath     = "/api/v1/tickets"
	maxErrorBodyLen = 512
)

// Client talks to the external ticketing system.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retrier *retry.Retrier
}

func NewClient(cfg *config.HelpdeskConfig) *Client {
	rc := retry.NewDefaultConfig()
	rc.Retryable = isRetryable

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		retrier: retry.NewRetrier(rc),
	}
}

// ListCategories is idempotent and retried on transport errors and 5xx.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var categories []core.Category

	err := c.retrier.Do(ctx, func() error {
		categories = nil
		return c.do(ctx, "list_categories", http.MethodGet, categoriesPath, nil, &categories)
	})
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().Int("count", len(categories)).Msg("loaded helpdesk categories")
	return categories, nil
}

// CreateTicket is not retried: a lost response could otherwise open duplicates.
func (c *Client) CreateTicket(ctx context.Context, t core.Ticket) (string, error) {
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := c.do(ctx, "create_ticket", http.MethodPost, ticketsPath, t, &resp); err != nil {
		return "", err
	}

	id, ok := parseTicketID(resp.ID)
	if !ok {
		return "", &core.ExternalServiceError{Op: "create_ticket", Status: http.StatusOK, Body: "response has no ticket id"}
	}
	return id, nil
}

// parseTicketID accepts the id as a JSON string or number.
func parseTicketID(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), n != ""
	}
	return "", false
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("User-Agent", core.DeskUserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			err = fmt.Errorf("%w: %v", core.ErrTimeout, err)
		}
		return &core.ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	log.FromCtx(ctx).Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("helpdesk call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &core.ExternalServiceError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.ExternalServiceError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ext *core.ExternalServiceError
	if !errors.As(err, &ext) {
		return false
	}
	return ext.Status == 0 || ext.Status >= 500
}
