package intentflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the IntentFlow Chain REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// IntentSubmission represents the payload required to execute or enqueue an
// intent.
type IntentSubmission struct {
	Session string `json:"session_id"`
	Intent  string `json:"intent"`
	Async   bool   `json:"async,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// Report mirrors the final report returned for a successfully executed intent.
type Report struct {
	Session          string `json:"session"`
	Intent           string `json:"intent"`
	Chain            string `json:"chain,omitempty"`
	Action           string `json:"action"`
	Amount           string `json:"amount"`
	Token            string `json:"token"`
	AllowanceOutcome string `json:"allowance_outcome"`
	ApprovalTx       string `json:"approval_tx,omitempty"`
	TxHash           string `json:"tx_hash"`
	ExplorerURL      string `json:"explorer_url"`
	BlockNumber      string `json:"block_number,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

// Run mirrors an asynchronous execution record.
type Run struct {
	ID        string  `json:"id"`
	Session   string  `json:"session"`
	Intent    string  `json:"intent"`
	Status    string  `json:"status"`
	Stage     string  `json:"stage,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	ErrorCode string  `json:"error_code,omitempty"`
	Report    *Report `json:"report,omitempty"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// RunStats aggregates run counts by status.
type RunStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("intentflow api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("intentflow api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the IntentFlow Chain API. When
// httpClient is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// ExecuteIntent runs an intent synchronously and returns the final report.
func (c *Client) ExecuteIntent(ctx context.Context, session, intent string) (Report, error) {
	var report Report
	submission := IntentSubmission{Session: session, Intent: intent}
	if err := c.post(ctx, "/api/v1/intents", submission, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// SubmitIntent enqueues an intent for asynchronous execution.
func (c *Client) SubmitIntent(ctx context.Context, submission IntentSubmission) (Run, error) {
	submission.Async = true
	var record Run
	if err := c.post(ctx, "/api/v1/intents", submission, &record); err != nil {
		return Run{}, err
	}
	return record, nil
}

// GetRun fetches a run by identifier.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	var record Run
	endpoint := fmt.Sprintf("/api/v1/runs?id=%s", url.QueryEscape(runID))
	if err := c.get(ctx, endpoint, &record); err != nil {
		return Run{}, err
	}
	return record, nil
}

// GetStats fetches aggregate run statistics.
func (c *Client) GetStats(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if err := c.get(ctx, "/api/v1/runs/stats", &stats); err != nil {
		return RunStats{}, err
	}
	return stats, nil
}

// WaitForRun polls until the run reaches a terminal status or the context is
// cancelled.
func (c *Client) WaitForRun(ctx context.Context, runID string, interval time.Duration) (Run, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		record, err := c.GetRun(ctx, runID)
		if err != nil {
			return Run{}, err
		}
		if record.Status == "succeeded" || record.Status == "failed" {
			return record, nil
		}
		select {
		case <-ctx.Done():
			return Run{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr APIError
		apiErr.StatusCode = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
