package pbxapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

const maxErrorBody = 256

// StatusError is returned for non-2xx responses
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d, body: %s", e.Path, e.Code, e.Body)
}

// Client reads queues, agents and call history from the PBX HTTP API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new PBX API client. timeout bounds every request.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "pbxapi").Logger(),
	}
}

// Queues retrieves every queue
func (c *Client) Queues(ctx context.Context) ([]types.QueueRecord, error) {
	body, err := c.get(ctx, "/queues", nil)
	if err != nil {
		return nil, err
	}
	queues, err := decodeList(body, func(q *types.QueueRecord, id string) {
		if q.Queue == "" {
			q.Queue = id
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode queues: %w", err)
	}
	return queues, nil
}

// Agents retrieves every agent
func (c *Client) Agents(ctx context.Context) ([]types.AgentStat, error) {
	body, err := c.get(ctx, "/agents", nil)
	if err != nil {
		return nil, err
	}
	agents, err := decodeList(body, func(a *types.AgentStat, id string) {
		if a.Agent == "" {
			a.Agent = id
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return agents, nil
}

// Calls retrieves one page of call history. Pages start at 1.
func (c *Client) Calls(ctx context.Context, page int) (types.CallPage, error) {
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(types.CallPageSize))

	body, err := c.get(ctx, "/calls", query)
	if err != nil {
		return types.CallPage{}, err
	}
	result, err := decodeCallPage(body, page)
	if err != nil {
		return types.CallPage{}, fmt.Errorf("decode calls: %w", err)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", path, err)
	}

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("pbx request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(body)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: excerpt}
	}
	return body, nil
}
