package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultRPCTimeout   = 5 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryInitial = 200 * time.Millisecond
)

// RetryableError is returned for HTTP 429 and 5xx responses.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("rpc node returned %d: %s", e.StatusCode, e.Message)
}

// RPCError is a JSON-RPC level error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCClient is a minimal JSON-RPC 2.0 client shared by the ledger backends.
type RPCClient struct {
	Endpoint     string
	HTTPClient   *http.Client
	MaxRetries   int
	RetryInitial time.Duration

	nextID atomic.Uint64
}

func NewRPCClient(endpoint string, timeout time.Duration, maxRetries int) (*RPCClient, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("invalid rpc endpoint %q", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RPCClient{
		Endpoint:     endpoint,
		HTTPClient:   &http.Client{Timeout: timeout},
		MaxRetries:   maxRetries,
		RetryInitial: DefaultRetryInitial,
	}, nil
}

// Call invokes method and decodes the result into out. Rate limits and node
// failures are retried with exponential backoff.
func (c *RPCClient) Call(ctx context.Context, method string, out any, params ...any) error {
	backoff := c.RetryInitial
	for attempt := 0; ; attempt++ {
		err := c.callOnce(ctx, method, out, params)
		if err == nil {
			return nil
		}
		var retryable *RetryableError
		if !errors.As(err, &retryable) || attempt >= c.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *RPCClient) callOnce(ctx context.Context, method string, out any, params []any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RetryableError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
