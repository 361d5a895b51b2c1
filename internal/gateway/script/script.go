// Package script talks to the spreadsheet's web-app endpoint: one URL that
// dispatches on an "action" query parameter for reads and on an "action"
// JSON field for writes.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"costledger/internal/core"
	"costledger/internal/gateway"
	applog "costledger/internal/log"
)

// maxDrain bounds how much of a write response is drained before closing.
const maxDrain = 1 << 20

// defaultMaxBody bounds a read response. Anything longer is a load error.
const defaultMaxBody = 16 << 20

var errBodyTooLarge = errors.New("response body too large")

type Client struct {
	endpoint *url.URL
	http     *http.Client
	maxBody  int64
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxBody changes the read response limit.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// New builds a client for endpoint, e.g. https://script.google.com/macros/s/<id>/exec.
func New(endpoint string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("missing gateway endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse gateway endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid gateway endpoint scheme %q", u.Scheme)
	}
	c := &Client{endpoint: u, http: newHTTPClientWithPooling(timeout), maxBody: defaultMaxBody}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) GetValidation(ctx context.Context) (core.Vocabulary, error) {
	var v core.Vocabulary
	if err := c.get(ctx, gateway.ActionGetValidation, nil, &v); err != nil {
		return core.Vocabulary{}, err
	}
	return v, nil
}

func (c *Client) GetCostSheets(ctx context.Context) ([]core.CostSheet, error) {
	var out []core.CostSheet
	if err := c.get(ctx, gateway.ActionGetCostSheets, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCostSheetDetails(ctx context.Context, costSheetID string) ([]core.LineItem, error) {
	var out []core.LineItem
	params := url.Values{"costSheetId": {costSheetID}}
	if err := c.get(ctx, gateway.ActionGetCostSheetDetail, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCostSheet(ctx context.Context, cs core.CostSheet) error {
	return c.post(ctx, gateway.ActionCreateCostSheet, cs)
}

func (c *Client) AddLineItem(ctx context.Context, li core.LineItem) error {
	return c.post(ctx, gateway.ActionAddLineItem, li)
}

func (c *Client) SoftDeleteLineItem(ctx context.Context, costSheetID, particular string) error {
	return c.post(ctx, gateway.ActionSoftDeleteLineItem, gateway.DeleteKey{CostSheetID: costSheetID, Particular: particular})
}

func (c *Client) get(ctx context.Context, action string, params url.Values, out any) error {
	u := *c.endpoint
	q := u.Query()
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", action, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Gateway read",
		applog.FieldComponent, applog.ComponentGateway,
		applog.FieldAction, action,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", action, err)
	}
	if int64(len(body)) > c.maxBody {
		return fmt.Errorf("%s: %w (limit %d bytes)", action, errBodyTooLarge, c.maxBody)
	}
	return decodeEnvelope(action, body, out)
}

// decodeEnvelope accepts a bare payload, {"data": payload} or
// {"error": "..."} from the script.
func decodeEnvelope(action string, body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("%s: empty response", action)
	}
	if body[0] == '{' {
		var env struct {
			Data  json.RawMessage `json:"data"`
			Error any             `json:"error"`
		}
		if err := json.Unmarshal(body, &env); err == nil {
			if env.Error != nil && env.Error != false && env.Error != "" {
				return fmt.Errorf("%s: backend error: %v", action, env.Error)
			}
			if len(env.Data) > 0 {
				body = env.Data
			}
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: malformed payload: %w", action, err)
	}
	return nil
}

// post issues a blind write. The body is sent as text/plain, the only form
// the script accepts cross-origin without a preflight, and the response is
// drained unread: success is never confirmed here.
func (c *Client) post(ctx context.Context, action string, data any) error {
	payload, err := json.Marshal(map[string]any{"action": action, "data": data})
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", action, err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	resp.Body.Close()
	return nil
}

var _ gateway.Gateway = (*Client)(nil)
