// Package client is a typed HTTP client for the bridge endpoints, used by the
// dashboard monitor and the controller simulator.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dchome/internal/wire"
)

type Client struct {
	base *url.URL
	hc   *http.Client
	cbor bool
}

type Option func(*Client)

// WithCBOR просит ответы в application/cbor.
func WithCBOR() Option { return func(c *Client) { c.cbor = true } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, hc: &http.Client{Timeout: timeout}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// StatusError — ответ не 2xx; Body разобран, если сервер прислал ErrorResponse.
type StatusError struct {
	StatusCode int
	Body       wire.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.Body.Code, e.Body.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// endpoint: path уже экранирован (сегменты через url.PathEscape).
func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	u.Path, _ = url.PathUnescape(u.RawPath)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(req *http.Request, out any) error {
	if c.cbor {
		req.Header.Set("Accept", wire.ContentTypeCBOR)
	} else {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode/100 != 2 {
		se := &StatusError{StatusCode: resp.StatusCode}
		_ = wire.Unmarshal(ct, body, &se.Body)
		return se
	}
	if err := wire.Unmarshal(ct, body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// Snapshot adds a cache-busting t parameter, the way the dashboard does.
func (c *Client) Snapshot(ctx context.Context, deviceID string) (wire.SnapshotResponse, error) {
	q := url.Values{"t": {strconv.FormatInt(time.Now().UnixMilli(), 10)}}
	if deviceID != "" {
		q.Set("id", deviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/snapshot", q), nil)
	if err != nil {
		return wire.SnapshotResponse{}, err
	}
	var out wire.SnapshotResponse
	err = c.do(req, &out)
	return out, err
}

func (c *Client) Pull(ctx context.Context, deviceID string) (wire.PullResponse, error) {
	var out wire.PullResponse
	err := c.postForm(ctx, "/pull", url.Values{"id": {deviceID}}, &out)
	return out, err
}

func (c *Client) Push(ctx context.Context, form url.Values) (wire.PushResponse, error) {
	var out wire.PushResponse
	err := c.postForm(ctx, "/push", form, &out)
	return out, err
}

func (c *Client) SetOutput(ctx context.Context, deviceID, channel, state string) (wire.ControlResponse, error) {
	var out wire.ControlResponse
	err := c.postForm(ctx, "/control", url.Values{
		"action": {wire.ActionControlDevice},
		"id":     {deviceID},
		"device": {channel},
		"state":  {state},
	}, &out)
	return out, err
}

func (c *Client) SetMode(ctx context.Context, deviceID, mode string) (wire.ControlResponse, error) {
	var out wire.ControlResponse
	err := c.postForm(ctx, "/control", url.Values{
		"action": {wire.ActionChangeMode},
		"id":     {deviceID},
		"mode":   {mode},
	}, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, deviceID string, limit int) (wire.HistoryResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/v1/devices/"+url.PathEscape(deviceID)+"/history", q), nil)
	if err != nil {
		return wire.HistoryResponse{}, err
	}
	var out wire.HistoryResponse
	err = c.do(req, &out)
	return out, err
}
