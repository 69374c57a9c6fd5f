// Package draftclient runs the wizard against a remote persistence service over
// its REST API.
package draftclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"guard-backend/internal/wizard"
)

const maxBody = 1 << 20

// Client implements wizard.DraftStore over HTTP.
type Client struct {
	base   string
	http   *http.Client
	schema *wizard.Schema
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New returns a client for the service at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid report api url %q", baseURL)
	}
	c := &Client{
		base:   u.String(),
		http:   &http.Client{Timeout: 15 * time.Second},
		schema: wizard.DefaultSchema(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type errorBody struct {
	Error string            `json:"error"`
	Code  string            `json:"code"`
	Step  string            `json:"step"`
	Field map[string]string `json:"fields"`
}

type createBody struct {
	ResponseID string `json:"response_id"`
	Message    string `json:"message"`
}

func (c *Client) Create(ctx context.Context) (*wizard.Report, error) {
	var created createBody
	if err := c.do(ctx, http.MethodPost, "/reports", "", nil, &created); err != nil {
		return nil, err
	}
	if created.ResponseID == "" {
		return nil, wizard.Unavailable(errors.New("empty response id"), "create")
	}
	return c.Get(ctx, created.ResponseID)
}

func (c *Client) Get(ctx context.Context, responseID string) (*wizard.Report, error) {
	var r wizard.Report
	if err := c.do(ctx, http.MethodGet, "/reports/"+url.PathEscape(responseID), responseID, nil, &r); err != nil {
		return nil, err
	}
	return c.normalize(&r), nil
}

func (c *Client) PatchSection(ctx context.Context, responseID string, step wizard.Step, values wizard.Values) (*wizard.Report, error) {
	path := "/reports/" + url.PathEscape(responseID) + "/" + url.PathEscape(string(step))
	var r wizard.Report
	if err := c.do(ctx, http.MethodPatch, path, responseID, values.ToJSON(), &r); err != nil {
		return nil, err
	}
	return c.normalize(&r), nil
}

func (c *Client) Submit(ctx context.Context, responseID string) (*wizard.Report, error) {
	var r wizard.Report
	if err := c.do(ctx, http.MethodPost, "/reports/"+url.PathEscape(responseID)+"/submit", responseID, nil, &r); err != nil {
		return nil, err
	}
	return c.normalize(&r), nil
}

func (c *Client) normalize(r *wizard.Report) *wizard.Report {
	if r.Sections == nil {
		r.Sections = map[string]wizard.Values{}
	}
	for name, values := range r.Sections {
		r.Sections[name] = c.schema.Normalize(wizard.Step(name), values)
	}
	return r
}

func (c *Client) do(ctx context.Context, method, path, responseID string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return wizard.Unavailable(err, method+" "+path)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return wizard.Unavailable(err, method+" "+path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wizard.Unavailable(err, method+" "+path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return wizard.Unavailable(err, method+" "+path)
	}

	if resp.StatusCode >= 300 {
		return c.statusError(resp.StatusCode, data, responseID, method+" "+path)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return wizard.Unavailable(fmt.Errorf("decode response: %w", err), method+" "+path)
	}
	return nil
}

func (c *Client) statusError(status int, data []byte, responseID, op string) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)

	switch eb.Code {
	case wizard.ErrCodeNotFound:
		return wizard.NotFound(responseID)
	case wizard.ErrCodeFrozen:
		return wizard.Frozen(responseID)
	case wizard.ErrCodeIncomplete:
		return wizard.Incomplete(responseID, wizard.Step(eb.Step))
	case wizard.ErrCodePayloadInvalid:
		return wizard.PayloadInvalid(wizard.Step(eb.Step), errors.New(eb.Error))
	case wizard.ErrCodeSectionInvalid:
		return wizard.SectionInvalid(wizard.Step(eb.Step), eb.Field)
	}

	switch status {
	case http.StatusNotFound:
		return wizard.NotFound(responseID)
	case http.StatusConflict:
		return wizard.Frozen(responseID)
	}
	return wizard.Unavailable(fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(eb.Error)), op)
}
