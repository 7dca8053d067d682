package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gift-concierge/internal/domain"
)

const (
	chatPath       = "/chat"
	clickPath      = "/analytics/click"
	conversionPath = "/analytics/convert"
)

// tokenPayload is the expected JSON shape stored in SSM for the backend token.
type tokenPayload struct {
	Token string `json:"token"`
}

// statusResponse is the acknowledgement returned by the analytics endpoints.
type statusResponse struct {
	Status string `json:"status"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx backend responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("recommend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the gift recommendation backend: the conversational chat
// endpoint and the click/conversion analytics endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	tokenParam string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithParamStoreToken makes the client send a bearer token read from
// {paramPrefix}/backend-token on every request. Reuse is left to the getter's
// cache so a failed lookup is retried on the next call.
func WithParamStoreToken(getter Getter, paramPrefix string) Option {
	return func(c *Client) {
		c.getter = getter
		c.tokenParam = strings.TrimRight(strings.TrimSpace(paramPrefix), "/") + "/backend-token"
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("recommend: base url must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.getter == nil && c.tokenParam != "" {
		return nil, errors.New("recommend: paramstore getter must not be nil")
	}
	if c.tokenParam == "/backend-token" {
		return nil, errors.New("recommend: parameter prefix must not be empty")
	}
	return c, nil
}

// Chat sends one conversational round to the backend.
func (c *Client) Chat(ctx context.Context, in domain.ChatRequest) (domain.ChatResponse, error) {
	if strings.TrimSpace(in.Message) == "" {
		return domain.ChatResponse{}, errors.New("recommend: message must not be empty")
	}
	if in.History == nil {
		in.History = []domain.ChatMessage{}
	}

	raw, err := c.postJSON(ctx, chatPath, in)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("recommend: chat request failed: %w", err)
	}

	var out domain.ChatResponse
	if decErr := json.Unmarshal(raw, &out); decErr != nil {
		return domain.ChatResponse{}, fmt.Errorf("recommend: decode response: %w", decErr)
	}
	products, err := normalizeProducts(out.Products)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	out.Products = products
	out.SessionID = strings.TrimSpace(out.SessionID)
	return out, nil
}

// RecordClick posts a product click to the backend analytics endpoint.
func (c *Client) RecordClick(ctx context.Context, ev domain.ClickEvent) error {
	if strings.TrimSpace(ev.SessionID) == "" {
		return errors.New("recommend: click session id must not be empty")
	}
	return c.postAnalytics(ctx, clickPath, ev)
}

// RecordConversion marks the session as converted on the backend.
func (c *Client) RecordConversion(ctx context.Context, ev domain.ConversionEvent) error {
	if strings.TrimSpace(ev.SessionID) == "" {
		return errors.New("recommend: conversion session id must not be empty")
	}
	return c.postAnalytics(ctx, conversionPath, ev)
}

func (c *Client) postAnalytics(ctx context.Context, path string, body any) error {
	raw, err := c.postJSON(ctx, path, body)
	if err != nil {
		return fmt.Errorf("recommend: analytics request failed: %w", err)
	}
	var ack statusResponse
	if decErr := json.Unmarshal(raw, &ack); decErr != nil {
		return fmt.Errorf("recommend: decode analytics response: %w", decErr)
	}
	if ack.Status != "ok" {
		return fmt.Errorf("recommend: analytics status %q", ack.Status)
	}
	return nil
}

// normalizeProducts rejects products without a sku or with a negative price
// and keeps only the first occurrence of a repeated sku.
func normalizeProducts(in []domain.Product) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, p := range in {
		p.Sku = strings.TrimSpace(p.Sku)
		if p.Sku == "" {
			return nil, fmt.Errorf("recommend: product %d has no sku", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("recommend: product %q has negative price", p.Sku)
		}
		if _, dup := seen[p.Sku]; dup {
			continue
		}
		seen[p.Sku] = struct{}{}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		out = append(out, p)
	}
	return out, nil
}

func endpointURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// resolveToken returns the bearer token, or "" when no getter is configured.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.getter == nil {
		return "", nil
	}
	return fetchTokenFromParamStore(ctx, c.getter, c.tokenParam)
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := endpointURL(c.baseURL, path)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.doJSONRequest(req, url)
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchTokenFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("recommend: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("recommend: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("recommend: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("recommend: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("recommend: backend token is empty")
	}
	return tp.Token, nil
}
