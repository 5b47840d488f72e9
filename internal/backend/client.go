/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagecraft/internal/storage"
)

// Client talks to the publishing API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configure sets the request timeout; insecure skips TLS verification for
// self-hosted backends with private certificates.
func (c *Client) Configure(timeout time.Duration, insecure bool) *Client {
	if timeout > 0 {
		c.client.Timeout = timeout
	}
	if insecure {
		c.client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec
	}
	return c
}

// APIError is a non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %d %s", e.Status, e.Message)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// IssueToken asks the server for a token for subject.
func (c *Client) IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, time.Time, error) {
	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	body := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &out); err != nil {
		return "", time.Time{}, err
	}
	return out.Token, out.ExpiresAt, nil
}

// Publish uploads req as the next version of slug.
func (c *Client) Publish(ctx context.Context, slug string, req PublishRequest) (PublishResult, error) {
	var res PublishResult
	if !ValidSlug(slug) {
		return res, fmt.Errorf("invalid slug %q", slug)
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/sites/"+url.PathEscape(slug)+"/versions", req, &res)
	return res, err
}

// ListSites returns the published sites.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var list []Site
	if err := c.doJSON(ctx, http.MethodGet, "/api/sites", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Latest returns the newest version of slug.
func (c *Client) Latest(ctx context.Context, slug string) (PublishResult, error) {
	var res PublishResult
	err := c.doJSON(ctx, http.MethodGet, "/api/sites/"+url.PathEscape(slug), nil, &res)
	return res, err
}

// Search runs an element search on the latest version of slug.
func (c *Client) Search(ctx context.Context, slug string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if len(q.Types) > 0 {
		v.Set("type", strings.Join(q.Types, ","))
	}
	if q.PageID != "" {
		v.Set("page", q.PageID)
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", fmt.Sprint(q.Offset))
	}
	path := "/api/sites/" + url.PathEscape(slug) + "/search"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}
	var res []storage.SearchResult
	err := c.doJSON(ctx, http.MethodGet, path, nil, &res)
	return res, err
}
