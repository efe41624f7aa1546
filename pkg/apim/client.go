// Copyright 2025, Pulumi Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apim is the typed transport to the API Management control plane:
// token caching, a single retry envelope over every request, transparent
// list pagination and transient/permanent fault classification.
package apim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/util/logging"
)

const (
	apiVersion     = "2024-05-01"
	managementHost = "https://management.azure.com"

	maxRetries     = 5
	initialBackoff = time.Second
	requestTimeout = 120 * time.Second

	// Tokens are refreshed this long before their declared expiry.
	tokenSlack = 60 * time.Second
)

// Client talks to one API Management service instance. All requests carry
// the api-version query parameter and flow through the retry envelope.
type Client struct {
	coords  [3]string // subscription, resource group, service name
	baseURL string
	tokens  TokenSource
	http    *http.Client

	// sleep and backoff are swapped by tests to make retry timing observable.
	sleep   func(time.Duration)
	backoff time.Duration

	cachedToken string
	tokenExpiry time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL points the client at an alternate management endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ApiManagement/service/%s",
			base, c.coords[0], c.coords[1], c.coords[2])
	}
}

// WithSleep substitutes the inter-retry sleep function.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithInitialBackoff overrides the first backoff interval.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// NewClient builds a client for the service instance addressed by the ARM
// coordinate triple.
func NewClient(subscriptionID, resourceGroup, serviceName string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		coords: [3]string{subscriptionID, resourceGroup, serviceName},
		baseURL: fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ApiManagement/service/%s",
			managementHost, subscriptionID, resourceGroup, serviceName),
		tokens:  tokens,
		http:    &http.Client{Timeout: requestTimeout},
		sleep:   time.Sleep,
		backoff: initialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// token returns a cached bearer token, refreshing when within the slack
// window of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.cachedToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.cachedToken, nil
	}
	tok, expiry, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	c.cachedToken, c.tokenExpiry = tok, expiry
	return tok, nil
}

// do issues one logical request through the retry envelope: up to maxRetries
// replays of transient failures, honoring Retry-After when present and
// doubling the backoff each iteration otherwise. The rawURL form is used by
// pagination, where nextLink carries its own query string.
func (c *Client) do(ctx context.Context, method, rawURL string, body interface{}) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, nil, errors.Wrap(err, "encoding request body")
		}
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		tok, err := c.token(ctx)
		if err != nil {
			return 0, nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "building %s %s", method, rawURL)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Content-Type", "application/json")

		logging.V(7).Infof("apim: %s %s (attempt %d)", method, rawURL, attempt+1)
		resp, err := c.http.Do(req)
		if err != nil {
			// Transport I/O failures are transient; replay within the envelope.
			lastErr = errors.Wrapf(err, "%s %s", method, rawURL)
			if attempt < maxRetries {
				c.sleep(backoff)
				backoff *= 2
				continue
			}
			return 0, nil, lastErr
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return 0, nil, errors.Wrapf(readErr, "reading %s %s response", method, rawURL)
		}

		if resp.StatusCode < 400 {
			return resp.StatusCode, data, nil
		}

		apiErr := newError(resp.StatusCode, data, resp.Header.Get("x-ms-request-id"))
		if apiErr.Transient && attempt < maxRetries {
			delay := retryAfter(resp.Header.Get("Retry-After"), backoff)
			logging.V(3).Infof("apim: transient %d on %s %s, retrying in %s", resp.StatusCode, method, rawURL, delay)
			c.sleep(delay)
			backoff *= 2
			continue
		}
		return resp.StatusCode, data, apiErr
	}
	return 0, nil, lastErr
}

// retryAfter interprets a Retry-After header as integer seconds or an HTTP
// date, falling back to the current backoff. Dates resolve to at least one
// second so a stale header never busy-loops.
func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		delay := time.Until(at)
		if delay < time.Second {
			delay = time.Second
		}
		return delay
	}
	return fallback
}

func (c *Client) resourceURL(path string) string {
	return c.baseURL + path + "?api-version=" + apiVersion
}

// Get fetches a single resource as a parsed JSON object.
func (c *Client) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	_, data, err := c.do(ctx, http.MethodGet, c.resourceURL(path), nil)
	if err != nil {
		return nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.Wrapf(err, "parsing GET %s response", path)
	}
	return obj, nil
}

// listPage is the ARM collection envelope.
type listPage struct {
	Value    []map[string]interface{} `json:"value"`
	NextLink string                   `json:"nextLink"`
}

// List fetches a collection, following nextLink until exhausted. The link is
// an absolute URL carrying its own query parameters.
func (c *Client) List(ctx context.Context, path string) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	next := c.resourceURL(path)
	for next != "" {
		if _, err := url.Parse(next); err != nil {
			return nil, errors.Wrapf(err, "parsing nextLink for %s", path)
		}
		_, data, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		var page listPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, errors.Wrapf(err, "parsing LIST %s response", path)
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}
	return items, nil
}

// Put creates or updates a resource, returning the parsed response body or
// nil when the service answers with no content.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	_, data, err := c.do(ctx, http.MethodPut, c.resourceURL(path), body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.Wrapf(err, "parsing PUT %s response", path)
	}
	return obj, nil
}

// Delete removes a resource. A 404 means the resource is already gone and
// counts as success.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, _, err := c.do(ctx, http.MethodDelete, c.resourceURL(path), nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}
