package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAuthentication means GitHub answered as if nobody is logged in.
var ErrAuthentication = errors.New("not authenticated with github")

// StatusError is a non-auth, non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Page is what the listing fetch hands to the extractor.
type Page struct {
	Status int
	URL    string // final URL after redirects
	Body   string
}

type ClientOptions struct {
	BaseURL       string
	SessionCookie string
	UserAgent     string
	Timeout       time.Duration
}

type Client struct {
	baseURL string
	cookie  string
	agent   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cookie:  opts.SessionCookie,
		agent:   opts.UserAgent,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SearchURL builds the pull request listing URL for a search query.
func (c *Client) SearchURL(query string) string {
	return c.baseURL + "/pulls?q=" + url.QueryEscape(query)
}

// FetchPage GETs a listing page with the user's session. 401/403 and redirects
// to the login form are reported as ErrAuthentication.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	c.logger.Debug("fetch page", "url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "user_session", Value: c.cookie})
		req.AddCookie(&http.Cookie{Name: "logged_in", Value: "yes"})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("get %s: status %d: %w", rawURL, resp.StatusCode, ErrAuthentication)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	if isLoginURL(finalURL) {
		return nil, fmt.Errorf("redirected to %s: %w", finalURL, ErrAuthentication)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{Status: resp.StatusCode, URL: finalURL, Body: string(body)}, nil
}

func isLoginURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.TrimRight(u.Path, "/") {
	case "/login", "/session", "/sessions/two-factor":
		return true
	}
	return false
}
