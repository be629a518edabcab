// Package forum implements the phpBB forum scanner of spec §4.12: form-based
// login with CSRF token extraction, session validation via the control-panel
// logout link, paginated topic listing, and per-topic attachment/preview
// extraction.
package forum

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
)

// RequestDelay throttles requests to a single forum (spec §4.12 rate
// limiting), mirroring the REQUEST_DELAY pacing in the Python original this
// scanner is derived from.
const RequestDelay = 1500 * time.Millisecond

// Session holds the cookies phpBB issued after a successful login, plus
// their expiry time.
type Session struct {
	Cookies   map[string]string
	ExpiresAt time.Time
}

// Client talks to a single phpBB forum over plain HTTP with a cookie jar.
type Client struct {
	BaseURL string

	httpClient  *http.Client
	jar         http.CookieJar
	lastRequest time.Time
}

// NewClient builds a Client for baseURL (e.g. "https://hex3dpatreon.com").
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("forum: build cookie jar: %w", err)
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second, Jar: jar},
		jar:        jar,
	}, nil
}

func (c *Client) throttle(ctx context.Context) error {
	if !c.lastRequest.IsZero() {
		if wait := RequestDelay - time.Since(c.lastRequest); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// LoadCookies seeds the client's jar from a previously-stored session so a
// valid session survives process restarts without re-logging in.
func (c *Client) LoadCookies(cookies map[string]string) error {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	var kv []*http.Cookie
	for name, value := range cookies {
		kv = append(kv, &http.Cookie{Name: name, Value: value})
	}
	c.jar.SetCookies(base, kv)
	return nil
}

// Cookies returns the jar's current cookies for base, for persisting a
// Session.
func (c *Client) Cookies() map[string]string {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil
	}
	out := map[string]string{}
	for _, ck := range c.jar.Cookies(base) {
		out[ck.Name] = ck.Value
	}
	return out
}

func (c *Client) get(ctx context.Context, path string) (*goquery.Document, int, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, polyerrors.NewTransient(err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("forum: parse %s: %w", path, err)
	}
	return doc, resp.StatusCode, nil
}

// Login authenticates against /ucp.php?mode=login, following the phpBB
// CSRF-protected form-post flow: load the login page, copy every hidden
// input (creation_time, form_token, sid) into the submitted form, and treat
// a 302 redirect (or any cookies set on a non-redirect response) as success.
func (c *Client) Login(ctx context.Context, username, password string) error {
	loginPath := "ucp.php?mode=login"
	doc, status, err := c.get(ctx, loginPath)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return polyerrors.NewAuth(fmt.Errorf("forum: login page returned status %d", status))
	}

	form := doc.Find("form#login")
	if form.Length() == 0 {
		form = doc.Find(`form[action*="mode=login"]`)
	}
	if form.Length() == 0 {
		return polyerrors.NewAuth(fmt.Errorf("forum: could not find login form"))
	}

	values := url.Values{
		"username": {username},
		"password": {password},
		"login":    {"Login"},
		"redirect": {"./index.php"},
	}
	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := s.Attr("value")
		values.Set(name, value)
	})

	if err := c.throttle(ctx); err != nil {
		return err
	}

	noRedirect := &http.Client{
		Timeout: 30 * time.Second,
		Jar:     c.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+loginPath, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.BaseURL+"/"+loginPath)

	resp, err := noRedirect.Do(req)
	if err != nil {
		return polyerrors.NewTransient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusFound {
		logger.Info(ctx, "forum_login_success", "base_url", c.BaseURL, "username", username)
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "login_error_attempts"):
		return polyerrors.NewAuth(fmt.Errorf("forum: too many login attempts"))
	case strings.Contains(lower, "login_error_password"), strings.Contains(lower, "incorrect password"):
		return polyerrors.NewAuth(fmt.Errorf("forum: invalid password"))
	case strings.Contains(lower, "login_error_username"), strings.Contains(lower, "incorrect username"):
		return polyerrors.NewAuth(fmt.Errorf("forum: invalid username"))
	}

	if errDoc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body))); err == nil {
		if errText := strings.TrimSpace(errDoc.Find("div.error").First().Text()); errText != "" {
			return polyerrors.NewAuth(fmt.Errorf("forum: login failed: %s", errText))
		}
	}

	if len(c.Cookies()) > 0 {
		logger.Info(ctx, "forum_login_success_no_redirect", "base_url", c.BaseURL, "username", username)
		return nil
	}

	return polyerrors.NewAuth(fmt.Errorf("forum: login failed, no session cookies received"))
}

// ValidateSession reports whether the jar's current cookies still identify
// an authenticated session, by checking for a logout link on /ucp.php.
func (c *Client) ValidateSession(ctx context.Context) (bool, error) {
	doc, status, err := c.get(ctx, "ucp.php")
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, nil
	}
	valid := false
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "ucp.php") && strings.Contains(href, "mode=logout") {
			valid = true
			return false
		}
		return true
	})
	return valid, nil
}

// EnsureSession validates the loaded cookies and re-logs in when the
// session is absent or expired (spec §4.12: "session is refreshed when
// expired or invalid").
func (c *Client) EnsureSession(ctx context.Context, username, password string) error {
	ok, err := c.ValidateSession(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return c.Login(ctx, username, password)
}
