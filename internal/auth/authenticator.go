package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/pscheid92/hitcatch/internal/config"
	"github.com/pscheid92/hitcatch/internal/logging"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// tokenPattern matches the snippet on the final landing page that stores the
// bearer token into the browser's local storage.
var tokenPattern = regexp.MustCompile(`localStorage\.setItem\('radio-auth-token', "(.*?)"\)`)

// Authenticator emulates the browser login flow of the identity provider and
// scrapes a bearer token from the final landing page.
//
// Every ProcessLogin call builds a fresh cookie jar, so concurrent logins for
// different accounts never share session state.
type Authenticator struct {
	consentURL   string
	siteBase     string
	loginBase    string
	clientID     string
	siteKey      string
	timeout      time.Duration
	roundTripper http.RoundTripper // overridable in tests
}

func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{
		consentURL: cfg.ConsentURL,
		siteBase:   cfg.SiteBaseURL,
		loginBase:  cfg.LoginBaseURL,
		clientID:   cfg.ClientID,
		siteKey:    cfg.SiteKey,
		timeout:    cfg.LoginTimeout,
	}
}

// ProcessLogin walks the provider's login choreography and returns the bearer
// token, or the empty string when any step fails. Ordinary authentication
// failure (wrong password, provider downtime) is not an error condition;
// callers interpret an empty result.
func (a *Authenticator) ProcessLogin(ctx context.Context, username, password string) string {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		slog.Error("Failed to create cookie jar", "error", err)
		return ""
	}

	// The SSO and callback steps must observe the 303 responses themselves,
	// so a second client shares the jar but never follows redirects.
	follow := &http.Client{Jar: jar, Timeout: a.timeout, Transport: a.roundTripper}
	noFollow := &http.Client{
		Jar:       jar,
		Timeout:   a.timeout,
		Transport: a.roundTripper,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	log := logging.WithUser(username)

	// Step 1: consent page, sets the session-scoped authId cookie.
	consent := fmt.Sprintf("%s?siteKey=%s&callbackUrl=%s", a.consentURL, a.siteKey,
		url.QueryEscape(a.siteBase+"/privacy/accept?originalUrl=%2f"))
	if _, _, err := a.get(ctx, follow, consent); err != nil {
		log.Debug("Login failed at consent step", "error", err)
		return ""
	}

	authID := cookieValue(jar, a.consentURL, "authId")
	if authID == "" {
		log.Debug("Login failed: no authId cookie after consent step")
		return ""
	}

	// Step 2: accept the cookie policy.
	if _, _, err := a.get(ctx, follow, a.siteBase+"/privacy/accept?originalUrl=%2F&authId="+url.QueryEscape(authID)); err != nil {
		log.Debug("Login failed at cookie policy step", "error", err)
		return ""
	}

	// Step 3: CSRF-scoped cookie.
	csrf := fmt.Sprintf("%s/_csrf/?origin=%s&domain=%s", a.siteBase, url.QueryEscape(a.siteBase), url.QueryEscape(cookieDomain(a.siteBase)))
	if _, _, err := a.get(ctx, follow, csrf); err != nil {
		log.Debug("Login failed at csrf step", "error", err)
		return ""
	}

	// Step 4: SSO authorization ticket. Anything but a 303 aborts the flow.
	authorize := fmt.Sprintf("%s/authorize/sso?client_id=%s&redirect_uri=%s&response_type=code&scope=%s&state=%s",
		a.loginBase, a.clientID,
		url.QueryEscape(a.siteBase+"/login/callback"),
		url.QueryEscape("profile email address phone openid"),
		url.QueryEscape(a.siteBase+"/"))
	resp, _, err := a.get(ctx, noFollow, authorize)
	if err != nil {
		log.Debug("Login failed at sso authorize step", "error", err)
		return ""
	}
	if resp.StatusCode != http.StatusSeeOther {
		log.Debug("Login failed: sso authorize did not redirect", "status", resp.StatusCode)
		return ""
	}

	// Step 5: identify page.
	if _, _, err := a.get(ctx, follow, a.loginBase+"/identify?client_id="+a.clientID); err != nil {
		log.Debug("Login failed at identify step", "error", err)
		return ""
	}

	// Step 6: credentials as a multipart form, endpoint keyed by the
	// base64-encoded username.
	loginURL := fmt.Sprintf("%s/login?client_id=%s&email=%s", a.loginBase, a.clientID,
		url.QueryEscape(base64.StdEncoding.EncodeToString([]byte(username))))
	if err := a.postCredentials(ctx, follow, loginURL, username, password); err != nil {
		log.Debug("Login failed at credentials step", "error", err)
		return ""
	}

	// Step 7: two chained 303 redirects, cookies accumulate at each hop.
	resp, _, err = a.get(ctx, noFollow, a.loginBase+"/authorize/continue/sso?client_id="+a.clientID)
	if err != nil {
		log.Debug("Login failed at sso continue step", "error", err)
		return ""
	}
	hop, err := redirectTarget(resp)
	if err != nil {
		log.Debug("Login failed: sso continue did not redirect", "status", resp.StatusCode)
		return ""
	}

	resp, _, err = a.get(ctx, noFollow, hop)
	if err != nil {
		log.Debug("Login failed at first callback hop", "error", err)
		return ""
	}
	hop, err = redirectTarget(resp)
	if err != nil {
		log.Debug("Login failed: first callback hop did not redirect", "status", resp.StatusCode)
		return ""
	}

	// Step 8: final landing page carries the token marker.
	_, body, err := a.get(ctx, follow, hop)
	if err != nil {
		log.Debug("Login failed at landing page", "error", err)
		return ""
	}

	match := tokenPattern.FindSubmatch(body)
	if match == nil {
		log.Debug("Login failed: no token marker on landing page")
		return ""
	}

	return string(match[1])
}

func (a *Authenticator) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func (a *Authenticator) postCredentials(ctx context.Context, client *http.Client, loginURL, username, password string) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("username", username); err != nil {
		return err
	}
	if err := form.WriteField("password", password); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Referer", loginURL)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("credentials rejected with status %d", resp.StatusCode)
	}
	return nil
}

// redirectTarget resolves the Location header of a 303 response against the
// request URL. Relative redirect targets are valid per RFC 7231.
func redirectTarget(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusSeeOther {
		return "", fmt.Errorf("expected 303, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("redirect without location header")
	}
	target, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return resp.Request.URL.ResolveReference(target).String(), nil
}

func cookieValue(jar http.CookieJar, rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// cookieDomain derives the shared-cookie domain (".example.com") from a base URL.
func cookieDomain(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return "." + u.Hostname()
}
