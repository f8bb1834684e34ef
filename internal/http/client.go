package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/siteprint/siteprint/internal/types"
)

// Profile pins a browser identity for the plain-HTTP side channel. Unlike a
// general scraper there is a single profile, no rotation: the side channel
// fronts a live Chrome session and must present the same identity the
// browser does.
type Profile struct {
	Name            string
	ClientID        utls.ClientHelloID
	UserAgent       string
	Accept          string
	AcceptLanguage  string
	SecChUA         string
	SecChUAPlatform string
	SecChUAMobile   string
}

var chromeProfile = Profile{
	Name:            "Chrome_131",
	ClientID:        utls.HelloChrome_131,
	UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	AcceptLanguage:  "en-US,en;q=0.9",
	SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
	SecChUAPlatform: `"Windows"`,
	SecChUAMobile:   "?0",
}

// Client is an HTTP client with the pinned Chrome profile applied to every
// request. It serves the two requests the browser session cannot: the
// robots.txt fetch and the pre-navigation cookie check.
type Client struct {
	hc      *http.Client
	profile Profile
}

// NewClient builds the side-channel client.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	// Note: a bit-exact utls ClientHello needs a custom dialer; the standard
	// handshake with the profile's header set is close enough for two
	// requests against the session's own host.

	return &Client{
		hc:      &http.Client{Timeout: timeout, Transport: transport},
		profile: chromeProfile,
	}
}

// Get performs a GET with the browser profile's headers.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	c.ApplyHeaders(req)
	return c.hc.Do(req)
}

// Preflight fetches the site root with the cookie set attached and returns
// the final URL after redirects plus the status code, so the caller can spot
// an expired session before the browser ever starts.
func (c *Client) Preflight(ctx context.Context, siteURL string, cookies []types.Cookie) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build preflight request: %w", err)
	}
	c.ApplyHeaders(req)
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("preflight request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.Request.URL.String(), resp.StatusCode, nil
}

// ApplyHeaders sets the profile's browser headers on an HTTP request.
func (c *Client) ApplyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.profile.UserAgent)
	req.Header.Set("Accept", c.profile.Accept)
	req.Header.Set("Accept-Language", c.profile.AcceptLanguage)
	req.Header.Set("Sec-Ch-Ua", c.profile.SecChUA)
	req.Header.Set("Sec-Ch-Ua-Platform", c.profile.SecChUAPlatform)
	req.Header.Set("Sec-Ch-Ua-Mobile", c.profile.SecChUAMobile)
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
