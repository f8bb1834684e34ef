package session

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/siteprint/siteprint/internal/types"
)

// LoadCookieFile reads a browser-exported cookie JSON array. A missing or
// malformed file is not fatal: the run degrades to unauthenticated mode.
func LoadCookieFile(path string, logger *zap.Logger) []types.Cookie {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("cookie file unavailable, proceeding unauthenticated",
			zap.String("path", path), zap.Error(err))
		return nil
	}

	var cookies []types.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		logger.Warn("cookie file malformed, proceeding unauthenticated",
			zap.String("path", path), zap.Error(err))
		return nil
	}

	logger.Info("cookies loaded", zap.String("path", path), zap.Int("count", len(cookies)))
	return cookies
}

// injectCookies pushes the cookie set into the browser context. A single
// rejected cookie is logged and skipped rather than failing the session.
func (m *Manager) injectCookies() error {
	return chromedp.Run(m.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		injected := 0
		for _, c := range m.cookies {
			path := c.Path
			if path == "" {
				path = "/"
			}

			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.ExpirationDate > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.ExpirationDate), 0))
				p = p.WithExpires(&expires)
			}

			if err := p.Do(ctx); err != nil {
				m.logger.Warn("cookie rejected by browser",
					zap.String("name", c.Name), zap.String("domain", c.Domain), zap.Error(err))
				continue
			}
			injected++
		}
		m.logger.Info("cookies injected",
			zap.Int("injected", injected), zap.Int("total", len(m.cookies)))
		return nil
	}))
}
