package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	sidechannel "github.com/siteprint/siteprint/internal/http"
)

// Gatekeeper caches per-origin robots.txt verdicts. Any fetch or parse
// problem allows the URL, the same way a polite crawler treats a missing
// robots file.
type Gatekeeper struct {
	client *sidechannel.Client
	agent  string
	logger *zap.Logger
	cache  sync.Map // origin -> *robotstxt.RobotsData, nil means allow all
}

// NewGatekeeper builds a gatekeeper that fetches robots.txt through the
// side-channel client.
func NewGatekeeper(client *sidechannel.Client, agent string, logger *zap.Logger) *Gatekeeper {
	return &Gatekeeper{
		client: client,
		agent:  agent,
		logger: logger,
	}
}

// Allowed reports whether the URL may be fetched under the origin's robots
// policy.
func (g *Gatekeeper) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	origin := u.Scheme + "://" + u.Host

	if cached, ok := g.cache.Load(origin); ok {
		robots, _ := cached.(*robotstxt.RobotsData)
		if robots == nil {
			return true
		}
		return robots.TestAgent(u.Path, g.agent)
	}

	robots := g.fetch(ctx, origin)
	g.cache.Store(origin, robots)
	if robots == nil {
		return true
	}
	return robots.TestAgent(u.Path, g.agent)
}

func (g *Gatekeeper) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	resp, err := g.client.Get(ctx, origin+"/robots.txt")
	if err != nil {
		g.logger.Debug("robots.txt unreachable, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		g.logger.Debug("robots.txt unparseable, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return robots
}
