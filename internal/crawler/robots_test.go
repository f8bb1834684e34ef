package crawler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	sidechannel "github.com/siteprint/siteprint/internal/http"
)

func newGatekeeper(t *testing.T) *Gatekeeper {
	t.Helper()
	return NewGatekeeper(sidechannel.NewClient(2*time.Second), "siteprint", zap.NewNop())
}

func TestGatekeeperDisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			io.WriteString(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	g := newGatekeeper(t)
	assert.True(t, g.Allowed(context.Background(), srv.URL+"/public/page"))
	assert.False(t, g.Allowed(context.Background(), srv.URL+"/private/page"))
}

func TestGatekeeperMissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := newGatekeeper(t)
	assert.True(t, g.Allowed(context.Background(), srv.URL+"/anything"))
}

func TestGatekeeperUnreachableOriginAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g := newGatekeeper(t)
	assert.True(t, g.Allowed(context.Background(), srv.URL+"/page"))
}

func TestGatekeeperCachesPerOrigin(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			io.WriteString(w, "User-agent: *\nDisallow:\n")
		}
	}))
	defer srv.Close()

	g := newGatekeeper(t)
	for i := 0; i < 5; i++ {
		assert.True(t, g.Allowed(context.Background(), srv.URL+"/page"))
	}
	assert.Equal(t, int32(1), fetches.Load())
}

func TestGatekeeperBadURL(t *testing.T) {
	g := newGatekeeper(t)
	assert.False(t, g.Allowed(context.Background(), "://not-a-url"))
}
