package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/siteprint/siteprint/internal/session"
	"github.com/siteprint/siteprint/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testRoot = "https://sites.example/org/kb"

// fakeSession serves pages from a map and remembers which URL is "current"
// so PrintPDF can fail per page like a real tab would.
type fakeSession struct {
	pages      map[string]*session.Page
	loadErrs   map[string]error
	renderErrs map[string]bool
	loads      map[string]int
	current    string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:      make(map[string]*session.Page),
		loadErrs:   make(map[string]error),
		renderErrs: make(map[string]bool),
		loads:      make(map[string]int),
	}
}

func (f *fakeSession) addPage(url, title string) {
	f.pages[url] = &session.Page{URL: url, Location: url, Title: title}
}

func (f *fakeSession) Load(_ context.Context, url string) (*session.Page, error) {
	f.loads[url]++
	f.current = url
	if err, ok := f.loadErrs[url]; ok {
		if errors.Is(err, session.ErrLoadTimeout) {
			page := f.pages[url]
			if page == nil {
				page = &session.Page{URL: url, Location: url, Partial: true}
			}
			return page, err
		}
		return nil, err
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", url)
	}
	return page, nil
}

func (f *fakeSession) PrintPDF(_ context.Context, _ session.PDFConfig) ([]byte, error) {
	if f.renderErrs[f.current] {
		return nil, errors.New("print failed")
	}
	return []byte("%PDF-1.4 fake " + f.current), nil
}

// fakeDiscoverer returns a fixed link graph keyed by page URL.
type fakeDiscoverer struct {
	graph map[string][]string
}

func (f *fakeDiscoverer) Discover(_, baseURL string) []string {
	return f.graph[baseURL]
}

// memoryStore collects records in order.
type memoryStore struct {
	records []types.ExportRecord
}

func (m *memoryStore) SaveRecord(rec types.ExportRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func testConfig(t *testing.T) types.Config {
	t.Helper()
	return types.Config{
		SiteURL:   testRoot,
		OutputDir: t.TempDir(),
		Timeout:   10 * time.Second,
	}
}

func TestRunVisitsCyclicGraphExactlyOnce(t *testing.T) {
	cfg := testConfig(t)

	a := testRoot + "/a"
	b := testRoot + "/b"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(a, "A")
	sess.addPage(b, "B")

	disc := &fakeDiscoverer{graph: map[string][]string{
		testRoot: {a, b},
		a:        {b, testRoot},
		b:        {testRoot, a},
	}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Exported)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 3, res.Discovered)
	for url, n := range sess.loads {
		assert.Equal(t, 1, n, "url %s loaded %d times", url, n)
	}

	// Root maps to home.pdf, children to their slugs.
	names := make(map[string]string)
	for _, rec := range store.records {
		names[rec.URL] = rec.Filename
	}
	assert.Equal(t, "home.pdf", names[testRoot])
	assert.Equal(t, "a.pdf", names[a])
	assert.Equal(t, "b.pdf", names[b])

	for _, rec := range store.records {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, rec.Filename))
		assert.NoError(t, err, "missing output file %s", rec.Filename)
	}
}

func TestRunAssignsDistinctFilenamesOnCollision(t *testing.T) {
	cfg := testConfig(t)

	lower := testRoot + "/setup"
	upper := testRoot + "/Setup"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(lower, "Setup")
	sess.addPage(upper, "Setup (old)")

	disc := &fakeDiscoverer{graph: map[string][]string{
		testRoot: {lower, upper},
	}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.Exported)

	names := make(map[string]string)
	for _, rec := range store.records {
		names[rec.URL] = rec.Filename
	}
	assert.Equal(t, "setup.pdf", names[lower])
	assert.Equal(t, "setup_2.pdf", names[upper])
}

func TestRunRootUnreachableIsFatal(t *testing.T) {
	cfg := testConfig(t)

	sess := newFakeSession()
	sess.loadErrs[testRoot] = errors.New("connection refused")

	exp := New(cfg, sess, &fakeDiscoverer{}, &memoryStore{}, nil, true, zap.NewNop())
	_, err := exp.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site root unreachable")
}

func TestRunRootAuthWallIsFatal(t *testing.T) {
	cfg := testConfig(t)

	sess := newFakeSession()
	sess.pages[testRoot] = &session.Page{
		URL:      testRoot,
		Location: "https://accounts.google.com/signin",
	}

	exp := New(cfg, sess, &fakeDiscoverer{}, &memoryStore{}, nil, false, zap.NewNop())
	_, err := exp.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication wall")
}

func TestRunTimeoutPageReportedFailedRestContinues(t *testing.T) {
	cfg := testConfig(t)

	slow := testRoot + "/slow"
	fast := testRoot + "/fast"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(fast, "Fast")
	sess.loadErrs[slow] = fmt.Errorf("%w after 10s", session.ErrLoadTimeout)

	disc := &fakeDiscoverer{graph: map[string][]string{
		testRoot: {slow, fast},
	}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, slow, res.Failures[0].URL)
	assert.Contains(t, res.Failures[0].Reason, "timed out")
}

func TestRunTimeoutPageStillYieldsLinks(t *testing.T) {
	cfg := testConfig(t)

	slow := testRoot + "/slow"
	hidden := testRoot + "/hidden"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(hidden, "Hidden")
	sess.pages[slow] = &session.Page{URL: slow, Location: slow, Partial: true}
	sess.loadErrs[slow] = fmt.Errorf("%w after 10s", session.ErrLoadTimeout)

	// hidden is only reachable through the timed-out page's partial DOM.
	disc := &fakeDiscoverer{graph: map[string][]string{
		testRoot: {slow},
		slow:     {hidden},
	}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, sess.loads[hidden])
}

func TestRunRenderFailureIsPerPage(t *testing.T) {
	cfg := testConfig(t)

	bad := testRoot + "/bad"
	good := testRoot + "/good"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(bad, "Bad")
	sess.addPage(good, "Good")
	sess.renderErrs[bad] = true

	disc := &fakeDiscoverer{graph: map[string][]string{
		testRoot: {bad, good},
	}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Failures[0].Reason, "render failed")
}

func TestRunSkipsExistingFiles(t *testing.T) {
	cfg := testConfig(t)

	page := testRoot + "/done"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "done.pdf"), []byte("old"), 0o644))

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(page, "Done")

	disc := &fakeDiscoverer{graph: map[string][]string{testRoot: {page}}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Exported) // the root
	assert.Equal(t, 1, res.Skipped)

	// The stale file was left untouched.
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "done.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestRunOverwriteReExports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Overwrite = true

	page := testRoot + "/done"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "done.pdf"), []byte("old"), 0o644))

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(page, "Done")

	disc := &fakeDiscoverer{graph: map[string][]string{testRoot: {page}}}

	exp := New(cfg, sess, disc, &memoryStore{}, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)
	assert.Zero(t, res.Skipped)

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "done.pdf"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF")
}

func TestRunMaxPagesBound(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxPages = 2

	sess := newFakeSession()
	disc := &fakeDiscoverer{graph: map[string][]string{}}

	sess.addPage(testRoot, "Home")
	children := make([]string, 5)
	for i := range children {
		children[i] = fmt.Sprintf("%s/p%d", testRoot, i)
		sess.addPage(children[i], fmt.Sprintf("P%d", i))
	}
	disc.graph[testRoot] = children

	exp := New(cfg, sess, disc, &memoryStore{}, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)

	// The budget stops the loop before another URL is pulled off the queue, so
	// nothing is consumed without being handled.
	_, processed := exp.frontier.Stats()
	assert.Equal(t, 2, processed)
	assert.Equal(t, 4, exp.frontier.Size())
}

func TestRunAuthWallPageIsPerPage(t *testing.T) {
	cfg := testConfig(t)

	walled := testRoot + "/private"
	open := testRoot + "/open"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(open, "Open")
	sess.pages[walled] = &session.Page{
		URL:      walled,
		Location: "https://accounts.google.com/signin?continue=" + walled,
	}

	disc := &fakeDiscoverer{graph: map[string][]string{testRoot: {walled, open}}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Failures[0].Reason, "redirected to login")
}

func TestRunSeedSharesIdentityWithDiscoveredLinks(t *testing.T) {
	cfg := testConfig(t)
	// A site URL pasted from a mail client carries tracking params; the crawl
	// must still treat it as the same page the site's menu links back to.
	cfg.SiteURL = testRoot + "?utm_source=mail"

	a := testRoot + "/a"

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")
	sess.addPage(a, "A")

	disc := &fakeDiscoverer{graph: map[string][]string{
		testRoot: {a},
		a:        {testRoot},
	}}
	store := &memoryStore{}

	exp := New(cfg, sess, disc, store, nil, true, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, sess.loads[testRoot])

	names := make(map[string]bool)
	for _, rec := range store.records {
		names[rec.Filename] = true
	}
	assert.True(t, names["home.pdf"])
	assert.False(t, names["home_2.pdf"])
}

func TestRunUnauthenticatedReported(t *testing.T) {
	cfg := testConfig(t)

	sess := newFakeSession()
	sess.addPage(testRoot, "Home")

	exp := New(cfg, sess, &fakeDiscoverer{}, &memoryStore{}, nil, false, zap.NewNop())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Authenticated)
	assert.Equal(t, 1, res.Exported)
}
