package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siteprint/siteprint/internal/crawler"
	"github.com/siteprint/siteprint/internal/discover"
	"github.com/siteprint/siteprint/internal/naming"
	"github.com/siteprint/siteprint/internal/session"
	"github.com/siteprint/siteprint/internal/types"
)

// loader is the slice of session.Manager the exporter drives.
type loader interface {
	Load(ctx context.Context, url string) (*session.Page, error)
	PrintPDF(ctx context.Context, cfg session.PDFConfig) ([]byte, error)
}

// discoverer extracts in-site links from a loaded page's HTML.
type discoverer interface {
	Discover(html, baseURL string) []string
}

// recorder commits export records.
type recorder interface {
	SaveRecord(types.ExportRecord) error
}

// Exporter walks the frontier and turns every reachable in-site page into a
// PDF. One page's failure never aborts the run; only an unreachable site
// root does.
type Exporter struct {
	cfg      types.Config
	session  loader
	discover discoverer
	store    recorder
	robots   *crawler.Gatekeeper // nil unless robots checking is enabled
	frontier *crawler.Frontier
	pdfCfg   session.PDFConfig
	logger   *zap.Logger

	// filename -> URL that claimed it; drives deterministic collision suffixes
	usedNames map[string]string
	authed    bool
}

// New wires an exporter. authed records whether a cookie set was injected so
// the final summary can report unauthenticated runs.
func New(cfg types.Config, sess loader, disc discoverer, store recorder,
	robots *crawler.Gatekeeper, authed bool, logger *zap.Logger) *Exporter {
	return &Exporter{
		cfg:       cfg,
		session:   sess,
		discover:  disc,
		store:     store,
		robots:    robots,
		frontier:  crawler.NewFrontier(),
		pdfCfg:    session.DefaultPDFConfig(),
		logger:    logger,
		usedNames: make(map[string]string),
		authed:    authed,
	}
}

// Run drains the frontier starting from the site root and returns the run
// summary. The returned error is non-nil only for fatal conditions: the root
// being unreachable, a hard auth wall at the root, or context cancellation.
func (e *Exporter) Run(ctx context.Context) (*types.Results, error) {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// The seed must share the identity of links pointing back at it, or the
	// root gets visited once per spelling.
	root := discover.NormalizeSeed(e.cfg.SiteURL)
	e.frontier.Add(root)

	results := &types.Results{Authenticated: e.authed}
	index := 0

	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if e.cfg.MaxPages > 0 && index >= e.cfg.MaxPages {
			e.logger.Warn("page budget reached, stopping",
				zap.Int("max_pages", e.cfg.MaxPages), zap.Int("pending", e.frontier.Size()))
			break
		}
		pageURL, ok := e.frontier.Next()
		if !ok {
			break
		}
		index++

		rec, err := e.exportPageSafely(ctx, pageURL, index)
		if err != nil {
			return results, err
		}

		if saveErr := e.store.SaveRecord(rec); saveErr != nil {
			e.logger.Warn("failed to persist export record",
				zap.String("url", rec.URL), zap.Error(saveErr))
		}

		switch rec.Status {
		case types.StatusExported:
			results.Exported++
		case types.StatusSkipped:
			results.Skipped++
		case types.StatusFailed:
			results.Failed++
			results.Failures = append(results.Failures, types.Failure{URL: rec.URL, Reason: rec.Error})
		}
	}

	results.Discovered, _ = e.frontier.Stats()
	e.logSummary(results)
	return results, nil
}

// exportPageSafely confines a panic in per-page processing to that page.
func (e *Exporter) exportPageSafely(ctx context.Context, pageURL string, index int) (rec types.ExportRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while exporting page",
				zap.String("url", pageURL), zap.Any("panic", r))
			rec = types.ExportRecord{
				URL:        pageURL,
				Status:     types.StatusFailed,
				Error:      fmt.Sprintf("panic during export: %v", r),
				ExportedAt: time.Now(),
			}
			err = nil
		}
	}()
	return e.exportPage(ctx, pageURL, index)
}

func (e *Exporter) exportPage(ctx context.Context, pageURL string, index int) (types.ExportRecord, error) {
	start := time.Now()
	rec := types.ExportRecord{URL: pageURL, ExportedAt: start}

	fail := func(reason string) (types.ExportRecord, error) {
		rec.Status = types.StatusFailed
		rec.Error = reason
		rec.DurationMS = time.Since(start).Milliseconds()
		e.logger.Warn("page failed", zap.String("url", pageURL), zap.String("reason", reason))
		return rec, nil
	}

	if e.robots != nil && !e.robots.Allowed(ctx, pageURL) {
		return fail("blocked by robots.txt")
	}

	page, err := e.session.Load(ctx, pageURL)
	timedOut := err != nil && errors.Is(err, session.ErrLoadTimeout) && page != nil
	if err != nil && !timedOut {
		if index == 1 {
			return rec, fmt.Errorf("site root unreachable: %w", err)
		}
		return fail(fmt.Sprintf("navigation failed: %v", err))
	}

	if session.IsAuthWall(page.Location) {
		if index == 1 {
			return rec, fmt.Errorf("authentication wall at site root (%s): cookies missing or expired", page.Location)
		}
		return fail("redirected to login: " + page.Location)
	}

	rec.Title = page.Title

	// Even a partially loaded page may expose its menu; harvest links before
	// deciding the page's own fate.
	for _, link := range e.discover.Discover(page.HTML, page.URL) {
		e.frontier.Add(link)
	}

	if timedOut {
		return fail(fmt.Sprintf("navigation timed out after %s", e.cfg.Timeout))
	}

	filename := e.claimFilename(pageURL)
	rec.Filename = filename
	outPath := filepath.Join(e.cfg.OutputDir, filename)

	if !e.cfg.Overwrite {
		if _, statErr := os.Stat(outPath); statErr == nil {
			e.logger.Info("already exported, skipping",
				zap.Int("n", index), zap.String("file", filename))
			rec.Status = types.StatusSkipped
			rec.DurationMS = time.Since(start).Milliseconds()
			return rec, nil
		}
	}

	pdf, err := e.session.PrintPDF(ctx, e.pdfCfg)
	if err != nil {
		return fail(fmt.Sprintf("render failed: %v", err))
	}
	if err := os.WriteFile(outPath, pdf, 0o644); err != nil {
		return fail(fmt.Sprintf("write failed: %v", err))
	}

	rec.Bytes = int64(len(pdf))
	rec.Status = types.StatusExported
	rec.DurationMS = time.Since(start).Milliseconds()
	e.logger.Info("exported",
		zap.Int("n", index),
		zap.String("title", page.Title),
		zap.String("file", filename),
		zap.Int64("bytes", rec.Bytes))
	return rec, nil
}

// claimFilename resolves cross-page filename collisions deterministically:
// the first URL to claim a derived name keeps it, later distinct URLs get
// _2, _3, ... in visit order.
func (e *Exporter) claimFilename(pageURL string) string {
	base := naming.Derive(pageURL, e.cfg.SiteURL)
	if owner, taken := e.usedNames[base]; !taken || owner == pageURL {
		e.usedNames[base] = pageURL
		return base
	}

	stem := strings.TrimSuffix(base, ".pdf")
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d.pdf", stem, n)
		if owner, taken := e.usedNames[candidate]; !taken || owner == pageURL {
			e.usedNames[candidate] = pageURL
			return candidate
		}
	}
}

func (e *Exporter) logSummary(res *types.Results) {
	e.logger.Info("export run finished",
		zap.Int("discovered", res.Discovered),
		zap.Int("exported", res.Exported),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Bool("authenticated", res.Authenticated))
	for _, f := range res.Failures {
		e.logger.Warn("not exported", zap.String("url", f.URL), zap.String("reason", f.Reason))
	}
}
