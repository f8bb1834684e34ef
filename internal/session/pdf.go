package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chrome's print API measures paper and margins in inches.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
	cmInInches     = 0.3937
)

// PDFConfig carries the Page.printToPDF knobs the exporter cares about.
type PDFConfig struct {
	PaperWidth      float64
	PaperHeight     float64
	MarginTop       float64
	MarginBottom    float64
	MarginLeft      float64
	MarginRight     float64
	PrintBackground bool
}

// DefaultPDFConfig is A4 with 1cm margins and background graphics enabled.
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		PaperWidth:      a4WidthInches,
		PaperHeight:     a4HeightInches,
		MarginTop:       cmInInches,
		MarginBottom:    cmInInches,
		MarginLeft:      cmInInches,
		MarginRight:     cmInInches,
		PrintBackground: true,
	}
}

// PrintPDF renders the tab's current document to PDF bytes.
func (m *Manager) PrintPDF(ctx context.Context, cfg PDFConfig) ([]byte, error) {
	printCtx, cancel := context.WithTimeout(m.tabCtx, m.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	err := chromedp.Run(printCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().
			WithPaperWidth(cfg.PaperWidth).
			WithPaperHeight(cfg.PaperHeight).
			WithMarginTop(cfg.MarginTop).
			WithMarginBottom(cfg.MarginBottom).
			WithMarginLeft(cfg.MarginLeft).
			WithMarginRight(cfg.MarginRight).
			WithPrintBackground(cfg.PrintBackground).
			Do(ctx)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf, nil
}
