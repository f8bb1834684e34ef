package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/siteprint/siteprint/internal/crawler"
	"github.com/siteprint/siteprint/internal/discover"
	"github.com/siteprint/siteprint/internal/exporter"
	sidechannel "github.com/siteprint/siteprint/internal/http"
	"github.com/siteprint/siteprint/internal/session"
	"github.com/siteprint/siteprint/internal/storage"
	"github.com/siteprint/siteprint/internal/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Crawl the site and render every reachable page to PDF",
	Long:  `Crawl the site starting at --site-url, following the navigation menus, and write one PDF per page into the output directory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		cfg := types.Config{
			SiteURL:     viper.GetString("site-url"),
			CookieFile:  viper.GetString("cookies"),
			OutputDir:   viper.GetString("output-dir"),
			Timeout:     time.Duration(viper.GetInt("timeout")) * time.Second,
			SettleDelay: time.Duration(viper.GetInt("settle")) * time.Millisecond,
			Overwrite:   viper.GetBool("overwrite"),
			CheckRobots: viper.GetBool("check-robots"),
			MaxPages:    viper.GetInt("max-pages"),
		}

		logger := newLogger(viper.GetBool("verbose"))
		defer logger.Sync()

		return runExport(cmd.Context(), cfg, logger)
	},
}

func init() {
	exportCmd.Flags().String("site-url", "", "Site root URL (required)")
	exportCmd.Flags().String("cookies", "cookies.json", "Path to browser-exported cookie JSON")
	exportCmd.Flags().String("output-dir", "./google_site_export", "Directory for rendered PDFs")
	exportCmd.Flags().Int("timeout", 10, "Per-page navigation timeout in seconds")
	exportCmd.Flags().Int("settle", 2000, "Post-load settle delay in milliseconds")
	exportCmd.Flags().Bool("overwrite", false, "Re-export pages whose PDF already exists")
	exportCmd.Flags().Bool("check-robots", false, "Honor the site's robots.txt")
	exportCmd.Flags().Int("max-pages", 0, "Stop after this many pages (0 = unlimited)")
	exportCmd.Flags().Bool("verbose", false, "Enable debug logging")

	exportCmd.MarkFlagRequired("site-url")
}

func runExport(ctx context.Context, cfg types.Config, logger *zap.Logger) error {
	cookies := session.LoadCookieFile(cfg.CookieFile, logger)

	client := sidechannel.NewClient(cfg.Timeout)
	if len(cookies) > 0 {
		if final, _, err := client.Preflight(ctx, cfg.SiteURL, cookies); err != nil {
			logger.Warn("auth preflight failed, continuing anyway", zap.Error(err))
		} else if session.IsAuthWall(final) {
			logger.Warn("cookies look expired: site root bounces to a login page",
				zap.String("final_url", final))
		}
	}

	sess := session.New(cfg, cookies, logger)
	if err := sess.Start(ctx); err != nil {
		sess.Close()
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	defer sess.Close()

	disc, err := discover.New(cfg.SiteURL, logger)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer store.Close()

	var robots *crawler.Gatekeeper
	if cfg.CheckRobots {
		robots = crawler.NewGatekeeper(client, "siteprint", logger)
	}

	exp := exporter.New(cfg, sess, disc, store, robots, len(cookies) > 0, logger)
	results, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Export completed: %d exported, %d skipped, %d failed (of %d discovered)\n",
		results.Exported, results.Skipped, results.Failed, results.Discovered)
	for _, f := range results.Failures {
		fmt.Printf("  failed: %s (%s)\n", f.URL, f.Reason)
	}
	if !results.Authenticated {
		fmt.Println("Run was unauthenticated; private pages may be missing.")
	}
	return nil
}
