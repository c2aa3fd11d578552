package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/harvest"
	"github.com/JakeFAU/stackexchange-crawler/internal/questions"
	"github.com/JakeFAU/stackexchange-crawler/internal/sitelist"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

type crawlOptions struct {
	site    string
	excel   string
	workers int
	from    string
	to      string
}

func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Harvest one site, or every site listed in a spreadsheet",
		Long: `Harvests the questions of a single site (by API name, e.g. "meta" or
"law") or of every site listed in an .xlsx/.csv file whose rows are
"display name | base URL". Records are written to
<output.dir>/<site>/stackexchange_<site>_<question_id>.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.site, "site", "s", "meta", "site API name")
	cmd.Flags().StringVarP(&opts.excel, "excel", "e", "", "spreadsheet (.xlsx or .csv) listing the sites to harvest")
	cmd.Flags().IntVarP(&opts.workers, "workers", "W", 0, "sites harvested in parallel (default crawler.workers)")
	// Read by the root command before the App is built.
	cmd.Flags().Bool("no-upload", false, "skip uploading records to the storage provider")
	cmd.Flags().StringVar(&opts.from, "from", "", "oldest creation date: epoch seconds, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringVar(&opts.to, "to", "", "newest creation date: epoch seconds, YYYY-MM-DD or RFC 3339")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()
	ctx := cmd.Context()

	settings, err := appInstance.HarvestSettings()
	if err != nil {
		return err
	}
	settings.Out = cmd.OutOrStdout()
	if settings.Window, err = parseWindow(opts.from, opts.to); err != nil {
		return err
	}

	h, err := harvest.Build(settings)
	if err != nil {
		return fmt.Errorf("build harvester: %w", err)
	}

	siteNames := []string{opts.site}
	if opts.excel != "" {
		entries, err := sitelist.Load(opts.excel)
		if err != nil {
			return fmt.Errorf("load site list: %w", err)
		}
		siteNames = h.ResolveSiteList(ctx, entries)
		if len(siteNames) == 0 {
			return errors.New("no site in the list matched a known site")
		}
	}

	workers := opts.workers
	if workers <= 0 {
		workers = appInstance.GetConfig().Crawler.Workers
	}

	summaries, err := h.ProcessSites(ctx, siteNames, workers)
	written := 0
	for _, s := range summaries {
		written += s.Written
	}
	logger.Info("crawl finished",
		zap.Int("sites", len(siteNames)),
		zap.Int("records", written),
		zap.Int("workers", workers),
	)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	return nil
}

func parseWindow(from, to string) (questions.Window, error) {
	var w questions.Window
	var err error
	if w.From, err = stackexchange.ParseTimestamp(from); err != nil {
		return w, fmt.Errorf("--from: %w", err)
	}
	if w.To, err = stackexchange.ParseTimestamp(to); err != nil {
		return w, fmt.Errorf("--to: %w", err)
	}
	return w, nil
}
