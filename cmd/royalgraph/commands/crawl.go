package commands

import (
	"log/slog"
	"os"
	"time"

	"royalgraph/lib/configutil"
	"royalgraph/lib/graphstore"
	"royalgraph/lib/restyutil"
	"royalgraph/lib/scrapers/royalroad/core"
	"royalgraph/lib/serviceutil"
	"royalgraph/services/crawler"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultStartUrl = "https://www.royalroad.com/fiction/89034/nightmare-realm-summoner"

type CrawlConfig struct {
	StartUrls      []string `json:"start_urls"`
	DelayMs        int      `json:"delay_ms"`
	MaxReviewPages int      `json:"max_review_pages"`
	// DumpDir, when set, receives a dump of every http exchange.
	DumpDir string `json:"dump_dir"`
}

type Config struct {
	Graph graphstore.Config `json:"graph"`
	Crawl CrawlConfig       `json:"crawl"`
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [start urls...]",
	Short: "Crawls fictions and reviews into the graph store. Urls given as arguments override the configured start urls.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		startUrls := args
		if len(startUrls) == 0 {
			startUrls = cfg.Crawl.StartUrls
		}
		if len(startUrls) == 0 {
			startUrls = []string{defaultStartUrl}
		}

		store, err := graphstore.Open(ctx, cfg.Graph)
		if err != nil {
			serviceutil.Fatal("failed to open graph store", err)
		}
		defer store.Close(ctx)

		client, err := core.NewClient(ctx, core.ClientOptions{
			BaseUrl: "https://www.royalroad.com",
			Delay:   time.Duration(cfg.Crawl.DelayMs) * time.Millisecond,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize crawl client", err)
		}
		if cfg.Crawl.DumpDir != "" {
			core.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(cfg.Crawl.DumpDir))
		}

		service := crawler.NewService(client, store, crawler.Options{
			MaxReviewPages: cfg.Crawl.MaxReviewPages,
		})

		slog.Info("starting crawl", "start_urls", len(startUrls))
		t1 := time.Now()
		stats := service.Crawl(ctx, startUrls)
		t2 := time.Now()
		slog.Info("crawl time", "seconds", t2.Sub(t1).Seconds())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Pages", "Fictions", "Reviews", "Fetch failures", "Write failures"})
		t.AppendRow(table.Row{
			stats.PagesFetched,
			stats.FictionsStored,
			stats.ReviewsStored,
			stats.FetchFailures,
			stats.WriteFailures,
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
