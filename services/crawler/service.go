// Package crawler drives a full crawl: it fetches pages through a
// polite client, runs the royalroad spider over them, stamps
// provenance onto every record and hands the records to the graph
// store. Extraction is side-effect free, so everything operational
// (fetching, stamping, persistence, accounting) lives here.
package crawler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"royalgraph/lib/scrapers/royalroad"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("services/crawler")

// Fetcher retrieves the raw body of a page. Satisfied by
// royalroad/core.Client in production, stubbed in tests.
type Fetcher interface {
	Page(ctx context.Context, pageURL string) ([]byte, error)
}

// GraphWriter persists extracted records. Satisfied by
// graphstore.Store in production, stubbed in tests.
type GraphWriter interface {
	UpsertFiction(ctx context.Context, f royalroad.Fiction) error
	UpsertReview(ctx context.Context, r royalroad.Review) error
}

type Options struct {
	// MaxReviewPages caps how many review pagination pages are
	// followed per fiction, 0 means unlimited.
	MaxReviewPages int
}

type Service struct {
	fetcher Fetcher
	graph   GraphWriter
	options Options
}

func NewService(fetcher Fetcher, graph GraphWriter, options Options) *Service {
	return &Service{fetcher: fetcher, graph: graph, options: options}
}

// Stats summarizes one crawl run.
type Stats struct {
	PagesFetched   int
	FetchFailures  int
	FictionsStored int
	ReviewsStored  int
	WriteFailures  int
}

func (s *Stats) add(other Stats) {
	s.PagesFetched += other.PagesFetched
	s.FetchFailures += other.FetchFailures
	s.FictionsStored += other.FictionsStored
	s.ReviewsStored += other.ReviewsStored
	s.WriteFailures += other.WriteFailures
}

// Crawl walks every start url concurrently and blocks until all of
// them are exhausted or ctx is cancelled. Failures on one url never
// stop the others.
func (s *Service) Crawl(ctx context.Context, startURLs []string) Stats {
	ctx, span := tracer.Start(ctx, "Crawl")
	defer span.End()
	span.SetAttributes(attribute.Int("start_urls", len(startURLs)))

	var mutex sync.Mutex
	var total Stats
	var wg sync.WaitGroup

	for _, startURL := range startURLs {
		wg.Add(1)
		go func(startURL string) {
			defer wg.Done()
			stats := s.crawlFiction(ctx, startURL)
			mutex.Lock()
			defer mutex.Unlock()
			total.add(stats)
		}(startURL)
	}
	wg.Wait()

	slog.InfoContext(ctx, "crawl finished",
		"pages", total.PagesFetched,
		"fictions", total.FictionsStored,
		"reviews", total.ReviewsStored,
		"fetch_failures", total.FetchFailures,
		"write_failures", total.WriteFailures,
	)
	return total
}

// crawlFiction follows one start url through its chain of review
// pages. The fiction id extracted from the first page travels with
// every continuation so later pages can attribute their reviews.
func (s *Service) crawlFiction(ctx context.Context, startURL string) Stats {
	ctx, span := tracer.Start(ctx, "crawlFiction")
	defer span.End()
	span.SetAttributes(attribute.String("start_url", startURL))

	var stats Stats

	pageURL := startURL
	var fictionId int64
	firstPage := true
	reviewPages := 0

	for pageURL != "" {
		if ctx.Err() != nil {
			return stats
		}

		body, err := s.fetcher.Page(ctx, pageURL)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch page", "url", pageURL, "err", err)
			stats.FetchFailures++
			return stats
		}
		stats.PagesFetched++

		page := royalroad.Page{URL: pageURL, Body: body}
		var result royalroad.Result
		if firstPage {
			result, err = royalroad.ParsePage(ctx, page)
		} else {
			result, err = royalroad.ParseReviewPage(ctx, page, fictionId)
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to parse page", "url", pageURL, "err", err)
			return stats
		}

		if result.Fiction != nil {
			fiction := stampFiction(*result.Fiction)
			err = s.graph.UpsertFiction(ctx, fiction)
			if err != nil {
				slog.WarnContext(ctx, "failed to store fiction",
					"fiction_id", fiction.FictionID, "err", err)
				stats.WriteFailures++
			} else if fiction.Valid() {
				stats.FictionsStored++
			}
		}

		for _, review := range result.Reviews {
			review = stampReview(review)
			err = s.graph.UpsertReview(ctx, review)
			if err != nil {
				slog.WarnContext(ctx, "failed to store review",
					"review_id", review.ReviewID, "err", err)
				stats.WriteFailures++
				continue
			}
			stats.ReviewsStored++
		}

		if result.Follow == nil {
			return stats
		}
		reviewPages++
		if s.options.MaxReviewPages > 0 && reviewPages > s.options.MaxReviewPages {
			slog.InfoContext(ctx, "review page cap reached",
				"start_url", startURL, "pages", reviewPages-1)
			return stats
		}

		pageURL = result.Follow.URL
		fictionId = result.Follow.FictionID
		firstPage = false
	}

	return stats
}

// stampFiction marks the record with when it was scraped and which
// schema revision produced it. Extractors never set these, they are a
// property of the run, not of the page.
func stampFiction(f royalroad.Fiction) royalroad.Fiction {
	f.ScrapedAt = time.Now().UTC().Format(time.RFC3339)
	f.Version = royalroad.SchemaVersion
	return f
}

func stampReview(r royalroad.Review) royalroad.Review {
	r.ScrapedAt = time.Now().UTC().Format(time.RFC3339)
	r.Version = royalroad.SchemaVersion
	return r
}
