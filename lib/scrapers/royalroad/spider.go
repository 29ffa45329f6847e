package royalroad

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"royalgraph/lib/extract"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

type PageType int

const (
	PageFiction PageType = iota
	PageAuthor
)

func (t PageType) String() string {
	if t == PageAuthor {
		return "author"
	}
	return "fiction"
}

// Classify decides what kind of page a url points at from its path
// shape alone: /profile/{id}/... and /user/{id}/... are author pages,
// /fiction/{id}/... and anything unrecognized default to fiction.
// The permissive default mirrors the site's own link structure, where
// nearly every content url is a fiction route; a misclassified page
// simply fails fiction-id resolution downstream and is dropped.
func Classify(rawurl string) PageType {
	link, err := url.Parse(rawurl)
	if err != nil {
		return PageFiction
	}
	parts := strings.FieldsFunc(link.Path, func(r rune) bool { return r == '/' })
	if len(parts) >= 2 && (parts[0] == "profile" || parts[0] == "user") {
		return PageAuthor
	}
	return PageFiction
}

// Page is one already-fetched page: the fetch layer hands the spider
// a body plus the url it came from, nothing else.
type Page struct {
	URL  string
	Body []byte
}

// Follow is a continuation request for the next reviews page of a
// fiction. The fiction id travels with it because the continuation
// page may not expose it anywhere.
type Follow struct {
	URL       string
	FictionID int64
}

// Result is everything one page yields. Fiction is nil on
// continuation and author pages. Reviews always carry an injected,
// non-zero FictionID.
type Result struct {
	Fiction *Fiction
	Reviews []Review
	Follow  *Follow
}

// ParsePage handles a page reached from a start url. Author pages are
// skipped. Fiction pages yield the Fiction record (possibly partial),
// the page's reviews and a follow request if more review pages exist.
func ParsePage(ctx context.Context, page Page) (Result, error) {
	ctx, span := tracer.Start(ctx, "ParsePage")
	defer span.End()
	span.SetAttributes(attribute.String("url", page.URL))

	if Classify(page.URL) == PageAuthor {
		slog.InfoContext(ctx, "skipping author page", "url", page.URL)
		return Result{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return Result{}, err
	}

	fiction := ExtractFiction(ctx, doc, page.URL)
	out := Result{Fiction: &fiction}
	if !fiction.Valid() {
		// reviews cannot be attributed without a fiction id
		return out, nil
	}

	out.Reviews = extractReviews(ctx, doc, fiction.FictionID)
	out.Follow = nextFollow(doc, page.URL, fiction.FictionID)
	return out, nil
}

// ParseReviewPage handles a review pagination page reached through a
// Follow. The fiction id comes from the carried context; if absent it
// is re-derived from the page's own url, and if that fails too the
// page is abandoned since its reviews cannot be attributed.
func ParseReviewPage(ctx context.Context, page Page, carriedFictionID int64) (Result, error) {
	ctx, span := tracer.Start(ctx, "ParseReviewPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", page.URL))

	fictionId := carriedFictionID
	if fictionId == 0 {
		fictionId, _ = extract.FictionIDFromPath(page.URL)
	}
	if fictionId == 0 {
		slog.WarnContext(ctx, "abandoning review page, fiction id unresolvable", "url", page.URL)
		return Result{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return Result{}, err
	}

	return Result{
		Reviews: extractReviews(ctx, doc, fictionId),
		Follow:  nextFollow(doc, page.URL, fictionId),
	}, nil
}

// extractReviews runs the review extractor over every fragment on the
// page, injects the resolved fiction id and drops records whose
// identity keys did not resolve. The returned set never contains a
// review with an absent fiction id.
func extractReviews(ctx context.Context, doc *goquery.Document, fictionId int64) []Review {
	var reviews []Review
	doc.Find(".review").Each(func(_ int, frag *goquery.Selection) {
		review := ExtractReview(ctx, frag)
		review.FictionID = fictionId
		if !review.Valid() {
			slog.WarnContext(ctx, "dropping review without identity",
				"review_id", review.ReviewID, "fiction_id", fictionId)
			return
		}
		reviews = append(reviews, review)
	})
	return reviews
}

func nextFollow(doc *goquery.Document, pageURL string, fictionId int64) *Follow {
	next, ok := NextReviewsPage(doc, pageURL)
	if !ok {
		return nil
	}
	return &Follow{URL: next, FictionID: fictionId}
}
