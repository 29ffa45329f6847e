package royalroad

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"royalgraph/lib/extract"
	"royalgraph/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/royalroad")

var fictionIdScript = regexp.MustCompile(`window\.fictionId\s*=\s*(\d+)`)

// ExtractFiction builds one Fiction record from a parsed fiction page
// and its source url. Fields that cannot be recovered stay absent and
// are logged, a partial record is still returned; deciding whether it
// may be persisted is the caller's job.
func ExtractFiction(ctx context.Context, doc *goquery.Document, sourceURL string) Fiction {
	ctx, span := tracer.Start(ctx, "ExtractFiction")
	defer span.End()
	span.SetAttributes(attribute.String("url", sourceURL))

	f := Fiction{}

	// meta tags first, the DOM markup churns more often
	f.Title, _ = extract.FirstMatch(
		metaContent(doc, "twitter:title"),
		metaContent(doc, "og:title"),
		elementText(doc, "h1.font-white"),
		elementText(doc, ".fic-title h1"),
	)

	f.Author, _ = extract.FirstMatch(
		metaContent(doc, "books:author"),
		elementText(doc, ".fic-title h4 a.font-white"),
		elementText(doc, `.portlet-body a.font-red[href^="/profile/"]`),
	)

	if id, ok := extractAuthorId(doc); ok {
		f.AuthorID = &id
	}

	f.URL, _ = extract.FirstMatch(
		func() string { return doc.Find(`link[rel="canonical"]`).AttrOr("href", "") },
		metaContent(doc, "og:url"),
		func() string { return sourceURL },
	)

	// the full DOM block wins over the truncated og:description, and
	// whichever source is used contributes all of its fragments
	description := extract.FirstSource(
		fragmentsOf(doc, ".description .hidden-content *"),
		fragmentsOf(doc, ".description"),
		func() []string {
			if v, ok := extract.StripMarkup(metaContent(doc, "og:description")()); ok {
				return []string{v}
			}
			return nil
		},
	)
	f.Description = strings.Join(description, "\n")

	f.Tags = extract.CollectAll(func() []string {
		var tags []string
		doc.Find(".tags a.fiction-tag").Each(func(_ int, s *goquery.Selection) {
			tags = append(tags, s.Text())
		})
		return tags
	})

	if rating, ok := extract.ParseFloat(metaContent(doc, "books:rating:value")()); ok {
		f.Rating = &rating
	}

	followerText := htmlutil.LabelSiblingText(doc.Find("div.fiction-stats li"), "Followers")
	if followers, ok := extract.ParseInt(followerText); ok {
		f.FollowerCount = &followers
	}

	if id, ok := resolveFictionId(doc, sourceURL); ok {
		f.FictionID = id
	}

	for _, field := range f.missingFields() {
		slog.WarnContext(ctx, "fiction field missing", "field", field, "url", sourceURL)
	}

	return f
}

// resolveFictionId tries the source url's path first, then falls back
// to the inline `window.fictionId = N;` script assignment the site
// embeds on every fiction page.
func resolveFictionId(doc *goquery.Document, sourceURL string) (int64, bool) {
	if id, ok := extract.FictionIDFromPath(sourceURL); ok {
		return id, true
	}
	var id int64
	var found bool
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, n := range s.Nodes {
			groups := fictionIdScript.FindStringSubmatch(htmlutil.GetText(n))
			if groups == nil {
				continue
			}
			if v, ok := extract.ParseInt(groups[1]); ok {
				id, found = v, true
				return false
			}
		}
		return true
	})
	return id, found
}

func extractAuthorId(doc *goquery.Document) (int64, bool) {
	href := doc.Find(`.portlet-body a.font-red[href^="/profile/"]`).AttrOr("href", "")
	if href == "" {
		href = doc.Find(`.fic-title h4 a.font-white[href^="/profile/"]`).AttrOr("href", "")
	}
	return extract.ProfileIDFromPath(href)
}

func metaContent(doc *goquery.Document, property string) extract.StringSource {
	return func() string {
		return doc.Find(`meta[property="` + property + `"]`).AttrOr("content", "")
	}
}

func elementText(doc *goquery.Document, selector string) extract.StringSource {
	return func() string {
		return doc.Find(selector).First().Text()
	}
}

func fragmentsOf(doc *goquery.Document, selector string) extract.ListSource {
	return func() []string {
		return htmlutil.TextFragments(doc.Find(selector))
	}
}
