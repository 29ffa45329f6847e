package royalroad

import (
	"context"
	"log/slog"
	"strings"

	"royalgraph/lib/extract"
	"royalgraph/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// The advanced score blocks carry no stable identifier, only a
// human-readable aria-label. Brittle against site copy changes, which
// is why the four strings live here as named constants and each one
// is test-covered.
const (
	labelStyleScore     = "Style Score"
	labelStoryScore     = "Story Score"
	labelGrammarScore   = "Grammar Score"
	labelCharacterScore = "Character Score"
)

// ExtractReview builds one Review record from a single isolated
// review fragment (one ".review" element). Every selector is scoped
// to the fragment, never the whole page. FictionID is left unset, the
// spider injects it once the page's fiction id has resolved.
func ExtractReview(ctx context.Context, frag *goquery.Selection) Review {
	r := Review{}

	if id, ok := extract.ReviewIDFromAnchor(frag.AttrOr("id", "")); ok {
		r.ReviewID = id
	}

	r.Title, _ = extract.Trim(frag.Find(".review-header h4.bold.font-blue-dark").First().Text())

	fragments := extract.CollectAll(func() []string {
		return htmlutil.TextFragments(frag.Find(".review-content .review-inner *"))
	})
	r.Text = strings.Join(fragments, "\n")

	reviewerLink := frag.Find(`.review-meta a[href^="/profile/"]`).First()
	r.Reviewer, _ = extract.Trim(reviewerLink.Text())
	if id, ok := extract.ProfileIDFromPath(reviewerLink.AttrOr("href", "")); ok {
		r.ReviewerID = &id
	}

	r.ReviewedAtTime, _ = extract.Timestamp(frag.Find("time[datetime]").AttrOr("datetime", ""))
	r.ReviewedAtChapter, _ = extract.Trim(frag.Find(`.review-header a[href^="/fiction/chapter/"]`).First().Text())

	if rating, ok := extract.StarRating(frag.Find(".overall-score-container .star").AttrOr("class", "")); ok {
		r.OverallRating = &rating
	}

	r.StyleRating = advancedScore(frag, labelStyleScore)
	r.StoryRating = advancedScore(frag, labelStoryScore)
	r.GrammarRating = advancedScore(frag, labelGrammarScore)
	r.CharacterRating = advancedScore(frag, labelCharacterScore)

	for _, field := range r.missingFields() {
		slog.WarnContext(ctx, "review field missing", "field", field, "review_id", r.ReviewID)
	}

	return r
}

// advancedScore locates the detail-score block whose label matches
// and decodes its star class. A missing label means the reviewer
// skipped advanced scoring for that category, not an error.
func advancedScore(frag *goquery.Selection, label string) *float64 {
	var out *float64
	frag.Find("div.advanced-score").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if block.Find(`div[aria-label="` + label + `"]`).Length() == 0 {
			return true
		}
		class := block.Find(`div[class*="star"]`).First().AttrOr("class", "")
		if rating, ok := extract.StarRating(class); ok {
			out = &rating
		}
		return false
	})
	return out
}
