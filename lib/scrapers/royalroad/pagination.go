package royalroad

import (
	"net/url"
	"strings"

	"royalgraph/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// NextReviewsPage finds the href of the "next" reviews link if the
// page has one, resolved against the page's own url. rel=next is
// preferred; older page templates only mark the link by its text.
func NextReviewsPage(doc *goquery.Document, pageURL string) (string, bool) {
	href := doc.Find(`ul.pagination a[rel="next"]`).AttrOr("href", "")
	if href == "" {
		for _, a := range htmlutil.GetAnchors(doc.Find("ul.pagination a")) {
			if strings.EqualFold(a.Name, "next") || strings.Contains(a.Name, "Next") {
				href = a.Href
				break
			}
		}
	}
	if href == "" {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return href, true
	}
	link, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(link).String(), true
}
