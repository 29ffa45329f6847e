// Package extract holds the field normalizers used by the royalroad
// scraper. Every function is total: input that cannot be parsed yields
// ok == false, never an error. Extraction treats a parse miss as an
// absent value, not a failure.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	separatorRegex = regexp.MustCompile(`[,\s]`)
	starClassRegex = regexp.MustCompile(`star-(\d+)`)
	reviewIdRegex  = regexp.MustCompile(`review-(\d+)`)
	fictionIdPath  = regexp.MustCompile(`/fiction/(\d+)/`)
	profileIdPath  = regexp.MustCompile(`/profile/(\d+)`)
)

func Trim(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}

func ParseFloat(s string) (float64, bool) {
	trimmed, ok := Trim(s)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseInt accepts thousands separators and embedded whitespace,
// the site renders follower counts as "12,345".
func ParseInt(s string) (int64, bool) {
	cleaned := separatorRegex.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// StripMarkup removes tags, keeps text content and trims the result.
func StripMarkup(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	if !strings.ContainsRune(s, '<') {
		return Trim(s)
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return Trim(s)
	}
	var buf strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return Trim(buf.String())
}

// StarRating decodes the site's star encoding: a css class carrying a
// "star-NN" suffix where NN is an integer in [0, 50] counting half
// stars, so "star-45" means 4.5.
func StarRating(class string) (float64, bool) {
	groups := starClassRegex.FindStringSubmatch(class)
	if groups == nil {
		return 0, false
	}
	n, err := strconv.Atoi(groups[1])
	if err != nil || n > 50 {
		return 0, false
	}
	return float64(n) / 10.0, true
}

// FictionIDFromPath matches the /fiction/{id}/... path shape.
func FictionIDFromPath(rawurl string) (int64, bool) {
	return idFromPath(rawurl, fictionIdPath)
}

// ProfileIDFromPath matches the /profile/{id} path shape used by
// author profile links.
func ProfileIDFromPath(rawurl string) (int64, bool) {
	return idFromPath(rawurl, profileIdPath)
}

func idFromPath(rawurl string, pattern *regexp.Regexp) (int64, bool) {
	link, err := url.Parse(strings.TrimSpace(rawurl))
	if err != nil {
		return 0, false
	}
	groups := pattern.FindStringSubmatch(link.Path)
	if groups == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ReviewIDFromAnchor pulls the numeric suffix out of a review
// element's id attribute, e.g. "review-1271589".
func ReviewIDFromAnchor(attr string) (int64, bool) {
	groups := reviewIdRegex.FindStringSubmatch(attr)
	if groups == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Timestamp passes an already ISO-8601 source attribute through
// verbatim, trimming only. It is never reparsed or reformatted.
func Timestamp(s string) (string, bool) {
	return Trim(s)
}
