// Package royalroad turns fetched royalroad.com pages into typed
// Fiction and Review records. Extraction is pure: it never performs
// network I/O and two passes over the same page body produce the same
// records.
package royalroad

// SchemaVersion is stamped on every record at the pipeline boundary,
// alongside the scrape timestamp. Extractors never set either.
const SchemaVersion = 1

// Fiction is one story entry. FictionID is the merge key; zero means
// the id could not be resolved and the record must not be persisted.
// Every other field is last-write-wins on re-scrape.
type Fiction struct {
	FictionID     int64
	Title         string
	Author        string
	URL           string
	Description   string
	Tags          []string
	Rating        *float64
	FollowerCount *int64
	AuthorID      *int64

	ScrapedAt string
	Version   int
}

func (f Fiction) Valid() bool {
	return f.FictionID != 0
}

// missingFields reports which of the fields the site normally serves
// came back absent. AuthorID is not listed, profile links are often
// missing for ghosted accounts.
func (f Fiction) missingFields() []string {
	var missing []string
	if f.Title == "" {
		missing = append(missing, "title")
	}
	if f.Author == "" {
		missing = append(missing, "author")
	}
	if f.URL == "" {
		missing = append(missing, "url")
	}
	if f.Description == "" {
		missing = append(missing, "description")
	}
	if len(f.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if f.Rating == nil {
		missing = append(missing, "rating")
	}
	if f.FollowerCount == nil {
		missing = append(missing, "follower_count")
	}
	if f.FictionID == 0 {
		missing = append(missing, "fiction_id")
	}
	return missing
}

// Review is one reader review of a Fiction. ReviewID is the merge
// key. FictionID is injected by the spider, never read from the
// review fragment itself. The four detail ratings are present only
// when the reviewer opted into advanced scoring; each is independent
// of the others.
type Review struct {
	ReviewID          int64
	Title             string
	Text              string
	Reviewer          string
	ReviewerID        *int64
	ReviewedAtTime    string
	ReviewedAtChapter string
	OverallRating     *float64

	StyleRating     *float64
	StoryRating     *float64
	GrammarRating   *float64
	CharacterRating *float64

	FictionID int64

	ScrapedAt string
	Version   int
}

// Valid reports whether the review can be attributed and merged: both
// identity keys must have resolved.
func (r Review) Valid() bool {
	return r.ReviewID != 0 && r.FictionID != 0
}

func (r Review) missingFields() []string {
	var missing []string
	if r.ReviewID == 0 {
		missing = append(missing, "review_id")
	}
	if r.Title == "" {
		missing = append(missing, "review_title")
	}
	if r.Text == "" {
		missing = append(missing, "review")
	}
	if r.Reviewer == "" {
		missing = append(missing, "by")
	}
	if r.ReviewerID == nil {
		missing = append(missing, "author_id")
	}
	if r.ReviewedAtTime == "" {
		missing = append(missing, "reviewed_at_time")
	}
	if r.ReviewedAtChapter == "" {
		missing = append(missing, "reviewed_at_chapter")
	}
	if r.OverallRating == nil {
		missing = append(missing, "overall_rating")
	}
	return missing
}
