package royalroad

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseDoc(t testing.TB, page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

const fictionPage = `<html><head>
<link rel="canonical" href="https://www.royalroad.com/fiction/89034/nightmare-realm-summoner"/>
<meta property="og:title" content="Nightmare Realm Summoner"/>
<meta property="og:url" content="https://www.royalroad.com/fiction/89034/nightmare-realm-summoner"/>
<meta property="og:description" content="A short teaser."/>
<meta property="books:author" content="PaleDrake"/>
<meta property="books:rating:value" content="4.53"/>
<script>
    window.fictionId = 89034;
</script>
</head><body>
<div class="fic-title">
    <h1 class="font-white">Nightmare Realm Summoner</h1>
    <h4><a class="font-white" href="/profile/4521/paledrake">PaleDrake</a></h4>
</div>
<div class="description">
    <div class="hidden-content">
        <p>He signed the contract.</p>
        <p>The realm answered.</p>
    </div>
</div>
<span class="tags">
    <a class="fiction-tag" href="/fictions/tag/fantasy">Fantasy</a>
    <a class="fiction-tag" href="/fictions/tag/litrpg">LitRPG</a>
    <a class="fiction-tag" href="/fictions/tag/action">Action</a>
</span>
<div class="fiction-stats">
    <ul>
        <li>Followers :</li>
        <li>1,532</li>
        <li>Pages :</li>
        <li>610</li>
    </ul>
</div>
</body></html>`

func TestExtractFiction(t *testing.T) {
	doc := parseDoc(t, fictionPage)
	f := ExtractFiction(context.Background(), doc, "https://www.royalroad.com/fiction/89034/nightmare-realm-summoner")

	require.Equal(t, int64(89034), f.FictionID)
	require.Equal(t, "Nightmare Realm Summoner", f.Title)
	require.Equal(t, "PaleDrake", f.Author)
	require.NotNil(t, f.AuthorID)
	require.Equal(t, int64(4521), *f.AuthorID)
	require.Equal(t, "https://www.royalroad.com/fiction/89034/nightmare-realm-summoner", f.URL)
	require.Equal(t, "He signed the contract.\nThe realm answered.", f.Description)
	require.Equal(t, []string{"Fantasy", "LitRPG", "Action"}, f.Tags)
	require.NotNil(t, f.Rating)
	require.Equal(t, 4.53, *f.Rating)
	require.NotNil(t, f.FollowerCount)
	require.Equal(t, int64(1532), *f.FollowerCount)
	require.True(t, f.Valid())
}

func TestExtractFictionDeterministic(t *testing.T) {
	sourceURL := "https://www.royalroad.com/fiction/89034/nightmare-realm-summoner"
	a := ExtractFiction(context.Background(), parseDoc(t, fictionPage), sourceURL)
	b := ExtractFiction(context.Background(), parseDoc(t, fictionPage), sourceURL)
	require.Empty(t, cmp.Diff(a, b))
}

func TestExtractFictionFallbacks(t *testing.T) {
	// no meta tags, no canonical link, no inline id script: title falls
	// back to markup, url to the source url, the id to the url path
	page := `<html><head></head><body>
	<h1 class="font-white">Backup Title</h1>
	<div class="portlet-body">
	    <a class="font-red" href="/profile/77/writer">Writer</a>
	</div>
	<div class="description">Single block description.</div>
	</body></html>`

	sourceURL := "https://www.royalroad.com/fiction/555/backup-title"
	f := ExtractFiction(context.Background(), parseDoc(t, page), sourceURL)

	require.Equal(t, int64(555), f.FictionID)
	require.Equal(t, "Backup Title", f.Title)
	require.Equal(t, "Writer", f.Author)
	require.NotNil(t, f.AuthorID)
	require.Equal(t, int64(77), *f.AuthorID)
	require.Equal(t, sourceURL, f.URL)
	require.Equal(t, "Single block description.", f.Description)
	require.Nil(t, f.Rating)
	require.Nil(t, f.FollowerCount)
	require.Empty(t, f.Tags)
}

func TestExtractFictionMetaPriority(t *testing.T) {
	// twitter:title outranks og:title which outranks the h1
	page := `<html><head>
	<meta property="twitter:title" content="Twitter Title"/>
	<meta property="og:title" content="OG Title"/>
	</head><body><h1 class="font-white">Markup Title</h1></body></html>`

	f := ExtractFiction(context.Background(), parseDoc(t, page), "https://www.royalroad.com/fiction/1/x")
	require.Equal(t, "Twitter Title", f.Title)
}

func TestExtractFictionDescriptionSource(t *testing.T) {
	// the hidden-content block wins in full over the og:description,
	// fragments from the two sources never mix
	page := `<html><head>
	<meta property="og:description" content="Truncated teaser..."/>
	</head><body>
	<div class="description"><div class="hidden-content">
	    <p>Full one.</p><p>Full two.</p>
	</div></div>
	</body></html>`

	f := ExtractFiction(context.Background(), parseDoc(t, page), "https://www.royalroad.com/fiction/1/x")
	require.Equal(t, "Full one.\nFull two.", f.Description)

	// without the block the meta teaser is used, markup stripped
	page = `<html><head>
	<meta property="og:description" content="&lt;b&gt;Bold&lt;/b&gt; teaser."/>
	</head><body></body></html>`

	f = ExtractFiction(context.Background(), parseDoc(t, page), "https://www.royalroad.com/fiction/1/x")
	require.Equal(t, "Bold teaser.", f.Description)
}

func TestExtractFictionScriptIdAndOgUrl(t *testing.T) {
	// no canonical link and a url that carries no id: the id comes from
	// the inline script, the url from og:url
	page := `<html><head>
	<meta property="og:url" content="https://www.royalroad.com/fiction/89034/nightmare-realm-summoner"/>
	<script>window.fictionId = 89034;</script>
	</head><body>
	<span class="tags">
	    <a class="fiction-tag">Fantasy</a>
	    <a class="fiction-tag">Action</a>
	    <a class="fiction-tag">Comedy</a>
	</span>
	<div class="fiction-stats"><ul>
	    <li>Followers :</li>
	    <li>1,532</li>
	</ul></div>
	</body></html>`

	f := ExtractFiction(context.Background(), parseDoc(t, page), "https://www.royalroad.com/latest")

	require.Equal(t, int64(89034), f.FictionID)
	require.Equal(t, "https://www.royalroad.com/fiction/89034/nightmare-realm-summoner", f.URL)
	require.Equal(t, []string{"Fantasy", "Action", "Comedy"}, f.Tags)
	require.NotNil(t, f.FollowerCount)
	require.Equal(t, int64(1532), *f.FollowerCount)
}

func TestExtractFictionIdFromScript(t *testing.T) {
	page := `<html><head>
	<script>var other = 3; window.fictionId = 89034;</script>
	</head><body></body></html>`

	f := ExtractFiction(context.Background(), parseDoc(t, page), "https://www.royalroad.com/syndication/89034")
	require.Equal(t, int64(89034), f.FictionID)

	// unresolvable everywhere leaves the record invalid but returned
	f = ExtractFiction(context.Background(), parseDoc(t, "<html><body></body></html>"), "https://www.royalroad.com/home")
	require.Equal(t, int64(0), f.FictionID)
	require.False(t, f.Valid())
}
