// Package core is the fetch layer for royalroad.com: a resty client
// behind the site's Cloudflare front, with a politeness delay between
// requests. The extraction code never touches it, pages flow out of
// here as plain (url, body) pairs.
package core

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"royalgraph/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/royalroad/core")

var instrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables raw request/response dumps for
// every client created afterwards.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	instrumentOutput = out
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	delay   time.Duration
}

type ClientOptions struct {
	BaseUrl string
	// minimum pause before each request; a random jitter of up to
	// half the delay is added on top
	Delay time.Duration
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, instrumentOutput)

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
		delay:   opts.Delay,
	}
	return c, nil
}

// Page fetches one page and returns its body. The politeness delay
// runs before the request, so back-to-back calls on the same client
// never hammer the site.
func (c *Client) Page(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.pause(ctx); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("unexpected status %d fetching %s", res.StatusCode(), pageURL)
	}
	return res.Body(), nil
}

func (c *Client) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	jitterMs, err := random.IntRange(0, int(c.delay.Milliseconds()/2)+1)
	if err != nil {
		jitterMs = 0
	}
	wait := c.delay + time.Duration(jitterMs)*time.Millisecond

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
