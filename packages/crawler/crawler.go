package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
	"github.com/dancharlton9/gambling-blocklist/packages/metrics"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	metaRefreshLimit = 256 << 10
)

type Options struct {
	FetchTimeout      time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
	AcceptLanguage    string
	MaxBodyBytes      int64
	MaxRedirects      int
}

// Crawler loads aggregator pages and follows affiliate redirects. Page loads
// share one client; every navigation gets its own disposable client.
type Crawler struct {
	opts      Options
	client    *http.Client
	transport *http.Transport
	polite    *Politeness
}

func New(opts Options, polite *Politeness) *Crawler {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	if polite == nil {
		polite = NewPoliteness(0, 0)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	c := &Crawler{opts: opts, transport: transport, polite: polite}
	c.client = &http.Client{
		Timeout:       opts.FetchTimeout,
		Transport:     transport,
		CheckRedirect: c.checkRedirect,
	}
	return c
}

func (c *Crawler) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= c.opts.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	return nil
}

func (c *Crawler) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	if c.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.opts.AcceptLanguage)
	}
	return req, nil
}

// Load fetches an aggregator page and enumerates its links.
func (c *Crawler) Load(ctx context.Context, rawURL string) (*domain.Page, error) {
	slog.Debug("Starting page load", "url", rawURL)
	if err := c.polite.Wait(ctx, OriginOf(rawURL)); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.PagesFetched.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.PagesFetched.WithLabelValues("bad_status").Inc()
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		metrics.PagesFetched.WithLabelValues("non_html").Inc()
		return nil, fmt.Errorf("content-type is not HTML: %s", contentType)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, c.opts.MaxBodyBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}
	metrics.PagesFetched.WithLabelValues("ok").Inc()

	page := &domain.Page{
		URL:   resp.Request.URL.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: ExtractLinks(doc),
	}
	page.Language = DetectLanguage(doc)

	slog.Debug("Page loaded", "url", rawURL, "final_url", page.URL, "links", len(page.Links), "language", page.Language)
	return page, nil
}

// Navigate follows rawURL through HTTP and meta-refresh redirects and returns
// where it ends up. Each call runs in a fresh client with its own cookie jar
// and connection pool, torn down before returning.
func (c *Crawler) Navigate(ctx context.Context, rawURL string) (string, error) {
	if err := c.polite.Wait(ctx, OriginOf(rawURL)); err != nil {
		return "", err
	}

	if c.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.NavigationTimeout)
		defer cancel()
	}

	client, teardown := c.isolatedClient()
	defer teardown()

	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNavigation, err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		navErr := navigationError(ctx, err)
		metrics.ObserveNavigation(start, navErr)
		return "", navErr
	}
	defer resp.Body.Close()
	metrics.ObserveNavigation(start, nil)

	final := resp.Request.URL
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		if target := metaRefreshTarget(io.LimitReader(resp.Body, metaRefreshLimit), final); target != "" {
			return target, nil
		}
	}
	return final.String(), nil
}

// Click follows the page link at index the way a browser click would.
func (c *Crawler) Click(ctx context.Context, page *domain.Page, index int) (string, error) {
	if page == nil || index < 0 || index >= len(page.Links) {
		return "", fmt.Errorf("click: no link at index %d", index)
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return "", fmt.Errorf("click: bad page url: %w", err)
	}
	target, err := base.Parse(strings.TrimSpace(page.Links[index].Href))
	if err != nil {
		return "", fmt.Errorf("click: bad href: %w", err)
	}
	return c.Navigate(ctx, target.String())
}

func (c *Crawler) isolatedClient() (*http.Client, func()) {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	tr := c.transport.Clone()
	client := &http.Client{
		Transport:     tr,
		Jar:           jar,
		CheckRedirect: c.checkRedirect,
	}
	return client, tr.CloseIdleConnections
}

func navigationError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrNavigationTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNavigation, err)
}

var onclickURLRe = regexp.MustCompile(`(?:location(?:\.href)?\s*=|window\.open\s*\()\s*['"]([^'"]+)['"]`)

// ExtractLinks enumerates anchors plus button-like elements that carry a
// target URL in a data attribute or an onclick handler.
func ExtractLinks(doc *goquery.Document) []domain.PageLink {
	var links []domain.PageLink

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, domain.PageLink{Href: strings.TrimSpace(href), Text: linkText(s)})
	})

	doc.Find("[data-href], [data-url], [data-link], [data-out]").Each(func(i int, s *goquery.Selection) {
		for _, attr := range []string{"data-href", "data-url", "data-link", "data-out"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				links = append(links, domain.PageLink{Href: strings.TrimSpace(v), Text: linkText(s)})
				return
			}
		}
	})

	doc.Find("[onclick]").Each(func(i int, s *goquery.Selection) {
		js, _ := s.Attr("onclick")
		if m := onclickURLRe.FindStringSubmatch(js); m != nil {
			links = append(links, domain.PageLink{Href: m[1], Text: linkText(s)})
		}
	})

	return links
}

func linkText(s *goquery.Selection) string {
	if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if alt, ok := s.Find("img[alt]").First().Attr("alt"); ok {
		return strings.TrimSpace(alt)
	}
	return ""
}

// DetectLanguage returns the ISO 639-3 code of the page text, or "" when the
// detection is unreliable.
func DetectLanguage(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	words := strings.Fields(body.Text())
	if len(words) > 200 {
		words = words[:200]
	}
	text := strings.TrimSpace(doc.Find("title").First().Text() + " " + strings.Join(words, " "))
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}

func metaRefreshTarget(r io.Reader, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}
	var target string
	doc.Find("meta[http-equiv]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		target = refreshURL(content)
		return target == ""
	})
	if target == "" {
		return ""
	}
	u, err := base.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

// refreshURL extracts the URL from a refresh directive like `0; url='https://x'`.
func refreshURL(content string) string {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 4 && strings.EqualFold(part[:4], "url=") {
			return strings.Trim(strings.TrimSpace(part[4:]), `'"`)
		}
	}
	return ""
}
