// Package webprovider claims http(s) URLs as pages whose content is the page
// converted to Markdown. With link traversal enabled, the links on a page
// are discovered as further pages up to a maximum depth.
package webprovider

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/jadenpxrk/fileprompt/internal/record"
)

// DefaultTimeout bounds every page request made by the default client.
const DefaultTimeout = 30 * time.Second

// Options configures a Provider.
type Options struct {
	Client        *http.Client // defaults to a client with DefaultTimeout
	TraverseLinks bool
	MaxDepth      int // pages deeper than this are never discovered
	Logger        *log.Logger
}

// Provider fetches web pages.
type Provider struct {
	opts   Options
	logger *log.Logger
}

var (
	_ record.Provider = (*Provider)(nil)
	_ record.Leaf     = (*Page)(nil)
)

// New returns a Provider.
func New(opts Options) *Provider {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: DefaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Provider{opts: opts, logger: logger}
}

// IsWebURL reports whether source is an http or https URL.
func IsWebURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Claim accepts http(s) URLs. The fragment is dropped from the source so
// that anchors on the same page are one record. Nothing is fetched yet.
func (p *Provider) Claim(source string) (record.Record, bool) {
	if !IsWebURL(source) {
		return nil, false
	}
	return p.newPage(source, 0)
}

func (p *Provider) newPage(raw string, depth int) (*Page, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		p.logger.Debug("Invalid URL", "url", raw, "error", err)
		return nil, false
	}
	u.Fragment = ""
	return &Page{url: u, depth: depth, p: p}, true
}

// Discover yields the pages linked from a page when link traversal is on
// and the page is shallower than the maximum depth.
func (p *Provider) Discover(r record.Record) iter.Seq[record.Record] {
	page, ok := r.(*Page)
	if !ok || !p.opts.TraverseLinks || page.depth >= p.opts.MaxDepth {
		return record.Empty
	}
	return func(yield func(record.Record) bool) {
		page.fetch()
		for _, link := range page.links {
			next, ok := p.newPage(link, page.depth+1)
			if !ok {
				continue
			}
			if !yield(next) {
				return
			}
		}
	}
}

// Page is a fetched web page. Fetching happens once, on first use.
type Page struct {
	url   *url.URL
	depth int
	p     *Provider

	once     sync.Once
	markdown string
	ok       bool
	links    []string
}

func (pg *Page) Source() string { return pg.url.String() }

// Depth is the number of links followed to reach the page.
func (pg *Page) Depth() int { return pg.depth }

// Content returns the page as Markdown, or false if it could not be fetched
// or converted.
func (pg *Page) Content() (string, bool) {
	pg.fetch()
	return pg.markdown, pg.ok
}

func (pg *Page) fetch() {
	pg.once.Do(func() {
		body, err := pg.p.get(pg.url.String())
		if err != nil {
			pg.p.logger.Warn("Could not fetch page", "url", pg.url, "error", err)
			return
		}

		converter := md.NewConverter("", true, nil)
		markdown, err := converter.ConvertString(body)
		if err != nil {
			pg.p.logger.Warn("Could not convert page to Markdown", "url", pg.url, "error", err)
		} else {
			pg.markdown, pg.ok = markdown, true
			pg.p.logger.Debug("Fetched page", "url", pg.url, "bytes", len(markdown))
		}

		if pg.p.opts.TraverseLinks && pg.depth < pg.p.opts.MaxDepth {
			pg.links = pg.p.links(pg.url, body)
		}
	})
}

// get fetches an HTML document.
func (p *Provider) get(rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	res, err := p.opts.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("status code %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "text/html") {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(body), nil
}

// links extracts the absolute http(s) targets of a[href] elements.
func (p *Provider) links(base *url.URL, body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		p.logger.Warn("Could not parse HTML for links", "url", base, "error", err)
		return nil
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") {
			return
		}
		target, err := base.Parse(href)
		if err != nil {
			p.logger.Debug("Could not resolve link", "href", href, "page", base, "error", err)
			return
		}
		if target.Scheme != "http" && target.Scheme != "https" {
			return
		}
		target.Fragment = ""
		out = append(out, target.String())
	})
	return out
}
