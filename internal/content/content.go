// Package content performs single-hop structural extraction on pages the
// scan already confirmed reachable: title, meta description, links split
// into internal and external, script sources, hidden form inputs and HTML
// comments, plus the site's robots.txt rules. It never follows the links it
// extracts.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

const (
	userAgent = "ProbeNio/1.0 (+https://github.com/shii9/ProbeNio)"

	// DefaultMaxPages bounds how many confirmed pages one run analyzes.
	DefaultMaxPages = 5

	maxBody       = 512 * 1024
	maxCommentLen = 200
)

// HiddenInput is one <input type="hidden"> occurrence.
type HiddenInput struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Page is the structural extract of one fetched page.
type Page struct {
	URL             string        `json:"url"`
	Status          int           `json:"status"`
	Title           string        `json:"title,omitempty"`
	MetaDescription string        `json:"meta_description,omitempty"`
	InternalLinks   []string      `json:"internal_links,omitempty"`
	ExternalLinks   []string      `json:"external_links,omitempty"`
	Scripts         []string      `json:"scripts,omitempty"`
	HiddenInputs    []HiddenInput `json:"hidden_inputs,omitempty"`
	Comments        []string      `json:"comments,omitempty"`
}

// Robots is the parsed rule set of a robots.txt.
type Robots struct {
	Allow    []string `json:"allow,omitempty"`
	Disallow []string `json:"disallow,omitempty"`
	Sitemaps []string `json:"sitemaps,omitempty"`
}

// Analyzer fetches and dissects pages. Zero-value fields take defaults.
type Analyzer struct {
	Client    *http.Client
	UserAgent string
	MaxPages  int
}

func NewAnalyzer(client *http.Client) *Analyzer {
	if client == nil {
		client = &http.Client{}
	}
	return &Analyzer{Client: client, UserAgent: userAgent, MaxPages: DefaultMaxPages}
}

// Analyze fetches each URL once, up to the page bound, and extracts its
// structure. Unreachable or unparsable pages are skipped; analysis is
// best-effort enrichment and never fails the run.
func (a *Analyzer) Analyze(ctx context.Context, urls []string) []Page {
	limit := a.MaxPages
	if limit <= 0 {
		limit = DefaultMaxPages
	}

	var pages []Page
	seen := map[string]struct{}{}
	for _, u := range urls {
		if len(pages) >= limit {
			break
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		page, err := a.AnalyzePage(ctx, u)
		if err != nil {
			continue
		}
		pages = append(pages, *page)
	}
	return pages
}

// AnalyzePage fetches one page and extracts its structure.
func (a *Analyzer) AnalyzePage(ctx context.Context, pageURL string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL %q: %w", pageURL, err)
	}
	body, status, err := a.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: pageURL, Status: status}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML of %s: %w", pageURL, err)
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.MetaDescription = strings.TrimSpace(desc)
	}

	intSeen, extSeen := map[string]struct{}{}, map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if link.Hostname() == base.Hostname() {
			addUnique(&page.InternalLinks, intSeen, link.String())
		} else {
			addUnique(&page.ExternalLinks, extSeen, link.String())
		}
	})

	scriptSeen := map[string]struct{}{}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		link, ok := resolveLink(base, src)
		if !ok {
			return
		}
		addUnique(&page.Scripts, scriptSeen, link.String())
	})

	doc.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}
		value, _ := s.Attr("value")
		page.HiddenInputs = append(page.HiddenInputs, HiddenInput{Name: name, Value: value})
	})

	page.Comments = extractComments(body)
	return page, nil
}

// Robots fetches and parses baseURL/robots.txt. A missing or erroring
// robots.txt is not an analysis failure; 4xx/5xx answers yield an error the
// caller may ignore.
func (a *Analyzer) Robots(ctx context.Context, baseURL string) (*Robots, error) {
	u := strings.TrimSuffix(baseURL, "/") + "/robots.txt"
	body, status, err := a.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("robots.txt answered %d", status)
	}

	r := &Robots{}
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "allow":
			r.Allow = append(r.Allow, value)
		case "disallow":
			r.Disallow = append(r.Disallow, value)
		case "sitemap":
			r.Sitemaps = append(r.Sitemaps, value)
		}
	}
	return r, nil
}

func (a *Analyzer) fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	ua := a.UserAgent
	if ua == "" {
		ua = userAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// resolveLink turns an href into an absolute http(s) URL against base,
// dropping fragments, javascript:, mailto: and the like.
func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	abs.Fragment = ""
	return abs, true
}

func addUnique(list *[]string, seen map[string]struct{}, s string) {
	if _, dup := seen[s]; dup {
		return
	}
	seen[s] = struct{}{}
	*list = append(*list, s)
}

// extractComments runs a tokenizer pass over the raw body and collects
// non-empty HTML comments, truncated to a readable length.
func extractComments(body []byte) []string {
	var comments []string
	z := xhtml.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return comments
		case xhtml.CommentToken:
			c := strings.TrimSpace(z.Token().Data)
			if c == "" {
				continue
			}
			if len(c) > maxCommentLen {
				c = c[:maxCommentLen]
			}
			comments = append(comments, c)
		}
	}
}
