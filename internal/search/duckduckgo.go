// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// duckDuckGoEndpoint is the DuckDuckGo HTML search page. Declared as a var
// so tests can substitute an httptest server.
var duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// duckDuckGoInterval is the minimum gap between two DuckDuckGo queries
// across the process.
var duckDuckGoInterval = time.Second

var ddgRateLimit struct {
	mu   sync.Mutex
	last time.Time
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGoBackend scrapes the DuckDuckGo HTML results page. It needs no
// API key.
type DuckDuckGoBackend struct {
	Client *http.Client
	Limit  int
}

// Name returns the backend identifier.
func (b *DuckDuckGoBackend) Name() string { return "web" }

// Search posts the query to DuckDuckGo and parses the result blocks.
func (b *DuckDuckGoBackend) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty web query")
	}

	if err := waitDuckDuckGoSlot(ctx); err != nil {
		return nil, err
	}

	limit := b.Limit
	if limit <= 0 {
		limit = 1
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, duckDuckGoEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httputil.DoWithRetry(ctx, clientOrDefault(b.Client), req, 1)
	if err != nil {
		return nil, requestError(ctx, b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(b.Name(), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(ctx, b.Name(), err)
	}

	results, err := parseDuckDuckGo(string(body), limit)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Provider: b.Name(), Err: err}
	}
	for i := range results {
		results[i].Score = positionScore(i, len(results))
	}
	return results, nil
}

// waitDuckDuckGoSlot blocks until the process-wide rate limit allows
// another query.
func waitDuckDuckGoSlot(ctx context.Context) error {
	ddgRateLimit.mu.Lock()
	wait := time.Until(ddgRateLimit.last.Add(duckDuckGoInterval))
	if wait < 0 {
		wait = 0
	}
	ddgRateLimit.last = time.Now().Add(wait)
	ddgRateLimit.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseDuckDuckGo walks the results page. Each hit is a div with class
// "result" holding an a.result__a title link and an a.result__snippet.
// Hits without a snippet are skipped.
func parseDuckDuckGo(page string, limit int) ([]types.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var results []types.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if r, ok := resultFromNode(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func resultFromNode(n *html.Node) (types.SearchResult, bool) {
	titleNode := findByClass(n, "a", "result__a")
	snippetNode := findByClass(n, "", "result__snippet")
	if titleNode == nil || snippetNode == nil {
		return types.SearchResult{}, false
	}

	title := collapseSpace(textContent(titleNode))
	snippet := collapseSpace(textContent(snippetNode))
	link := resolveRedirect(attr(titleNode, "href"))
	if title == "" || link == "" {
		return types.SearchResult{}, false
	}

	return types.SearchResult{
		Identifier: link,
		Title:      title,
		URL:        link,
		Authors:    []string{"Web Source"},
		Excerpt:    snippet,
		Venue:      "Web Article",
		Provider:   "web",
	}, true
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func findByClass(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode && (tag == "" || n.Data == tag) && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
