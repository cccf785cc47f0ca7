// Package arxiv provides a minimal client for the arXiv Atom query API
// (https://info.arxiv.org/help/api/). It covers the single operation the rest
// of the system needs: a relevance-ranked topic search returning paper
// metadata.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public arXiv query endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

const defaultTimeout = 30 * time.Second

// ErrUnavailable wraps any network, HTTP, or decoding failure of the query
// API. Callers match it with errors.Is to distinguish "search is down" from
// programming errors.
var ErrUnavailable = errors.New("arxiv: search unavailable")

// Paper is the metadata extracted from one Atom feed entry.
type Paper struct {
	// ID is the short arXiv identifier including version, e.g. "2301.12345v1".
	ID string

	Title     string
	Authors   []string
	Summary   string
	PDFURL    string
	Published time.Time
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL overrides the query endpoint. Useful for tests and mirrors.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client queries the arXiv Atom API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the public arXiv API unless overridden
// via options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- Atom feed types ----

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Search performs a relevance-ranked full-text search for the given topic and
// returns up to maxResults papers. Network, HTTP, and feed-decoding failures
// are reported wrapped in [ErrUnavailable].
func (c *Client) Search(ctx context.Context, topic string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 1
	}

	params := url.Values{}
	params.Set("search_query", "all:"+topic)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "relevance")

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET query: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET query returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", ErrUnavailable, err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entryToPaper(entry))
	}
	return papers, nil
}

// entryToPaper maps one Atom entry to a Paper, deriving the short ID from the
// entry's abs URL and picking the PDF link out of the link list.
func entryToPaper(entry atomEntry) Paper {
	p := Paper{
		ID:      shortID(entry.ID),
		Title:   collapseWhitespace(entry.Title),
		Summary: strings.TrimSpace(entry.Summary),
	}
	for _, a := range entry.Authors {
		p.Authors = append(p.Authors, a.Name)
	}
	for _, l := range entry.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		p.Published = t
	}
	return p
}

// shortID extracts the short arXiv identifier from an entry ID URL such as
// "http://arxiv.org/abs/2301.12345v1". Old-style IDs keep their category
// prefix ("math/0211159v1").
func shortID(entryID string) string {
	_, after, found := strings.Cut(entryID, "/abs/")
	if !found {
		return entryID
	}
	return after
}

// collapseWhitespace normalizes the multi-line titles the Atom feed produces
// into single-line strings.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
