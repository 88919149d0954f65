// Package search looks up book metadata in the Google Books volumes API.
//
// The client proxies the public https://www.googleapis.com/books/v1/volumes
// endpoint and flattens its verbose volumeInfo objects into the small Result
// struct our API and CLI actually need (title, authors, cover, year).
//
// WHY PROXY INSTEAD OF CALLING FROM THE BROWSER?
// The frontend could hit Google directly, but routing through our server:
//   - Keeps an optional API key out of the client
//   - Gives us one place to cap result counts and normalise the shape
//   - Lets the CLI reuse the exact same search path
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Google Books volumes endpoint.
const DefaultBaseURL = "https://www.googleapis.com/books/v1/volumes"

// maxResults caps how many volumes we request per query. Google allows up
// to 40, but a search-as-you-type box only ever shows a handful.
const maxResults = 10

// Result is one book hit, flattened from Google's volumeInfo.
type Result struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Cover         string   `json:"cover"`
	PublishedYear string   `json:"publishedYear"`
}

// volumesResponse mirrors the slice of Google's response we care about.
// Google returns a much larger object — we only unmarshal the fields we need.
//
// API docs: https://developers.google.com/books/docs/v1/reference/volumes
type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			PublishedDate string   `json:"publishedDate"`
			ImageLinks    struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Client queries the Google Books API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a search client. baseURL is configurable so tests can
// point it at an httptest.Server; pass "" for the real Google endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		// An explicit timeout so a slow upstream can't pin our request
		// handler goroutines indefinitely.
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Search runs a title/author query and returns flattened results.
// An empty or whitespace query returns an empty slice without a network call.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	// url.Values handles the query-string escaping ("dune messiah" → "dune+messiah").
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprint(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: calling books API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: books API returned status %d", resp.StatusCode)
	}

	var volumes volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&volumes); err != nil {
		return nil, fmt.Errorf("search: decoding books API response: %w", err)
	}

	results := make([]Result, 0, len(volumes.Items))
	for _, item := range volumes.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}
		results = append(results, Result{
			Title:         info.Title,
			Authors:       info.Authors,
			Cover:         httpsify(info.ImageLinks.Thumbnail),
			PublishedYear: yearOf(info.PublishedDate),
		})
	}

	return results, nil
}

// httpsify upgrades Google's http:// thumbnail links so covers load on
// pages served over HTTPS without mixed-content warnings.
func httpsify(link string) string {
	if after, ok := strings.CutPrefix(link, "http://"); ok {
		return "https://" + after
	}
	return link
}

// yearOf extracts the year from Google's publishedDate, which may be
// "2006", "2006-01" or "2006-01-02".
func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return date
}
