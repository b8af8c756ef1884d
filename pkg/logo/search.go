package logo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoImage is returned when a search has no usable result.
var ErrNoImage = errors.New("no image found")

// Searcher finds an image URL for a query.
type Searcher interface {
	ImageURL(ctx context.Context, query string) (string, error)
}

// Query is the image search text for an application name.
func Query(name string) string {
	return name + " logo icon filetype:png"
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppStore"

var vqdPattern = regexp.MustCompile(`vqd=["']?([0-9-]+)`)

// DuckDuckGo searches the DuckDuckGo image endpoint. A first request to the
// search page yields a "vqd" token the JSON endpoint requires.
type DuckDuckGo struct {
	BaseURL string
	Client  *http.Client
}

// NewDuckDuckGo returns a searcher for baseURL, e.g. https://duckduckgo.com.
func NewDuckDuckGo(baseURL string, client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: DownloadTimeout}
	}
	return &DuckDuckGo{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

type imageResults struct {
	Results []struct {
		Image     string `json:"image"`
		Thumbnail string `json:"thumbnail"`
	} `json:"results"`
}

// ImageURL returns the first image result for query.
func (d *DuckDuckGo) ImageURL(ctx context.Context, query string) (string, error) {
	page, err := d.get(ctx, "/?"+url.Values{"q": {query}}.Encode(), "")
	if err != nil {
		return "", fmt.Errorf("failed to fetch search token: %w", err)
	}
	m := vqdPattern.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("search token not found")
	}

	params := url.Values{
		"l":   {"us-en"},
		"o":   {"json"},
		"q":   {query},
		"vqd": {string(m[1])},
		"f":   {",,,,,"},
		"p":   {"1"},
	}
	body, err := d.get(ctx, "/i.js?"+params.Encode(), d.BaseURL+"/")
	if err != nil {
		return "", fmt.Errorf("image search failed: %w", err)
	}

	var res imageResults
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to parse image results: %w", err)
	}
	for _, r := range res.Results {
		if r.Image != "" {
			return r.Image, nil
		}
	}
	return "", ErrNoImage
}

func (d *DuckDuckGo) get(ctx context.Context, path, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}
