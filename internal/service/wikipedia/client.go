package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	apiEndpoint      = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent = "SymposiumChat/1.0 (https://github.com/symposium-ai/symposium; contact@symposium.chat)"
	thumbnailSize    = 200
)

// Client looks up portrait thumbnails on Wikipedia. Wikipedia requires
// a descriptive User-Agent, so the zero value is not usable; use New.
type Client struct {
	httpClient *http.Client
	userAgent  string
	endpoint   string
}

// New builds a client with a short timeout; portrait lookups are
// best-effort decoration, never worth stalling a request for.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		userAgent:  defaultUserAgent,
		endpoint:   apiEndpoint,
	}
}

// ImageURL resolves the main image thumbnail for a person's page.
// Two steps: search for the page title, then fetch its page image.
// Returns an empty string without error when no image exists.
func (c *Client) ImageURL(ctx context.Context, name string) (string, error) {
	title, err := c.searchTitle(ctx, name)
	if err != nil || title == "" {
		return "", err
	}

	params := url.Values{
		"action":      {"query"},
		"titles":      {title},
		"prop":        {"pageimages"},
		"format":      {"json"},
		"pithumbsize": {fmt.Sprint(thumbnailSize)},
	}

	var payload struct {
		Query struct {
			Pages map[string]struct {
				Thumbnail *struct {
					Source string `json:"source"`
				} `json:"thumbnail"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &payload); err != nil {
		return "", err
	}

	for _, page := range payload.Query.Pages {
		if page.Thumbnail != nil && page.Thumbnail.Source != "" {
			return page.Thumbnail.Source, nil
		}
	}
	return "", nil
}

func (c *Client) searchTitle(ctx context.Context, name string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {name},
		"format":   {"json"},
		"srlimit":  {"1"},
	}

	var payload struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &payload); err != nil {
		return "", err
	}
	if len(payload.Query.Search) == 0 {
		return "", nil
	}
	return payload.Query.Search[0].Title, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
