package plantdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds an HTTP provider against the given API base URL.
func NewClient(baseURL string) Provider {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *client) CareDefaults(ctx context.Context, species string) (*CareDefaults, error) {
	endpoint := fmt.Sprintf("%s/v1/species/%s/care", c.baseURL, url.PathEscape(species))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plant api returned %d for species %q", resp.StatusCode, species)
	}

	var defaults CareDefaults
	if err := json.NewDecoder(resp.Body).Decode(&defaults); err != nil {
		return nil, err
	}

	return &defaults, nil
}
