// Package geoip wraps the IP geolocation collaborator. Lookups happen once
// at session creation and once at lead creation; empty or partial results
// are acceptable and failures never propagate to the caller.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Location is the subset of provider fields the core consumes. All fields
// are nullable in spirit: zero values mean "unknown".
type Location struct {
	Country     string  `json:"country"`
	CountryName string  `json:"country_name"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
}

// Lookuper resolves an IP to a location.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Client queries an ip-api style JSON endpoint: GET {base}/{ip}.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	var loc Location
	if ip == "" {
		return loc, nil
	}

	reqURL := c.baseURL + "/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return loc, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return loc, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return loc, fmt.Errorf("geoip lookup for %s returned status %d", ip, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return loc, err
	}
	return loc, nil
}

// Noop disables geolocation; every lookup returns an unknown location.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (Location, error) {
	return Location{}, nil
}
