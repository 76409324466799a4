/**
 * @description
 * This package provides a client for the geocoding API used to resolve
 * free-text intervention addresses to coordinates and a city label, and to
 * canonicalize city names. Dispatch treats every call as best-effort; callers
 * degrade gracefully when the geocoder is down.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, net/url, time: Standard Go libraries.
 */
package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Client is a client for the geocoding API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new geocoding API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Location is a resolved address: coordinates plus the city label the
// geocoder attributes to them.
type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	City string  `json:"city"`
}

type geocodeResponse struct {
	Data struct {
		Lat  float64 `json:"lat"`
		Lng  float64 `json:"lng"`
		City string  `json:"city"`
	} `json:"data"`
}

type cityResponse struct {
	Data struct {
		Canonical string `json:"canonical"`
	} `json:"data"`
}

// ErrorResponse represents an error from the geocoding API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("geocoder api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown geocoder api error"
}

// Resolve geocodes a free-text address.
func (c *Client) Resolve(ctx context.Context, addressText string) (*Location, error) {
	endpoint := c.BaseURL + "/api/v1/geocode?q=" + url.QueryEscape(addressText)

	var resp geocodeResponse
	if err := c.doGet(ctx, "geocode", endpoint, &resp); err != nil {
		return nil, err
	}
	return &Location{Lat: resp.Data.Lat, Lng: resp.Data.Lng, City: resp.Data.City}, nil
}

// ReverseCity returns the geocoder's canonical spelling of a city label.
func (c *Client) ReverseCity(ctx context.Context, city string) (string, error) {
	endpoint := c.BaseURL + "/api/v1/cities/canonical?name=" + url.QueryEscape(city)

	var resp cityResponse
	if err := c.doGet(ctx, "canonical_city", endpoint, &resp); err != nil {
		return "", err
	}
	if resp.Data.Canonical == "" {
		return city, nil
	}
	return resp.Data.Canonical, nil
}

func (c *Client) doGet(ctx context.Context, op, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-geo-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=geo_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// DistanceKm computes the great-circle distance between two points. Used for
// rough proximity display; no routing precision is implied.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
