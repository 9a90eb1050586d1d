package municipality

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

// GeoAPIDirectory reads the national municipality list from a geoapi.pt style
// endpoint returning a JSON array of names.
type GeoAPIDirectory struct {
	url    string
	client *http.Client
}

func NewGeoAPIDirectory(url string, timeout time.Duration) *GeoAPIDirectory {
	return &GeoAPIDirectory{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *GeoAPIDirectory) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("geoapi returned %s", resp.Status)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode municipalities: %w", err)
	}
	return names, nil
}

type StaticDirectory struct {
	names []string
}

func NewStaticDirectory(names []string) *StaticDirectory {
	return &StaticDirectory{names: slices.Clone(names)}
}

func (d *StaticDirectory) Fetch(ctx context.Context) ([]string, error) {
	return slices.Clone(d.names), nil
}
