// Package geo looks up the rough physical and network location of the
// resolved IP via the ip-api.com JSON endpoint. Best-effort report
// enrichment: failures surface as an absent section, never as a dead run.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint = "http://ip-api.com/json/"
	fields          = "status,message,country,countryCode,regionName,city,lat,lon,isp,org,as,query"
)

// Location is the answer for one IP.
type Location struct {
	IP          string  `json:"ip"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Region      string  `json:"region,omitempty"`
	City        string  `json:"city,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Org         string  `json:"org,omitempty"`
	AS          string  `json:"as,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
}

// Client queries the geolocation service. Endpoint is overridable for tests.
type Client struct {
	HTTP     *http.Client
	Endpoint string
}

func NewClient() *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 5 * time.Second},
		Endpoint: defaultEndpoint,
	}
}

// ip-api answer; AS comes as "AS15169 Google LLC".
type apiResult struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	Country string  `json:"country"`
	Code    string  `json:"countryCode"`
	Region  string  `json:"regionName"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	ISP     string  `json:"isp"`
	Org     string  `json:"org"`
	AS      string  `json:"as"`
	Query   string  `json:"query"`
}

// Lookup resolves the location of one IP.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("empty IP for geolocation")
	}

	url := c.Endpoint + ip + "?fields=" + fields
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ProbeNio-Geolocation/1.0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("geolocation read: %w", err)
	}
	var r apiResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("geolocation parse: %w", err)
	}
	if r.Status != "success" {
		return nil, fmt.Errorf("geolocation status=%s message=%s", r.Status, r.Message)
	}

	return &Location{
		IP:          ip,
		Country:     r.Country,
		CountryCode: r.Code,
		Region:      r.Region,
		City:        r.City,
		ISP:         r.ISP,
		Org:         r.Org,
		AS:          r.AS,
		Lat:         r.Lat,
		Lon:         r.Lon,
	}, nil
}
