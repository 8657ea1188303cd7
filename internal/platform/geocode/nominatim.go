package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khojghar/khojghar-api/internal/domain"
	"github.com/khojghar/khojghar-api/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type NominatimClient struct {
	endpoint     string
	userAgent    string
	httpClient   *http.Client
	suggestLimit int

	// Optional suggestion cache; nil disables caching.
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewNominatim(endpoint, userAgent string, timeout time.Duration, suggestLimit int) *NominatimClient {
	if suggestLimit <= 0 {
		suggestLimit = 5
	}
	return &NominatimClient{
		endpoint:     endpoint,
		userAgent:    userAgent,
		httpClient:   &http.Client{Timeout: timeout},
		suggestLimit: suggestLimit,
	}
}

// WithCache caches Search responses in redis under the joined query.
func (c *NominatimClient) WithCache(client *redis.Client, ttl time.Duration) *NominatimClient {
	c.cache = client
	c.cacheTTL = ttl
	return c
}

// nominatimPlace is the subset of the provider response we read.
// Nominatim encodes coordinates as strings.
type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
	} `json:"address"`
}

func (p *nominatimPlace) city() string {
	if p.Address.City != "" {
		return p.Address.City
	}
	if p.Address.Town != "" {
		return p.Address.Town
	}
	return p.Address.Village
}

func (c *NominatimClient) query(ctx context.Context, q string, limit int) ([]nominatimPlace, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("q", q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode provider returned %d", res.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(res.Body).Decode(&places); err != nil {
		return nil, err
	}
	return places, nil
}

// Forward resolves (address, city) to coordinates. Failures are logged
// and reported as nil; listing creation proceeds without a location.
func (c *NominatimClient) Forward(ctx context.Context, address, city string) *domain.Location {
	q := joinQuery(address, city)
	if q == "" {
		return nil
	}

	places, err := c.query(ctx, q, 1)
	if err != nil {
		logger.WarnContext(ctx, "geocode lookup failed", "error", err, "query", q)
		return nil
	}
	if len(places) == 0 {
		return nil
	}

	lat, err1 := strconv.ParseFloat(places[0].Lat, 64)
	lng, err2 := strconv.ParseFloat(places[0].Lon, 64)
	if err1 != nil || err2 != nil {
		logger.WarnContext(ctx, "geocode returned malformed coordinates", "query", q)
		return nil
	}

	return &domain.Location{Lat: lat, Lng: lng}
}

func (c *NominatimClient) Search(ctx context.Context, q, city string) ([]Suggestion, error) {
	full := joinQuery(q, city)
	if full == "" {
		return []Suggestion{}, nil
	}

	cacheKey := "geocode:suggest:" + strings.ToLower(full)
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached []Suggestion
			if json.Unmarshal([]byte(data), &cached) == nil {
				return cached, nil
			}
		}
	}

	places, err := c.query(ctx, full, c.suggestLimit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(places))
	for _, p := range places {
		lat, err1 := strconv.ParseFloat(p.Lat, 64)
		lng, err2 := strconv.ParseFloat(p.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			ID:    p.PlaceID,
			Label: p.DisplayName,
			City:  p.city(),
			Lat:   lat,
			Lng:   lng,
		})
	}

	if c.cache != nil {
		if data, err := json.Marshal(suggestions); err == nil {
			c.cache.Set(ctx, cacheKey, data, c.cacheTTL)
		}
	}

	return suggestions, nil
}

func joinQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

var _ Geocoder = (*NominatimClient)(nil)
