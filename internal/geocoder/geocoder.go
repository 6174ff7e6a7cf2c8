// Package geocoder turns free-text place names (and coordinates) into the
// city names used to bucket profiles, through the Yandex Geocoder HTTP API.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"deafbot/internal/domain"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const areaPath = "response.GeoObjectCollection.featureMember.0.GeoObject.metaDataProperty.GeocoderMetaData.AddressDetails.Country.AdministrativeArea"

// City names are looked up in this order under areaPath.
var cityPaths = []string{
	areaPath + ".SubAdministrativeArea.Locality.LocalityName",
	areaPath + ".Locality.LocalityName",
	areaPath + ".AdministrativeAreaName",
}

type CityNotFoundError struct {
	Name string
}

func (e *CityNotFoundError) Error() string {
	return fmt.Sprintf("city %q doesn't exist", e.Name)
}

// Cache is consulted before the API. Its failures never fail a lookup.
type Cache interface {
	GetLocation(ctx context.Context, input string) (*domain.Location, error)
	SaveLocation(ctx context.Context, input string, loc domain.Location) error
}

type Geocoder struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   Cache
	logger  *zap.Logger
}

func New(apiKey, baseURL string, cache Cache, logger *zap.Logger) *Geocoder {
	return &Geocoder{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		logger:  logger,
	}
}

// Resolve keeps input as the displayed name and stores the geocoded city as
// the actual one.
func (g *Geocoder) Resolve(ctx context.Context, input string) (domain.Location, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.Location{}, &CityNotFoundError{Name: input}
	}

	if g.cache != nil {
		cached, err := g.cache.GetLocation(ctx, input)
		if err != nil {
			g.logger.Warn("Location cache lookup failed", zap.String("input", input), zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	body, err := g.fetch(ctx, input)
	if err != nil {
		return domain.Location{}, err
	}
	city, ok := cityFromResponse(body)
	if !ok {
		return domain.Location{}, &CityNotFoundError{Name: input}
	}

	loc := domain.Location{Displayed: input, Actual: city}
	if g.cache != nil {
		if err := g.cache.SaveLocation(ctx, input, loc); err != nil {
			g.logger.Warn("Location cache write failed", zap.String("input", input), zap.Error(err))
		}
	}
	return loc, nil
}

// ResolvePoint finds the city at the given coordinates. The result is not
// cached.
func (g *Geocoder) ResolvePoint(ctx context.Context, lat, lon float64) (domain.Location, error) {
	point := strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)

	body, err := g.fetch(ctx, point)
	if err != nil {
		return domain.Location{}, err
	}
	city, ok := cityFromResponse(body)
	if !ok {
		return domain.Location{}, &CityNotFoundError{Name: point}
	}
	return domain.Location{
		Displayed:   city,
		Actual:      city,
		Coordinates: &domain.Coordinates{Latitude: lat, Longitude: lon},
	}, nil
}

func (g *Geocoder) fetch(ctx context.Context, geocode string) ([]byte, error) {
	q := url.Values{}
	q.Set("apikey", g.apiKey)
	q.Set("format", "json")
	q.Set("results", "1")
	q.Set("geocode", geocode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocoder request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read geocoder response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("geocoder response is not valid JSON")
	}
	return body, nil
}

func cityFromResponse(body []byte) (string, bool) {
	for _, path := range cityPaths {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str, true
		}
	}
	return "", false
}
