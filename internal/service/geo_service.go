package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/config"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(raw string) (LatLng, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return LatLng{}, apperrors.NewValidationError("coordinate must be lat,lng", map[string]any{"value": raw})
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	p := LatLng{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !p.Valid() {
		return LatLng{}, apperrors.NewValidationError("invalid coordinate", map[string]any{"value": raw})
	}
	return p, nil
}

// Valid reports whether the coordinate is within range.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Place is a geocoding result.
type Place struct {
	DisplayName string `json:"display_name"`
	LatLng
}

// Route is a driving route summary.
type Route struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// GeoService proxies geocoding and routing providers and caches their answers.
type GeoService struct {
	client     *http.Client
	geocodeURL string
	routeURL   string
	apiKey     string
	userAgent  string
	cache      KeyValueCache
	logger     *zap.Logger
}

// NewGeoService constructs the service. cache may be nil.
func NewGeoService(cfg config.MapsConfig, cache KeyValueCache, logger *zap.Logger) *GeoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &GeoService{
		client:     &http.Client{Timeout: timeout},
		geocodeURL: strings.TrimRight(cfg.GeocodeURL, "/"),
		routeURL:   strings.TrimRight(cfg.RouteURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		cache:      cache,
		logger:     logger,
	}
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Error       string `json:"error"`
}

func (n nominatimPlace) place() (Place, error) {
	lat, err := strconv.ParseFloat(n.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse lat %q: %w", n.Lat, err)
	}
	lng, err := strconv.ParseFloat(n.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse lon %q: %w", n.Lon, err)
	}
	return Place{DisplayName: n.DisplayName, LatLng: LatLng{Lat: lat, Lng: lng}}, nil
}

// Geocode resolves a free-text address.
func (s *GeoService) Geocode(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("q is required", map[string]any{"field": "q"})
	}
	var places []Place
	err := s.cached(ctx, "geocode:"+strings.ToLower(query), &places, func() error {
		params := url.Values{"format": {"jsonv2"}, "q": {query}, "limit": {"5"}}
		var raw []nominatimPlace
		if err := s.get(ctx, s.geocodeURL+"/search", params, &raw); err != nil {
			return err
		}
		places = make([]Place, 0, len(raw))
		for _, r := range raw {
			p, err := r.place()
			if err != nil {
				return err
			}
			places = append(places, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return places, nil
}

// Reverse resolves a coordinate to an address.
func (s *GeoService) Reverse(ctx context.Context, at LatLng) (*Place, error) {
	if !at.Valid() {
		return nil, apperrors.NewValidationError("invalid coordinate", nil)
	}
	var place Place
	key := fmt.Sprintf("reverse:%.5f,%.5f", at.Lat, at.Lng)
	err := s.cached(ctx, key, &place, func() error {
		params := url.Values{
			"format": {"jsonv2"},
			"lat":    {strconv.FormatFloat(at.Lat, 'f', -1, 64)},
			"lon":    {strconv.FormatFloat(at.Lng, 'f', -1, 64)},
		}
		var raw nominatimPlace
		if err := s.get(ctx, s.geocodeURL+"/reverse", params, &raw); err != nil {
			return err
		}
		if raw.Error != "" {
			return apperrors.NewNotFound("place", map[string]any{"reason": raw.Error})
		}
		p, err := raw.place()
		if err != nil {
			return err
		}
		place = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &place, nil
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Route computes a driving route between two points.
func (s *GeoService) Route(ctx context.Context, from, to LatLng) (*Route, error) {
	if !from.Valid() || !to.Valid() {
		return nil, apperrors.NewValidationError("invalid coordinate", nil)
	}
	var route Route
	key := fmt.Sprintf("route:%.5f,%.5f;%.5f,%.5f", from.Lat, from.Lng, to.Lat, to.Lng)
	err := s.cached(ctx, key, &route, func() error {
		path := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f", s.routeURL, from.Lng, from.Lat, to.Lng, to.Lat)
		var raw osrmResponse
		if err := s.get(ctx, path, url.Values{"overview": {"false"}}, &raw); err != nil {
			return err
		}
		if raw.Code != "Ok" || len(raw.Routes) == 0 {
			return apperrors.NewNotFound("route", map[string]any{"reason": raw.Code, "message": raw.Message})
		}
		route = Route{DistanceMeters: raw.Routes[0].Distance, DurationSeconds: raw.Routes[0].Duration}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (s *GeoService) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if s.apiKey != "" {
		params.Set("key", s.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if err := doJSON(s.client, req, out); err != nil {
		return apperrors.NewUpstreamError("maps", err)
	}
	return nil
}

// cached fills out from the cache or by running fetch, storing fresh results.
func (s *GeoService) cached(ctx context.Context, key string, out any, fetch func() error) error {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("geo cache read", zap.String("key", key), zap.Error(err))
		} else if ok && json.Unmarshal([]byte(raw), out) == nil {
			return nil
		}
	}
	if err := fetch(); err != nil {
		var domainErr *apperrors.DomainError
		if !errors.As(err, &domainErr) {
			err = apperrors.NewUpstreamError("maps", err)
		}
		return err
	}
	if s.cache != nil {
		raw, err := json.Marshal(out)
		if err == nil {
			err = s.cache.Set(ctx, key, string(raw))
		}
		if err != nil {
			s.logger.Warn("geo cache write", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
