package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/armada-rental/rental-service/internal/service"
)

func runGeocode(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("geocode", env)
	query := fs.String("q", "", "Address to look up")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		return fmt.Errorf("%w: -q is required", ErrUsage)
	}
	var out envelope[[]service.Place]
	if err := env.API.Call(ctx, http.MethodGet, "/geo/geocode", url.Values{"q": {*query}}, nil, &out); err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	if err := writef(tw, "LAT\tLNG\tPLACE\n"); err != nil {
		return err
	}
	for _, p := range out.Data {
		if err := writef(tw, "%.6f\t%.6f\t%s\n", p.Lat, p.Lng, p.DisplayName); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runRoute(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("route", env)
	from := fs.String("from", "", "Origin as lat,lng")
	to := fs.String("to", "", "Destination as lat,lng")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := service.ParseLatLng(*from); err != nil {
		return fmt.Errorf("%w: -from: %v", ErrUsage, err)
	}
	if _, err := service.ParseLatLng(*to); err != nil {
		return fmt.Errorf("%w: -to: %v", ErrUsage, err)
	}
	var out envelope[service.Route]
	if err := env.API.Call(ctx, http.MethodGet, "/geo/route", url.Values{"from": {*from}, "to": {*to}}, nil, &out); err != nil {
		return fmt.Errorf("route: %w", err)
	}
	return writef(env.Out, "%.1f km, %.0f min\n", out.Data.DistanceMeters/1000, out.Data.DurationSeconds/60)
}
