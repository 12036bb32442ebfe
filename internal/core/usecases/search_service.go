package usecases

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/pkg/geospatial"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
	"github.com/samirrijal/bilbopark/internal/pkg/telemetry"
)

// Search bounds.
const (
	MinRadiusMeters = 1
	MaxRadiusMeters = 20000
	MinSearchLimit  = 1
	MaxSearchLimit  = 100

	// coarseFactor widens the lot-level filter around the query radius.
	coarseFactor = 1.5
)

// LotLister is the part of LotService the search depends on.
type LotLister interface {
	ListLots(ctx context.Context) ([]domain.Lot, error)
}

// SearchService finds available spots near a coordinate.
type SearchService struct {
	lots   LotLister
	store  ports.Store
	tracer trace.Tracer
}

// NewSearchService creates a new SearchService.
func NewSearchService(lots LotLister, store ports.Store) *SearchService {
	return &SearchService{lots: lots, store: store, tracer: telemetry.Tracer("bilbopark/search")}
}

// SearchSpots returns available spots within radiusMeters of (lat, lon),
// nearest first, at most limit of them. Spots share their lot's coordinate.
func (s *SearchService) SearchSpots(ctx context.Context, lat, lon, radiusMeters float64, limit int) (_ []domain.SpotMatch, err error) {
	ctx, span := s.tracer.Start(ctx, "SearchService.SearchSpots", trace.WithAttributes(
		attribute.Float64("search.radius_m", radiusMeters),
		attribute.Int("search.limit", limit),
	))
	defer func() { endSpan(span, err) }()

	if err := (domain.GeoPoint{Lat: lat, Lon: lon}).Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusMeters) || radiusMeters < MinRadiusMeters || radiusMeters > MaxRadiusMeters {
		return nil, domain.Validation(fmt.Sprintf("radius_m must be between %d and %d", MinRadiusMeters, MaxRadiusMeters))
	}
	if limit < MinSearchLimit || limit > MaxSearchLimit {
		return nil, domain.Validation(fmt.Sprintf("limit must be between %d and %d", MinSearchLimit, MaxSearchLimit))
	}

	lots, err := s.lots.ListLots(ctx)
	if err != nil {
		return nil, err
	}

	// Coarse pass at lot granularity.
	lotDistance := make(map[string]float64)
	ids := make([]string, 0)
	for _, lot := range lots {
		d := geospatial.Haversine(lat, lon, lot.Location.Lat, lot.Location.Lon)
		if d <= radiusMeters*coarseFactor {
			lotDistance[lot.ID] = d
			ids = append(ids, lot.ID)
		}
	}
	span.SetAttributes(attribute.Int("search.candidate_lots", len(ids)))
	if len(ids) == 0 {
		metrics.SearchResults.Observe(0)
		return []domain.SpotMatch{}, nil
	}

	spots, err := s.store.Repositories().Spots.ListAvailableByLots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("search spots: %w", err)
	}

	// Exact pass at spot granularity.
	matches := make([]domain.SpotMatch, 0, len(spots))
	for _, sp := range spots {
		d, ok := lotDistance[sp.LotID]
		if !ok || d > radiusMeters {
			continue
		}
		matches = append(matches, domain.SpotMatch{Spot: sp, DistanceMeters: d})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	for i := range matches {
		matches[i].DistanceMeters = geospatial.RoundMeters(matches[i].DistanceMeters)
	}

	metrics.SearchResults.Observe(float64(len(matches)))
	return matches, nil
}
