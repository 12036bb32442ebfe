package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

func TestReservation_Overlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 1, h, m, 0, 0, time.UTC) }
	r := domain.Reservation{StartTime: at(10, 0), EndTime: at(11, 0)}

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", at(10, 15), at(10, 45), true},
		{"straddles end", at(10, 30), at(11, 30), true},
		{"straddles start", at(9, 30), at(10, 30), true},
		{"covers", at(9, 0), at(12, 0), true},
		{"touches end", at(11, 0), at(12, 0), false},
		{"touches start", at(9, 0), at(10, 0), false},
		{"disjoint", at(13, 0), at(14, 0), false},
	}
	for _, tc := range cases {
		if got := r.Overlaps(tc.start, tc.end); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestParseSpotCategory(t *testing.T) {
	cases := map[string]domain.SpotCategory{
		"":     domain.CategoryCar,
		"car":  domain.CategoryCar,
		"BIKE": domain.CategoryBike,
		" ev ": domain.CategoryEV,
	}
	for in, want := range cases {
		got, err := domain.ParseSpotCategory(in)
		if err != nil {
			t.Fatalf("parse %q: unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("parse %q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := domain.ParseSpotCategory("truck"); !errors.Is(err, domain.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestLot_Validate(t *testing.T) {
	ok := domain.Lot{Name: "Abando", Location: domain.GeoPoint{Lat: 43.26, Lon: -2.93}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []domain.Lot{
		{Name: "  ", Location: domain.GeoPoint{}},
		{Name: "x", Location: domain.GeoPoint{Lat: 90.5}},
		{Name: "x", Location: domain.GeoPoint{Lon: -180.1}},
	}
	for i, l := range bad {
		if err := l.Validate(); !domain.IsKind(err, domain.KindValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("create spot: %w", domain.Conflict("label taken"))
	if domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict, got %s", domain.KindOf(err))
	}
	if domain.IsKind(nil, domain.KindConflict) {
		t.Error("nil error must not match any kind")
	}
	if domain.KindOf(errors.New("boom")) != domain.KindUnknown {
		t.Error("plain errors must be unknown")
	}
}
