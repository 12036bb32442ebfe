package domain

import (
	"errors"
	"strings"
	"time"
)

// Lot represents a parking facility with a single representative coordinate.
type Lot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  GeoPoint  `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the user-supplied lot fields.
func (l *Lot) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return Validation("lot name must not be empty")
	}
	return l.Location.Validate()
}

// SpotCategory is the kind of vehicle a spot is built for.
type SpotCategory string

// Known spot categories.
const (
	CategoryCar  SpotCategory = "car"
	CategoryBike SpotCategory = "bike"
	CategoryEV   SpotCategory = "ev"
)

// ErrUnknownCategory is returned by ParseSpotCategory for values outside the known set.
var ErrUnknownCategory = errors.New("unknown spot category")

// ParseSpotCategory parses a category, defaulting to car when s is empty.
func ParseSpotCategory(s string) (SpotCategory, error) {
	switch SpotCategory(strings.ToLower(strings.TrimSpace(s))) {
	case "", CategoryCar:
		return CategoryCar, nil
	case CategoryBike:
		return CategoryBike, nil
	case CategoryEV:
		return CategoryEV, nil
	default:
		return "", ErrUnknownCategory
	}
}

// Spot is a single parking space inside a lot.
type Spot struct {
	ID        string       `json:"id"`
	LotID     string       `json:"lot_id"`
	Label     string       `json:"label"`
	Category  SpotCategory `json:"category"`
	Available bool         `json:"available"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReservationStatus is the lifecycle state of a reservation.
// The only transition is active -> ended.
type ReservationStatus string

const (
	ReservationActive ReservationStatus = "active"
	ReservationEnded  ReservationStatus = "ended"
)

// Reservation is a time-bounded claim on a spot by a vehicle.
// The window is half-open: [StartTime, EndTime).
type Reservation struct {
	ID           string            `json:"id"`
	SpotID       string            `json:"spot_id"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	VehiclePlate string            `json:"vehicle_plate"`
	Status       ReservationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
}

// Overlaps reports whether r's window intersects [start, end).
// Windows that only touch at a boundary do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// IsActive reports whether the reservation still holds its spot.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// SpotMatch is a proximity search hit.
type SpotMatch struct {
	Spot
	DistanceMeters float64 `json:"distance_m"`
}

// EventType names a committed state change.
type EventType string

const (
	EventLotCreated         EventType = "lot.created"
	EventSpotCreated        EventType = "spot.created"
	EventSpotReleased       EventType = "spot.released"
	EventReservationCreated EventType = "reservation.created"
	EventReservationEnded   EventType = "reservation.ended"
)

// ParkingEvent is published after a mutation commits.
type ParkingEvent struct {
	Type          EventType `json:"type"`
	LotID         string    `json:"lot_id,omitempty"`
	SpotID        string    `json:"spot_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Available     *bool     `json:"available,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
