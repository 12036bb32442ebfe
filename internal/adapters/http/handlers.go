package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bilbopark/internal/core/usecases"
)

// Search defaults when the query omits them.
const (
	defaultSearchRadius = 1000
	defaultSearchLimit  = 20
)

// --- Lots ---

// CreateLotHandler registers a lot.
func CreateLotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createLotRequest
		if ok, err := bindJSON(c, &req); !ok {
			return err
		}

		lot, err := deps.Lots.CreateLot(c.UserContext(), req.Name, *req.Latitude, *req.Longitude)
		if err != nil {
			return respondError(c, err)
		}
		c.Location("/v1/lots/" + lot.ID)
		return c.Status(fiber.StatusCreated).JSON(lot)
	}
}

// ListLotsHandler returns all lots, paginated.
func ListLotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lots, err := deps.Lots.ListLots(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return paginate(c, lots)
	}
}

// GetLotHandler returns one lot.
func GetLotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lot, err := deps.Lots.GetLot(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(lot)
	}
}

// --- Spots ---

// CreateSpotHandler adds a spot to the lot in the path.
func CreateSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSpotRequest
		if ok, err := bindJSON(c, &req); !ok {
			return err
		}

		spot, err := deps.Spots.CreateSpot(c.UserContext(), c.Params("id"), req.Label, req.Category)
		if err != nil {
			return respondError(c, err)
		}
		c.Location("/v1/spots/" + spot.ID)
		return c.Status(fiber.StatusCreated).JSON(spot)
	}
}

// ListSpotsHandler returns spots, optionally only the available ones.
func ListSpotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		onlyAvailable := c.QueryBool("only_available", false)

		spots, err := deps.Spots.ListSpots(c.UserContext(), onlyAvailable)
		if err != nil {
			return respondError(c, err)
		}
		return paginate(c, spots)
	}
}

// GetSpotHandler returns one spot.
func GetSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		spot, err := deps.Spots.GetSpot(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(spot)
	}
}

// ReleaseSpotHandler marks a spot available.
func ReleaseSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		spot, err := deps.Spots.ReleaseSpot(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(spot)
	}
}

// SearchSpotsHandler returns available spots near lat/lng, nearest first.
func SearchSpotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lng") == "" {
			return errBadRequest(c, "lat and lng are required")
		}
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng must be numbers")
		}
		radius := float64(defaultSearchRadius)
		if raw := c.Query("radius_m"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errBadRequest(c, "radius_m must be a number")
			}
			radius = v
		}
		limit := defaultSearchLimit
		if raw := c.Query("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return errBadRequest(c, "limit must be an integer")
			}
			limit = v
		}

		matches, err := deps.Search.SearchSpots(c.UserContext(), lat, lng, radius, limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(matches)
	}
}

// SpotReservationsHandler returns the reservation history of a spot.
func SpotReservationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := deps.Reservations.ListSpotReservations(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return paginate(c, list)
	}
}

// --- Reservations ---

// CreateReservationHandler books a spot. An Idempotency-Key header makes
// retries return the original reservation.
func CreateReservationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createReservationRequest
		if ok, err := bindJSON(c, &req); !ok {
			return err
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if len(key) > 255 {
			return errBadRequest(c, "Idempotency-Key too long (max 255 characters)")
		}

		res, err := deps.Reservations.CreateReservation(c.UserContext(), usecases.CreateReservationInput{
			SpotID:         req.SpotID,
			Start:          req.StartTime,
			End:            req.EndTime,
			VehiclePlate:   req.VehiclePlate,
			IdempotencyKey: key,
		})
		if err != nil {
			return respondError(c, err)
		}
		c.Location("/v1/reservations/" + res.ID)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GetReservationHandler returns one reservation.
func GetReservationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := deps.Reservations.GetReservation(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// EndReservationHandler ends an active reservation.
func EndReservationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := deps.Reservations.EndReservation(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}
