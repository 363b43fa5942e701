package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// lookupTimeout bounds the provider calls of a single lookup request.
const lookupTimeout = 30 * time.Second

// RegisterRoutes wires the HTTP handlers into the Fiber app.
// Lookups answer with the resulting state; a failed lookup is part of that
// state and not an HTTP error.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(service.State())
	})

	v1.Get("/current", func(c *fiber.Ctx) error {
		st := service.State()
		if st.Current == nil {
			return fiber.NewError(fiber.StatusNotFound, "no weather looked up yet")
		}
		return c.JSON(newCurrentView(st))
	})

	v1.Get("/forecast/daily", func(c *fiber.Ctx) error {
		return c.JSON(service.State().Daily)
	})

	v1.Get("/forecast/hourly", func(c *fiber.Ctx) error {
		return c.JSON(service.State().Hourly)
	})

	v1.Post("/search", func(c *fiber.Ctx) error {
		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := lookupContext(c)
		defer cancel()
		return respond(c, service, service.Search(ctx, req.Query))
	})

	v1.Post("/location", func(c *fiber.Ctx) error {
		var req locationRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if (req.Lat == nil) != (req.Lon == nil) {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lon must be given together")
		}

		ctx, cancel := lookupContext(c)
		defer cancel()

		if req.Lat != nil && req.Lon != nil {
			return respond(c, service, service.UseCoordinates(ctx, *req.Lat, *req.Lon))
		}
		return respond(c, service, service.UseCurrentLocation(ctx))
	})

	v1.Post("/unit/toggle", func(c *fiber.Ctx) error {
		ctx, cancel := lookupContext(c)
		defer cancel()
		return respond(c, service, service.ToggleUnit(ctx))
	})

	v1.Delete("/error", func(c *fiber.Ctx) error {
		service.ClearError()
		return c.JSON(service.State())
	})
}

// searchRequest is the body of a text search. Blank queries are rejected
// by the service so they surface in the state.
type searchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// locationRequest carries an optional device-supplied coordinate pair.
type locationRequest struct {
	Lat *float64 `json:"lat" validate:"omitempty,latitude"`
	Lon *float64 `json:"lon" validate:"omitempty,longitude"`
}

// currentView is the snapshot with the display helpers applied.
type currentView struct {
	*weather.CurrentSnapshot
	Unit            weather.Unit `json:"unit"`
	IconURL         string       `json:"iconUrl"`
	AirQualityLabel string       `json:"airQualityLabel"`
}

func newCurrentView(st weather.State) currentView {
	return currentView{
		CurrentSnapshot: st.Current,
		Unit:            st.Unit,
		IconURL:         weather.IconURL(st.Current.ConditionCode),
		AirQualityLabel: weather.AQILabel(st.Current.AirQualityIndex),
	}
}

func lookupContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), lookupTimeout)
}

// respond writes the state after a lookup. Lookup failures are already
// reflected in the state; only a rejected query is a client error.
func respond(c *fiber.Ctx, service *weather.Service, err error) error {
	var ve *weather.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(service.State())
	}
	return c.JSON(service.State())
}
