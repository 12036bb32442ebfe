package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

func lotToMap(l domain.Lot) map[string]interface{} {
	return map[string]interface{}{
		"id":         l.ID,
		"name":       l.Name,
		"location":   map[string]interface{}{"lat": l.Location.Lat, "lon": l.Location.Lon},
		"created_at": l.CreatedAt.Format(time.RFC3339),
	}
}

func spotToMap(s domain.Spot) map[string]interface{} {
	return map[string]interface{}{
		"id":         s.ID,
		"lot_id":     s.LotID,
		"label":      s.Label,
		"category":   string(s.Category),
		"available":  s.Available,
		"created_at": s.CreatedAt.Format(time.RFC3339),
	}
}

// buildSchema creates the read-only GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	lotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Lot",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"location":   &graphql.Field{Type: geoPointType},
			"created_at": &graphql.Field{Type: graphql.String},
		},
	})

	spotFields := func() graphql.Fields {
		return graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"lot_id":     &graphql.Field{Type: graphql.String},
			"label":      &graphql.Field{Type: graphql.String},
			"category":   &graphql.Field{Type: graphql.String},
			"available":  &graphql.Field{Type: graphql.Boolean},
			"created_at": &graphql.Field{Type: graphql.String},
		}
	}

	spotType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Spot",
		Fields: spotFields(),
	})

	matchFields := spotFields()
	matchFields["distance_m"] = &graphql.Field{Type: graphql.Float}
	spotMatchType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "SpotMatch",
		Fields: matchFields,
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"lots": &graphql.Field{
				Type:        graphql.NewList(lotType),
				Description: "List all parking lots",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lots, err := deps.Lots.ListLots(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(lots))
					for _, l := range lots {
						out = append(out, lotToMap(l))
					}
					return out, nil
				},
			},
			"lot": &graphql.Field{
				Type:        lotType,
				Description: "Get a lot by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lot, err := deps.Lots.GetLot(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return lotToMap(*lot), nil
				},
			},
			"spots": &graphql.Field{
				Type:        graphql.NewList(spotType),
				Description: "List spots, optionally only available ones",
				Args: graphql.FieldConfigArgument{
					"only_available": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					spots, err := deps.Spots.ListSpots(p.Context, p.Args["only_available"].(bool))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(spots))
					for _, s := range spots {
						out = append(out, spotToMap(s))
					}
					return out, nil
				},
			},
			"spot": &graphql.Field{
				Type:        spotType,
				Description: "Get a spot by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					spot, err := deps.Spots.GetSpot(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return spotToMap(*spot), nil
				},
			},
			"searchSpots": &graphql.Field{
				Type:        graphql.NewList(spotMatchType),
				Description: "Available spots near a location, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius_m": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: float64(defaultSearchRadius)},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultSearchLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					matches, err := deps.Search.SearchSpots(p.Context,
						p.Args["lat"].(float64),
						p.Args["lng"].(float64),
						p.Args["radius_m"].(float64),
						p.Args["limit"].(int),
					)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(matches))
					for _, m := range matches {
						row := spotToMap(m.Spot)
						row["distance_m"] = m.DistanceMeters
						out = append(out, row)
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
