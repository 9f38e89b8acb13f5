package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
// Field names follow the JSON tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"formatted_address": &graphql.Field{Type: graphql.String},
			"location":          &graphql.Field{Type: coordinateType},
			"place_id":          &graphql.Field{Type: graphql.String},
		},
	})

	pitStopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PitStop",
		Fields: graphql.Fields{
			"lat":     &graphql.Field{Type: graphql.Float},
			"lng":     &graphql.Field{Type: graphql.Float},
			"address": &graphql.Field{Type: graphql.String},
		},
	})

	imageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StreetViewImage",
		Fields: graphql.Fields{
			"url":         &graphql.Field{Type: graphql.String},
			"heading":     &graphql.Field{Type: graphql.Int},
			"pitch":       &graphql.Field{Type: graphql.Int},
			"fov":         &graphql.Field{Type: graphql.Int},
			"label":       &graphql.Field{Type: graphql.String},
			"stop_index":  &graphql.Field{Type: graphql.Int},
			"direction":   &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: coordinateType},
			"recommended": &graphql.Field{Type: graphql.Boolean},
		},
	})

	progressType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Progress",
		Fields: graphql.Fields{
			"current": &graphql.Field{Type: graphql.Int},
			"total":   &graphql.Field{Type: graphql.Int},
		},
	})

	explorationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Exploration",
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.String},
			"origin":               &graphql.Field{Type: graphql.String},
			"destination":          &graphql.Field{Type: graphql.String},
			"origin_location":      &graphql.Field{Type: coordinateType},
			"destination_location": &graphql.Field{Type: coordinateType},
			"stops":                &graphql.Field{Type: graphql.NewList(pitStopType)},
			"images":               &graphql.Field{Type: graphql.NewList(imageType)},
			"progress":             &graphql.Field{Type: progressType},
			"state": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(*domain.Exploration).State), nil
				},
			},
			"no_imagery": &graphql.Field{Type: graphql.Boolean},
			"message":    &graphql.Field{Type: graphql.String},
		},
	})

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"name":            &graphql.Field{Type: graphql.String},
			"address":         &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: coordinateType},
			"place_id":        &graphql.Field{Type: graphql.String},
			"distance_meters": &graphql.Field{Type: graphql.Float},
		},
	})

	stationResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StationResult",
		Fields: graphql.Fields{
			"found":    &graphql.Field{Type: graphql.Boolean},
			"station":  &graphql.Field{Type: stationType},
			"stations": &graphql.Field{Type: graphql.NewList(stationType)},
			"message":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"geocode": &graphql.Field{
				Type:        placeType,
				Description: "Resolve an address to a place",
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Geocoding.Geocode(p.Context, p.Args["address"].(string))
				},
			},
			"explore": &graphql.Field{
				Type:        explorationType,
				Description: "Sample pit stops along a route and list their street-level images",
				Args: graphql.FieldConfigArgument{
					"origin":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Explorations.Explore(p.Context,
						p.Args["origin"].(string), p.Args["destination"].(string), nil)
				},
			},
			"nearestStation": &graphql.Field{
				Type:        stationResultType,
				Description: "Nearest transit stations to a coordinate or address",
				Args: graphql.FieldConfigArgument{
					"lat":     &graphql.ArgumentConfig{Type: graphql.Float},
					"lng":     &graphql.ArgumentConfig{Type: graphql.Float},
					"address": &graphql.ArgumentConfig{Type: graphql.String},
					"keyword": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := usecases.StationQuery{}
					lat, hasLat := p.Args["lat"].(float64)
					lng, hasLng := p.Args["lng"].(float64)
					if hasLat && hasLng {
						q.Location = &domain.Coordinate{Lat: lat, Lng: lng}
					}
					q.Address, _ = p.Args["address"].(string)
					q.Keyword, _ = p.Args["keyword"].(string)
					return deps.Stations.Nearest(p.Context, q)
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
