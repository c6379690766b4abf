package movie

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/server/openapi"
)

// Component schema names used in the API document.
const (
	schemaMovie       = "Movie"
	schemaMovieInput  = "MovieInput"
	schemaMoviePage   = "MoviePage"
	schemaDeleteReply = "DeleteResponse"
	schemaError       = "Error"
)

// APIInfo describes the movies API.
func APIInfo(version string) openapi.Info {
	return openapi.Info{
		Title:       "Movies API",
		Version:     version,
		Description: "CRUD over a movie catalogue with filtering, sorting and pagination.",
	}
}

// APISchemas returns the component schemas referenced by APIAnnotations.
func APISchemas() openapi3.Schemas {
	nullableString := func() *openapi3.Schema { return openapi3.NewStringSchema().WithNullable() }
	nullableInt := func() *openapi3.Schema { return openapi3.NewIntegerSchema().WithNullable() }

	input := openapi3.NewObjectSchema().
		WithProperty(FieldTitle, openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty(FieldGenre, nullableString()).
		WithProperty(FieldReleaseYear, nullableInt()).
		WithProperty(FieldDirector, nullableString()).
		WithProperty(FieldRating, nullableInt())
	input.Required = []string{FieldTitle}

	movie := openapi3.NewObjectSchema().
		WithProperty(FieldID, openapi3.NewStringSchema()).
		WithProperty(FieldTitle, openapi3.NewStringSchema()).
		WithProperty(FieldGenre, openapi3.NewStringSchema()).
		WithProperty(FieldReleaseYear, openapi3.NewIntegerSchema()).
		WithProperty(FieldDirector, openapi3.NewStringSchema()).
		WithProperty(FieldRating, openapi3.NewIntegerSchema())
	movie.Required = []string{FieldID, FieldTitle}

	movieRef := openapi3.NewSchemaRef("#/components/schemas/"+schemaMovie, movie)
	movies := openapi3.NewArraySchema()
	movies.Items = movieRef

	page := openapi3.NewObjectSchema().
		WithProperty("total", openapi3.NewInt64Schema()).
		WithProperty("page", openapi3.NewIntegerSchema()).
		WithProperty("limit", openapi3.NewIntegerSchema()).
		WithProperty("movies", movies)
	page.Required = []string{"total", "page", "limit", "movies"}

	deleted := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithPropertyRef("movie", movieRef)
	deleted.Required = []string{"message", "movie"}

	apiErr := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("request_id", openapi3.NewStringSchema()).
		WithProperty("details", openapi3.NewObjectSchema())
	apiErr.Required = []string{"error"}

	return openapi3.Schemas{
		schemaMovie:       openapi3.NewSchemaRef("", movie),
		schemaMovieInput:  openapi3.NewSchemaRef("", input),
		schemaMoviePage:   openapi3.NewSchemaRef("", page),
		schemaDeleteReply: openapi3.NewSchemaRef("", deleted),
		schemaError:       openapi3.NewSchemaRef("", apiErr),
	}
}

// APIAnnotations documents the routes mounted by Handler.Register.
func APIAnnotations() openapi.Annotations {
	filters := func(fields ...string) []openapi.Param {
		params := make([]openapi.Param, 0, len(fields))
		for _, f := range fields {
			typ := "string"
			if numericFields[f] {
				typ = "integer"
			}
			params = append(params, openapi.Param{Name: f, Type: typ, Description: "exact match on " + f})
		}
		return params
	}
	errorResp := func(status int, description string) openapi.Response {
		return openapi.Response{Status: status, Description: description, Schema: schemaError}
	}
	tags := []string{"Movies"}

	listParams := append(filters(listFilterFields...),
		openapi.Param{Name: ParamSort, Description: "field to sort by; prefix with - for descending"},
		openapi.Param{Name: ParamPage, Type: "integer", Description: "1-based page number"},
		openapi.Param{Name: ParamLimit, Type: "integer", Description: "page size"},
	)

	return openapi.Annotations{
		openapi.Key(http.MethodGet, "/"): {
			Summary:   "Greeting",
			Tags:      []string{"Meta"},
			Responses: []openapi.Response{{Status: http.StatusOK, PlainText: true}},
		},
		openapi.Key(http.MethodGet, "/movies"): {
			Summary:     "List movies",
			OperationID: "listMovies",
			Tags:        tags,
			QueryParams: listParams,
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "A page of movies", Schema: schemaMoviePage},
				errorResp(http.StatusBadRequest, "Invalid query parameter (strict mode)"),
				errorResp(http.StatusInternalServerError, "Store failure"),
			},
		},
		openapi.Key(http.MethodGet, "/movies/search"): {
			Summary:     "Search movies",
			OperationID: "searchMovies",
			Tags:        tags,
			QueryParams: filters(searchFilterFields...),
			Responses: []openapi.Response{
				{Status: http.StatusOK, Description: "Every matching movie", Schema: schemaMovie, Array: true},
				errorResp(http.StatusBadRequest, "Invalid query parameter (strict mode)"),
				errorResp(http.StatusInternalServerError, "Store failure"),
			},
		},
		openapi.Key(http.MethodGet, "/movies/:id"): {
			Summary:     "Get a movie",
			OperationID: "getMovie",
			Tags:        tags,
			Responses: []openapi.Response{
				{Status: http.StatusOK, Schema: schemaMovie},
				errorResp(http.StatusBadRequest, "Malformed id"),
				errorResp(http.StatusNotFound, "Movie not found"),
				errorResp(http.StatusInternalServerError, "Store failure"),
			},
		},
		openapi.Key(http.MethodPost, "/movies"): {
			Summary:       "Create a movie",
			OperationID:   "createMovie",
			Tags:          tags,
			RequestSchema: schemaMovieInput,
			Responses: []openapi.Response{
				{Status: http.StatusCreated, Schema: schemaMovie},
				errorResp(http.StatusBadRequest, "Validation failed"),
				errorResp(http.StatusRequestEntityTooLarge, "Body too large"),
				errorResp(http.StatusInternalServerError, "Store failure"),
			},
		},
		openapi.Key(http.MethodPut, "/movies/:id"): {
			Summary:       "Update a movie",
			Description:   "Merges the provided fields onto the stored movie; null clears an optional field.",
			OperationID:   "updateMovie",
			Tags:          tags,
			RequestSchema: schemaMovieInput,
			Responses: []openapi.Response{
				{Status: http.StatusOK, Schema: schemaMovie},
				errorResp(http.StatusBadRequest, "Malformed id or validation failed"),
				errorResp(http.StatusNotFound, "Movie not found"),
				errorResp(http.StatusInternalServerError, "Store failure"),
			},
		},
		openapi.Key(http.MethodDelete, "/movies/:id"): {
			Summary:     "Delete a movie",
			OperationID: "deleteMovie",
			Tags:        tags,
			Responses: []openapi.Response{
				{Status: http.StatusOK, Schema: schemaDeleteReply},
				errorResp(http.StatusBadRequest, "Malformed id"),
				errorResp(http.StatusNotFound, "Movie not found"),
				errorResp(http.StatusInternalServerError, "Store failure"),
			},
		},
	}
}
