package controller

import (
	"net/http"

	"github.com/nimburion/movies/pkg/server/router"
)

// Success sends data as-is with HTTP 200 OK.
func Success(c router.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// Created sends data as-is with HTTP 201 Created.
// Typically used after successfully creating a new resource
func Created(c router.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContent sends a successful response with HTTP 204 No Content
func NoContent(c router.Context) error {
	c.Response().WriteHeader(http.StatusNoContent)
	return nil
}

// Error sends an error response with the appropriate HTTP status code
// It uses MapError to convert application errors to HTTP responses
func Error(c router.Context, err error) error {
	statusCode, errorResponse := MapError(c.Request().Context(), err)
	return c.JSON(statusCode, errorResponse)
}
