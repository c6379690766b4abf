// Package movie implements the movie resource: its record schema, the
// translation of query strings into store queries, the service and the
// HTTP handlers.
package movie

import (
	"github.com/nimburion/movies/pkg/repository/document"
)

// Field names as they appear in JSON payloads, query strings and stored documents.
const (
	FieldID          = document.IDField
	FieldTitle       = "title"
	FieldGenre       = "genre"
	FieldReleaseYear = "releaseYear"
	FieldDirector    = "director"
	FieldRating      = "rating"
)

// Movie is the single resource served by the API. Optional fields are nil
// when absent so they are omitted from responses and stored documents.
type Movie struct {
	ID          string  `json:"id" bson:"-" dynamodbav:"id"`
	Title       string  `json:"title" bson:"title" dynamodbav:"title"`
	Genre       *string `json:"genre,omitempty" bson:"genre,omitempty" dynamodbav:"genre,omitempty"`
	ReleaseYear *int    `json:"releaseYear,omitempty" bson:"releaseYear,omitempty" dynamodbav:"releaseYear,omitempty"`
	Director    *string `json:"director,omitempty" bson:"director,omitempty" dynamodbav:"director,omitempty"`
	Rating      *int    `json:"rating,omitempty" bson:"rating,omitempty" dynamodbav:"rating,omitempty"`
}

// DocumentID implements document.Entity.
func (m *Movie) DocumentID() string { return m.ID }

// SetDocumentID implements document.Entity.
func (m *Movie) SetDocumentID(id string) { m.ID = id }

// Repository is the store contract the service depends on.
type Repository = document.Repository[Movie, string]

// attributes returns the non-id fields that are set, keyed by field name.
func (m Movie) attributes() map[string]any {
	attrs := map[string]any{FieldTitle: m.Title}
	if m.Genre != nil {
		attrs[FieldGenre] = *m.Genre
	}
	if m.ReleaseYear != nil {
		attrs[FieldReleaseYear] = *m.ReleaseYear
	}
	if m.Director != nil {
		attrs[FieldDirector] = *m.Director
	}
	if m.Rating != nil {
		attrs[FieldRating] = *m.Rating
	}
	return attrs
}
