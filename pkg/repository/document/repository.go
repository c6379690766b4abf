// Package document provides generic repositories over document stores.
// Every backend honours the same Filter/Sort/Pagination semantics: equality
// filters, one optional sort key and page/limit windows.
package document

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document has the requested identifier.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned when an identifier is not well formed for the backend.
	ErrInvalidID = errors.New("invalid document id")
)

// IDField is the logical name of the identifier in filters and sorts.
const IDField = "id"

// Filter represents field-based equality criteria for document stores.
// An empty filter matches every document.
type Filter map[string]interface{}

// Sort specifies field and direction for sorting results.
// A zero Sort leaves the store's natural order in place.
type Sort struct {
	Field string
	Order SortOrder
}

// IsZero reports whether no explicit ordering was requested.
func (s Sort) IsZero() bool {
	return s.Field == ""
}

// SortOrder defines the direction of sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Pagination selects a window of Limit documents starting at page Page (1-based).
// A non-positive Limit returns every matching document.
type Pagination struct {
	Page  int
	Limit int
}

// Skip returns the number of documents preceding the requested page.
func (p Pagination) Skip() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// QueryOptions encapsulates filtering, sorting, and pagination options for document queries.
type QueryOptions struct {
	Filter     Filter
	Sort       Sort
	Pagination Pagination
}

// Entity is implemented by documents whose identifier is assigned by the store.
type Entity interface {
	DocumentID() string
	SetDocumentID(id string)
}

// EntityPtr constrains a pointer to T that implements Entity.
type EntityPtr[T any] interface {
	*T
	Entity
}

// Reader provides read operations for document entities.
type Reader[T any, ID comparable] interface {
	FindByID(ctx context.Context, id ID) (*T, error)
	FindAll(ctx context.Context, opts QueryOptions) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Writer provides write operations for document entities.
type Writer[T any, ID comparable] interface {
	// Create stores entity and sets its identifier.
	Create(ctx context.Context, entity *T) error
	// Update replaces the stored document identified by entity's ID.
	Update(ctx context.Context, entity *T) error
	// Delete removes the document and returns it as it was stored.
	Delete(ctx context.Context, id ID) (*T, error)
}

// Repository combines Reader and Writer interfaces for document stores.
type Repository[T any, ID comparable] interface {
	Reader[T, ID]
	Writer[T, ID]
}
