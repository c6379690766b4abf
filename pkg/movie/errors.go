package movie

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nimburion/movies/pkg/repository/document"
)

var (
	// ErrNotFound reports that no movie has the requested id.
	ErrNotFound = errors.New("movie not found")
	// ErrInvalidID reports an id the store cannot parse.
	ErrInvalidID = errors.New("invalid movie id")
)

// ValidationError lists the payload fields that could not be coerced into a Movie.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid movie: " + joinReasons(e.Fields)
}

// QueryError lists the query parameters rejected in strict mode.
type QueryError struct {
	Params map[string]string
}

func (e *QueryError) Error() string {
	return "invalid query parameters: " + joinReasons(e.Params)
}

// StoreError wraps a failure of the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr converts repository errors into the package's error taxonomy.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, document.ErrInvalidID):
		return ErrInvalidID
	default:
		return &StoreError{Op: op, Err: err}
	}
}

func joinReasons(reasons map[string]string) string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+reasons[k])
	}
	return strings.Join(parts, "; ")
}
