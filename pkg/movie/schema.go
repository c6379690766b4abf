package movie

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// recordSchema describes a stored movie after coercion. Payloads are coerced
// first (numeric strings to integers, scalars to strings) and then checked
// against it.
func recordSchema() *jsonschema.Schema {
	nonBlank := `\S`
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{FieldTitle},
		Properties: map[string]*jsonschema.Schema{
			FieldTitle:       {Type: "string", Pattern: nonBlank},
			FieldGenre:       {Types: []string{"string", "null"}},
			FieldReleaseYear: {Types: []string{"integer", "null"}},
			FieldDirector:    {Types: []string{"string", "null"}},
			FieldRating:      {Types: []string{"integer", "null"}},
		},
	}
}

var resolvedSchema = mustResolve(recordSchema())

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("movie schema: %v", err))
	}
	return r
}

var (
	stringFields  = []string{FieldTitle, FieldGenre, FieldDirector}
	integerFields = []string{FieldReleaseYear, FieldRating}
)

// ParseMovie coerces a decoded JSON object into a Movie. Unknown fields and
// any client-supplied id are ignored; null means absent.
func ParseMovie(payload map[string]any) (Movie, error) {
	doc := make(map[string]any)
	problems := make(map[string]string)

	for _, f := range stringFields {
		v, ok := payload[f]
		if !ok || v == nil {
			continue
		}
		s, ok := coerceString(v)
		if !ok {
			problems[f] = "must be a string"
			continue
		}
		doc[f] = s
	}
	for _, f := range integerFields {
		v, ok := payload[f]
		if !ok || v == nil {
			continue
		}
		n, ok := coerceInt(v)
		if !ok {
			problems[f] = "must be an integer"
			continue
		}
		doc[f] = n
	}

	title, hasTitle := doc[FieldTitle].(string)
	switch {
	case problems[FieldTitle] != "":
	case !hasTitle:
		problems[FieldTitle] = "is required"
	case strings.TrimSpace(title) == "":
		problems[FieldTitle] = "must not be empty"
	}
	if len(problems) > 0 {
		return Movie{}, &ValidationError{Fields: problems}
	}

	if err := resolvedSchema.Validate(jsonInstance(doc)); err != nil {
		return Movie{}, &ValidationError{Fields: map[string]string{"document": err.Error()}}
	}
	return fromAttributes(doc), nil
}

// Merge overlays payload onto existing and re-validates the result. Fields
// missing from payload keep their stored value; a null clears an optional field.
func Merge(existing Movie, payload map[string]any) (Movie, error) {
	merged := existing.attributes()
	for _, f := range append(append([]string{}, stringFields...), integerFields...) {
		v, ok := payload[f]
		if !ok {
			continue
		}
		if v == nil {
			delete(merged, f)
			continue
		}
		merged[f] = v
	}

	m, err := ParseMovie(merged)
	if err != nil {
		return Movie{}, err
	}
	m.ID = existing.ID
	return m, nil
}

// jsonInstance mirrors doc the way encoding/json decodes it, with every
// number as float64.
func jsonInstance(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if n, ok := v.(int); ok {
			out[k] = float64(n)
			continue
		}
		out[k] = v
	}
	return out
}

func fromAttributes(doc map[string]any) Movie {
	m := Movie{Title: doc[FieldTitle].(string)}
	if v, ok := doc[FieldGenre].(string); ok {
		m.Genre = &v
	}
	if v, ok := doc[FieldDirector].(string); ok {
		m.Director = &v
	}
	if v, ok := doc[FieldReleaseYear].(int); ok {
		m.ReleaseYear = &v
	}
	if v, ok := doc[FieldRating].(int); ok {
		m.Rating = &v
	}
	return m
}

func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return floatToInt(float64(i))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
