package movie

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nimburion/movies/pkg/repository/document"
)

// Mode selects how invalid query parameters are handled.
type Mode string

const (
	// ModeLenient drops invalid values and falls back to defaults.
	ModeLenient Mode = "lenient"
	// ModeStrict rejects invalid values with a QueryError.
	ModeStrict Mode = "strict"
)

// Query parameter names besides the filterable fields.
const (
	ParamSort  = "sort"
	ParamPage  = "page"
	ParamLimit = "limit"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

var (
	listFilterFields   = []string{FieldGenre, FieldReleaseYear, FieldDirector, FieldRating}
	searchFilterFields = []string{FieldGenre, FieldReleaseYear, FieldRating}
	numericFields      = map[string]bool{FieldReleaseYear: true, FieldRating: true}
	sortableFields     = map[string]bool{
		FieldID: true, FieldTitle: true, FieldGenre: true,
		FieldReleaseYear: true, FieldDirector: true, FieldRating: true,
	}
)

// IndexedFields lists the fields list queries filter on.
func IndexedFields() []string {
	return append([]string(nil), listFilterFields...)
}

// QueryPolicy controls how list and search query strings are translated.
type QueryPolicy struct {
	Mode Mode
	// DefaultLimit is used when limit is absent or invalid.
	DefaultLimit int
	// MaxLimit caps limit; zero means unbounded.
	MaxLimit int
}

// DefaultQueryPolicy returns the lenient policy with a page size of 10.
func DefaultQueryPolicy() QueryPolicy {
	return QueryPolicy{Mode: ModeLenient, DefaultLimit: defaultLimit}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLenient, "":
		return ModeLenient, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("invalid query mode %q (supported: lenient, strict)", s)
	}
}

// ListQuery translates the query string of GET /movies into a filter, an
// optional sort and a page window.
func (p QueryPolicy) ListQuery(values url.Values) (document.QueryOptions, error) {
	problems := make(map[string]string)

	opts := document.QueryOptions{
		Filter: p.filter(values, listFilterFields, problems),
		Sort:   p.sort(values.Get(ParamSort), problems),
		Pagination: document.Pagination{
			Page:  p.positive(values, ParamPage, defaultPage, problems),
			Limit: p.limit(values, problems),
		},
	}

	if len(problems) > 0 {
		return document.QueryOptions{}, &QueryError{Params: problems}
	}
	return opts, nil
}

// SearchFilter translates the query string of GET /movies/search into an
// equality filter. Search is never sorted nor paginated.
func (p QueryPolicy) SearchFilter(values url.Values) (document.Filter, error) {
	problems := make(map[string]string)
	filter := p.filter(values, searchFilterFields, problems)
	if len(problems) > 0 {
		return nil, &QueryError{Params: problems}
	}
	return filter, nil
}

func (p QueryPolicy) strict() bool {
	return p.Mode == ModeStrict
}

func (p QueryPolicy) filter(values url.Values, fields []string, problems map[string]string) document.Filter {
	filter := document.Filter{}
	for _, field := range fields {
		raw := values.Get(field)
		if raw == "" {
			continue
		}
		if !numericFields[field] {
			filter[field] = raw
			continue
		}
		n, ok := coerceInt(raw)
		if !ok {
			if p.strict() {
				problems[field] = "must be an integer"
			}
			continue
		}
		filter[field] = n
	}
	return filter
}

func (p QueryPolicy) sort(raw string, problems map[string]string) document.Sort {
	if raw == "" {
		return document.Sort{}
	}
	order := document.SortAsc
	field := raw
	if strings.HasPrefix(raw, "-") {
		order = document.SortDesc
		field = raw[1:]
	}
	if !sortableFields[field] {
		if p.strict() {
			problems[ParamSort] = fmt.Sprintf("unknown field %q", field)
		}
		return document.Sort{}
	}
	return document.Sort{Field: field, Order: order}
}

func (p QueryPolicy) positive(values url.Values, param string, fallback int, problems map[string]string) int {
	raw := values.Get(param)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		if p.strict() {
			problems[param] = "must be a positive integer"
		}
		return fallback
	}
	return n
}

func (p QueryPolicy) limit(values url.Values, problems map[string]string) int {
	fallback := p.DefaultLimit
	if fallback <= 0 {
		fallback = defaultLimit
	}
	if p.MaxLimit > 0 && fallback > p.MaxLimit {
		fallback = p.MaxLimit
	}

	limit := p.positive(values, ParamLimit, fallback, problems)
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		if p.strict() {
			problems[ParamLimit] = fmt.Sprintf("must not exceed %d", p.MaxLimit)
		}
		return p.MaxLimit
	}
	return limit
}
