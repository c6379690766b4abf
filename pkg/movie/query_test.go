package movie

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/movies/pkg/repository/document"
)

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestListQuery_Lenient(t *testing.T) {
	policy := DefaultQueryPolicy()

	tests := []struct {
		name  string
		query string
		want  document.QueryOptions
	}{
		{
			name:  "no parameters",
			query: "",
			want: document.QueryOptions{
				Filter:     document.Filter{},
				Pagination: document.Pagination{Page: 1, Limit: 10},
			},
		},
		{
			name:  "every filter",
			query: "genre=Drama&releaseYear=1994&director=Frank+Darabont&rating=9",
			want: document.QueryOptions{
				Filter: document.Filter{
					"genre": "Drama", "releaseYear": 1994, "director": "Frank Darabont", "rating": 9,
				},
				Pagination: document.Pagination{Page: 1, Limit: 10},
			},
		},
		{
			name:  "descending sort and paging",
			query: "sort=-rating&page=2&limit=5",
			want: document.QueryOptions{
				Filter:     document.Filter{},
				Sort:       document.Sort{Field: "rating", Order: document.SortDesc},
				Pagination: document.Pagination{Page: 2, Limit: 5},
			},
		},
		{
			name:  "ascending sort",
			query: "sort=title",
			want: document.QueryOptions{
				Filter:     document.Filter{},
				Sort:       document.Sort{Field: "title", Order: document.SortAsc},
				Pagination: document.Pagination{Page: 1, Limit: 10},
			},
		},
		{
			name:  "invalid values fall back",
			query: "releaseYear=abc&rating=&page=-1&limit=0&sort=budget&foo=bar",
			want: document.QueryOptions{
				Filter:     document.Filter{},
				Pagination: document.Pagination{Page: 1, Limit: 10},
			},
		},
		{
			name:  "non-numeric paging falls back",
			query: "page=two&limit=ten",
			want: document.QueryOptions{
				Filter:     document.Filter{},
				Pagination: document.Pagination{Page: 1, Limit: 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.ListQuery(mustQuery(t, tt.query))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListQuery_Strict(t *testing.T) {
	policy := QueryPolicy{Mode: ModeStrict, DefaultLimit: 10, MaxLimit: 50}

	for _, raw := range []string{"limit=abc", "page=0", "releaseYear=x", "sort=bogus", "limit=51", "rating=9.5"} {
		t.Run(raw, func(t *testing.T) {
			_, err := policy.ListQuery(mustQuery(t, raw))
			var qerr *QueryError
			require.ErrorAs(t, err, &qerr)
			assert.Len(t, qerr.Params, 1)
		})
	}

	t.Run("valid query passes", func(t *testing.T) {
		got, err := policy.ListQuery(mustQuery(t, "genre=Drama&sort=-releaseYear&page=3&limit=50"))
		require.NoError(t, err)
		assert.Equal(t, document.Pagination{Page: 3, Limit: 50}, got.Pagination)
	})

	t.Run("all problems are reported", func(t *testing.T) {
		_, err := policy.ListQuery(mustQuery(t, "page=0&limit=x&sort=nope"))
		var qerr *QueryError
		require.ErrorAs(t, err, &qerr)
		assert.Len(t, qerr.Params, 3)
	})
}

func TestListQuery_MaxLimit(t *testing.T) {
	policy := QueryPolicy{Mode: ModeLenient, DefaultLimit: 10, MaxLimit: 25}
	got, err := policy.ListQuery(mustQuery(t, "limit=1000"))
	require.NoError(t, err)
	assert.Equal(t, 25, got.Pagination.Limit)

	unbounded := DefaultQueryPolicy()
	got, err = unbounded.ListQuery(mustQuery(t, "limit=1000"))
	require.NoError(t, err)
	assert.Equal(t, 1000, got.Pagination.Limit)
}

func TestSearchFilter(t *testing.T) {
	got, err := DefaultQueryPolicy().SearchFilter(mustQuery(t, "genre=Sci-Fi&releaseYear=2010&rating=9&director=Nolan&sort=title"))
	require.NoError(t, err)
	assert.Equal(t, document.Filter{"genre": "Sci-Fi", "releaseYear": 2010, "rating": 9}, got)

	_, err = QueryPolicy{Mode: ModeStrict, DefaultLimit: 10}.SearchFilter(mustQuery(t, "rating=high"))
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
}

func TestSearchFilter_NumericValuesMatchPayloadCoercion(t *testing.T) {
	strict := QueryPolicy{Mode: ModeStrict, DefaultLimit: 10}

	for _, raw := range []string{"2010", " 2010 ", "2010.0", "2.01e3"} {
		t.Run(raw, func(t *testing.T) {
			// Given a movie stored from the same value
			m, err := ParseMovie(map[string]any{FieldTitle: "Inception", FieldReleaseYear: raw})
			require.NoError(t, err)

			// When it is used as a filter
			got, err := strict.SearchFilter(url.Values{FieldReleaseYear: {raw}})

			// Then both sides agree on the integer
			require.NoError(t, err)
			assert.Equal(t, *m.ReleaseYear, got[FieldReleaseYear])
		})
	}

	_, err := strict.SearchFilter(url.Values{FieldReleaseYear: {"2010.5"}})
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeLenient, "lenient": ModeLenient, " STRICT ": ModeStrict} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("loose")
	assert.Error(t, err)
}

func TestProperty_ListQuery(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)
	policy := DefaultQueryPolicy()

	properties.Property("page and limit are always positive", prop.ForAll(
		func(page, limit string) bool {
			opts, err := policy.ListQuery(url.Values{ParamPage: {page}, ParamLimit: {limit}})
			return err == nil && opts.Pagination.Page >= 1 && opts.Pagination.Limit >= 1
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("skip is (page-1)*limit", prop.ForAll(
		func(page, limit int) bool {
			opts, err := policy.ListQuery(url.Values{
				ParamPage:  {strconv.Itoa(page)},
				ParamLimit: {strconv.Itoa(limit)},
			})
			return err == nil && opts.Pagination.Skip() == (page-1)*limit
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 1000),
	))

	properties.Property("unknown parameters never reach the filter", prop.ForAll(
		func(name, value string) bool {
			opts, err := policy.ListQuery(url.Values{"x" + name: {value}})
			return err == nil && len(opts.Filter) == 0
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestIndexedFields(t *testing.T) {
	fields := IndexedFields()
	assert.Equal(t, []string{FieldGenre, FieldReleaseYear, FieldDirector, FieldRating}, fields)

	fields[0] = "mutated"
	assert.Equal(t, FieldGenre, IndexedFields()[0], "callers must not alias the filter field list")
}
