package movie

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int        { return &n }

func TestParseMovie(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		want       Movie
		wantFields []string
	}{
		{
			name: "full record",
			payload: map[string]any{
				"title": "Inception", "genre": "Sci-Fi", "releaseYear": float64(2010),
				"director": "Christopher Nolan", "rating": float64(9),
			},
			want: Movie{
				Title: "Inception", Genre: strPtr("Sci-Fi"), ReleaseYear: intPtr(2010),
				Director: strPtr("Christopher Nolan"), Rating: intPtr(9),
			},
		},
		{
			name:    "title only",
			payload: map[string]any{"title": "Up"},
			want:    Movie{Title: "Up"},
		},
		{
			name:    "numeric strings are coerced",
			payload: map[string]any{"title": "Up", "releaseYear": "2009", "rating": " 8 "},
			want:    Movie{Title: "Up", ReleaseYear: intPtr(2009), Rating: intPtr(8)},
		},
		{
			name:    "scalars are coerced to strings",
			payload: map[string]any{"title": float64(1917), "genre": true},
			want:    Movie{Title: "1917", Genre: strPtr("true")},
		},
		{
			name:    "null means absent and unknown fields are ignored",
			payload: map[string]any{"title": "Up", "genre": nil, "id": "abc", "budget": 175},
			want:    Movie{Title: "Up"},
		},
		{name: "missing title", payload: map[string]any{"genre": "Drama"}, wantFields: []string{"title"}},
		{name: "null title", payload: map[string]any{"title": nil}, wantFields: []string{"title"}},
		{name: "blank title", payload: map[string]any{"title": "   "}, wantFields: []string{"title"}},
		{name: "object title", payload: map[string]any{"title": map[string]any{}}, wantFields: []string{"title"}},
		{
			name:       "non-integral and non-numeric values",
			payload:    map[string]any{"title": "Up", "releaseYear": 2009.5, "rating": "great"},
			wantFields: []string{"releaseYear", "rating"},
		},
		{
			name:       "out of range year",
			payload:    map[string]any{"title": "Up", "releaseYear": "99999999999"},
			wantFields: []string{"releaseYear"},
		},
		{
			name:       "array genre",
			payload:    map[string]any{"title": "Up", "genre": []any{"a"}},
			wantFields: []string{"genre"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMovie(tt.payload)
			if len(tt.wantFields) > 0 {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				for _, f := range tt.wantFields {
					assert.Contains(t, verr.Fields, f)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge(t *testing.T) {
	existing := Movie{
		ID: "m1", Title: "Inception", Genre: strPtr("Sci-Fi"),
		ReleaseYear: intPtr(2010), Director: strPtr("Christopher Nolan"), Rating: intPtr(9),
	}

	t.Run("provided fields replace stored ones", func(t *testing.T) {
		got, err := Merge(existing, map[string]any{"rating": float64(10)})
		require.NoError(t, err)
		assert.Equal(t, "m1", got.ID)
		assert.Equal(t, 10, *got.Rating)
		assert.Equal(t, "Sci-Fi", *got.Genre)
		assert.Equal(t, "Inception", got.Title)
	})

	t.Run("null clears an optional field", func(t *testing.T) {
		got, err := Merge(existing, map[string]any{"genre": nil, "director": nil})
		require.NoError(t, err)
		assert.Nil(t, got.Genre)
		assert.Nil(t, got.Director)
		assert.Equal(t, 2010, *got.ReleaseYear)
	})

	t.Run("client id is ignored", func(t *testing.T) {
		got, err := Merge(existing, map[string]any{"id": "other"})
		require.NoError(t, err)
		assert.Equal(t, "m1", got.ID)
	})

	t.Run("clearing the title fails validation", func(t *testing.T) {
		_, err := Merge(existing, map[string]any{"title": nil})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "is required", verr.Fields["title"])
	})

	t.Run("invalid value fails validation", func(t *testing.T) {
		_, err := Merge(existing, map[string]any{"rating": "ten"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "rating")
	})

	t.Run("existing record is not modified", func(t *testing.T) {
		_, err := Merge(existing, map[string]any{"rating": 1})
		require.NoError(t, err)
		assert.Equal(t, 9, *existing.Rating)
	})
}

func TestProperty_ParseMovieKeepsValidInput(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("non-blank titles and integer fields survive parsing", prop.ForAll(
		func(title, genre string, year, rating int) bool {
			m, err := ParseMovie(map[string]any{
				"title": "t" + title, "genre": genre,
				"releaseYear": float64(year), "rating": rating,
			})
			if err != nil {
				return false
			}
			return m.Title == "t"+title && *m.Genre == genre && *m.ReleaseYear == year && *m.Rating == rating
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(1888, 2100),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
