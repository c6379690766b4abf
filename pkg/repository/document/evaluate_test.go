package document

import (
	"reflect"
	"testing"
)

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"equal ints across types", int32(2010), 2010, 0},
		{"float vs int", float64(7), 8, -1},
		{"strings", "Drama", "Comedy", 1},
		{"missing sorts first", nil, 1, -1},
		{"numbers before strings", 99, "a", -1},
		{"booleans after strings", true, "z", 1},
		{"bools", false, true, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareValues(tt.a, tt.b); got != tt.want {
				t.Errorf("compareValues(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	doc := map[string]interface{}{"kind": "drama", "score": float64(8)}

	if !matches(doc, Filter{}) {
		t.Error("empty filter must match")
	}
	if !matches(doc, Filter{"kind": "drama", "score": 8}) {
		t.Error("expected numeric and string equality to match")
	}
	if matches(doc, Filter{"kind": "Drama"}) {
		t.Error("equality is case sensitive")
	}
	if matches(doc, Filter{"name": "x"}) {
		t.Error("missing field must not match")
	}
}

func TestWindow(t *testing.T) {
	docs := []map[string]interface{}{
		{"name": "c", "score": float64(3)},
		{"name": "a"},
		{"name": "b", "score": float64(1)},
	}

	tests := []struct {
		name string
		sort Sort
		page Pagination
		want []int
	}{
		{"natural order, unbounded", Sort{}, Pagination{}, []int{0, 1, 2}},
		{"ascending by name", Sort{Field: "name", Order: SortAsc}, Pagination{}, []int{1, 2, 0}},
		{"descending by score puts missing last", Sort{Field: "score", Order: SortDesc}, Pagination{}, []int{0, 2, 1}},
		{"second page of one", Sort{Field: "name"}, Pagination{Page: 2, Limit: 1}, []int{2}},
		{"page past the end", Sort{}, Pagination{Page: 4, Limit: 1}, []int{}},
		{"partial last page", Sort{}, Pagination{Page: 2, Limit: 2}, []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window(docs, tt.sort, tt.page); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("window() = %v, want %v", got, tt.want)
			}
		})
	}
}
