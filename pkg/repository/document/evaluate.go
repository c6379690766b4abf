package document

import (
	"sort"
	"strings"
)

// Backends without server-side sorting or offsets (memory, DynamoDB scans)
// evaluate queries over decoded attribute maps with these helpers. Ordering
// follows MongoDB's cross-type rules: missing < numbers < strings < booleans.

func matches(doc map[string]interface{}, filter Filter) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok || got == nil {
			return false
		}
		if compareValues(got, want) != 0 {
			return false
		}
	}
	return true
}

// window applies sort and pagination to docs and returns the selected indexes.
func window(docs []map[string]interface{}, s Sort, p Pagination) []int {
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}

	if !s.IsZero() {
		sort.SliceStable(idx, func(a, b int) bool {
			c := compareValues(docs[idx[a]][s.Field], docs[idx[b]][s.Field])
			if s.Order == SortDesc {
				return c > 0
			}
			return c < 0
		})
	}

	if p.Limit <= 0 {
		return idx
	}
	start := p.Skip()
	if start >= len(idx) {
		return []int{}
	}
	end := start + p.Limit
	if end > len(idx) {
		end = len(idx)
	}
	return idx[start:end]
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	default:
		return 4
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 1:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	return 0
}
