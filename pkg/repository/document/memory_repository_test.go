package document

import (
	"context"
	"errors"
	"testing"
)

func seedMemory(t *testing.T, docs ...record) *MemoryRepository[record, *record] {
	t.Helper()
	repo := NewMemoryRepository[record, *record]()
	for i := range docs {
		if err := repo.Create(context.Background(), &docs[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	return repo
}

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[record, *record]()

	doc := record{Name: "Heat", Kind: strPtr("crime"), Score: intPtr(8)}
	if err := repo.Create(ctx, &doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatal("Create() did not assign an id")
	}

	got, err := repo.FindByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Name != "Heat" || *got.Score != 8 {
		t.Errorf("FindByID() = %+v", got)
	}

	replacement := record{ID: doc.ID, Name: "Heat (1995)"}
	if err := repo.Update(ctx, &replacement); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.FindByID(ctx, doc.ID)
	if got.Name != "Heat (1995)" || got.Kind != nil || got.Score != nil {
		t.Errorf("Update() did not replace the document: %+v", got)
	}

	deleted, err := repo.Delete(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.ID != doc.ID {
		t.Errorf("Delete() returned %+v", deleted)
	}
	if _, err := repo.FindByID(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := repo.Delete(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_InvalidID(t *testing.T) {
	repo := NewMemoryRepository[record, *record]()
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "not-an-id"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("FindByID() error = %v, want ErrInvalidID", err)
	}
	if err := repo.Update(ctx, &record{ID: "nope", Name: "x"}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Update() error = %v, want ErrInvalidID", err)
	}
	if _, err := repo.Delete(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Delete() error = %v, want ErrInvalidID", err)
	}
}

func TestMemoryRepository_UpdateMissing(t *testing.T) {
	repo := seedMemory(t, record{Name: "a"})
	other := seedMemory(t, record{Name: "b"})
	ids, _ := other.FindAll(context.Background(), QueryOptions{})

	err := repo.Update(context.Background(), &record{ID: ids[0].ID, Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_FindAllAndCount(t *testing.T) {
	repo := seedMemory(t,
		record{Name: "c", Kind: strPtr("drama"), Score: intPtr(7)},
		record{Name: "a", Kind: strPtr("comedy"), Score: intPtr(9)},
		record{Name: "b", Kind: strPtr("drama"), Score: intPtr(5)},
		record{Name: "d", Kind: strPtr("drama")},
	)
	ctx := context.Background()

	names := func(docs []record) string {
		s := ""
		for _, d := range docs {
			s += d.Name
		}
		return s
	}

	tests := []struct {
		name string
		opts QueryOptions
		want string
	}{
		{"everything in insertion order", QueryOptions{}, "cabd"},
		{"filter by kind", QueryOptions{Filter: Filter{"kind": "drama"}}, "cbd"},
		{"filter by numeric field", QueryOptions{Filter: Filter{"score": 9}}, "a"},
		{"sorted descending by score", QueryOptions{Sort: Sort{Field: "score", Order: SortDesc}}, "acbd"},
		{"paged", QueryOptions{Sort: Sort{Field: "name"}, Pagination: Pagination{Page: 2, Limit: 2}}, "cd"},
		{"no match", QueryOptions{Filter: Filter{"kind": "horror"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := repo.FindAll(ctx, tt.opts)
			if err != nil {
				t.Fatalf("FindAll() error = %v", err)
			}
			if got := names(docs); got != tt.want {
				t.Errorf("FindAll() = %q, want %q", got, tt.want)
			}
		})
	}

	n, err := repo.Count(ctx, Filter{"kind": "drama"})
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestMemoryRepository_HonoursCancelledContext(t *testing.T) {
	repo := NewMemoryRepository[record, *record]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Create(ctx, &record{Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
}
