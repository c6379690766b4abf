package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"
)

// MemoryRepository keeps T documents in process, in insertion order. Fields
// are addressed by their JSON names. It backs tests and local runs.
type MemoryRepository[T any, PT EntityPtr[T]] struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]T
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository[T any, PT EntityPtr[T]]() *MemoryRepository[T, PT] {
	return &MemoryRepository[T, PT]{docs: make(map[string]T)}
}

// Create stores a copy of entity under a fresh KSUID.
func (r *MemoryRepository[T, PT]) Create(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := ksuid.New().String()
	PT(entity).SetDocumentID(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id] = *entity
	r.order = append(r.order, id)
	return nil
}

// FindByID returns a copy of the stored document.
func (r *MemoryRepository[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKSUID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// FindAll returns the window selected by opts.
func (r *MemoryRepository[T, PT]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, attrs, err := r.matching(opts.Filter)
	if err != nil {
		return nil, err
	}

	selected := window(attrs, opts.Sort, opts.Pagination)
	out := make([]T, 0, len(selected))
	for _, i := range selected {
		out = append(out, docs[i])
	}
	return out, nil
}

// Count returns how many documents match filter.
func (r *MemoryRepository[T, PT]) Count(ctx context.Context, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	docs, _, err := r.matching(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Update replaces the stored document with entity.
func (r *MemoryRepository[T, PT]) Update(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := PT(entity).DocumentID()
	if err := validateKSUID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	r.docs[id] = *entity
	return nil
}

// Delete removes the document and returns it.
func (r *MemoryRepository[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKSUID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.docs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return &doc, nil
}

// matching returns the documents passing filter, in insertion order, with
// their JSON attribute maps.
func (r *MemoryRepository[T, PT]) matching(filter Filter) ([]T, []map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]T, 0, len(r.order))
	attrs := make([]map[string]interface{}, 0, len(r.order))
	for _, id := range r.order {
		doc := r.docs[id]
		m, err := jsonAttributes(doc)
		if err != nil {
			return nil, nil, err
		}
		if !matches(m, filter) {
			continue
		}
		docs = append(docs, doc)
		attrs = append(attrs, m)
	}
	return docs, attrs, nil
}

func jsonAttributes(doc interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return m, nil
}

func validateKSUID(id string) error {
	if _, err := ksuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
