// Package memory provides an in-memory ProductStore for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/restockd/restockd/internal/watch"
)

// ProductStore keeps products and check history in process memory. Reads
// return copies, and every mutation holds the write lock for its whole
// duration, so per-product updates are atomic as the engine requires.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]watch.Product
	order    []string
	history  map[string][]watch.CheckRecord
}

// NewProductStore constructs an empty store.
func NewProductStore() *ProductStore {
	return &ProductStore{
		products: make(map[string]watch.Product),
		history:  make(map[string][]watch.CheckRecord),
	}
}

// Create stores a new product. URLs are unique across products.
func (s *ProductStore) Create(_ context.Context, product watch.Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	for _, existing := range s.products {
		if existing.URL == product.URL {
			return fmt.Errorf("product url %s already tracked", product.URL)
		}
	}
	s.products[product.ID] = cloneProduct(product)
	s.order = append(s.order, product.ID)
	return nil
}

// GetAll returns all products in insertion order.
func (s *ProductStore) GetAll(context.Context) ([]watch.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]watch.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneProduct(s.products[id]))
	}
	return out, nil
}

// GetByID fetches one product.
func (s *ProductStore) GetByID(_ context.Context, id string) (watch.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return watch.Product{}, watch.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

// Update applies the non-nil fields of upd to the stored product.
func (s *ProductStore) Update(_ context.Context, id string, upd watch.ProductUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return watch.ErrProductNotFound
	}
	if upd.Status != nil {
		product.Status = *upd.Status
	}
	if upd.Confidence != nil {
		product.Confidence = *upd.Confidence
	}
	if upd.Evidence != nil {
		product.Evidence = append([]string(nil), upd.Evidence...)
	}
	if upd.LastCheckedAt != nil {
		ts := *upd.LastCheckedAt
		product.LastCheckedAt = &ts
	}
	s.products[id] = product
	return nil
}

// Delete removes the product and cascades to its check history.
func (s *ProductStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return watch.ErrProductNotFound
	}
	delete(s.products, id)
	delete(s.history, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// AppendCheckRecord adds one history row for an existing product.
func (s *ProductStore) AppendCheckRecord(_ context.Context, rec watch.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[rec.ProductID]; !ok {
		return watch.ErrProductNotFound
	}
	rec.Evidence = append([]string(nil), rec.Evidence...)
	s.history[rec.ProductID] = append(s.history[rec.ProductID], rec)
	return nil
}

// History returns the check records for a product, oldest first.
func (s *ProductStore) History(_ context.Context, productID string) ([]watch.CheckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[productID]
	out := make([]watch.CheckRecord, len(records))
	copy(out, records)
	return out, nil
}

func cloneProduct(p watch.Product) watch.Product {
	if p.Evidence != nil {
		p.Evidence = append([]string(nil), p.Evidence...)
	}
	if p.LastCheckedAt != nil {
		ts := *p.LastCheckedAt
		p.LastCheckedAt = &ts
	}
	return p
}
