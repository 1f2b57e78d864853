package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
)

type CatalogStore struct {
	mu         sync.RWMutex
	categories map[string]catalog.Category
	products   map[string]catalog.Product
	applied    map[string]bool
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		categories: make(map[string]catalog.Category),
		products:   make(map[string]catalog.Product),
		applied:    make(map[string]bool),
	}
}

func (s *CatalogStore) Categories(context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CatalogStore) Category(_ context.Context, id string) (catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, fmt.Errorf("%w: category %s", catalog.ErrNotFound, id)
	}
	return c, nil
}

func (s *CatalogStore) SaveCategory(_ context.Context, c catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

func (s *CatalogStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("%w: category %s", catalog.ErrNotFound, id)
	}
	delete(s.categories, id)
	return nil
}

func (s *CatalogStore) Products(_ context.Context, categoryID string) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if categoryID == "" || p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CatalogStore) Product(_ context.Context, id string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %s", catalog.ErrNotFound, id)
	}
	return p, nil
}

func (s *CatalogStore) SaveProduct(_ context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *CatalogStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("%w: product %s", catalog.ErrNotFound, id)
	}
	delete(s.products, id)
	return nil
}

// DecrementStock floors stock at zero and ignores products that no longer exist.
func (s *CatalogStore) DecrementStock(_ context.Context, orderID string, lines []catalog.StockLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied[orderID] {
		return nil
	}
	for _, l := range lines {
		p, ok := s.products[l.ProductID]
		if !ok {
			continue
		}
		p.Stock = max(p.Stock-l.Quantity, 0)
		s.products[l.ProductID] = p
	}
	s.applied[orderID] = true
	return nil
}

// Cache is an in-process catalog.Cache with per-entry expiry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value   []byte
	expires time.Time
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
