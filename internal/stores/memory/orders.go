package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"

	"github.com/google/uuid"
)

// OrderStore keeps orders in process memory. It honours the same conditional-write and
// subscription contract as the Postgres store and backs tests and local runs.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]orders.Order
	subs   map[int]chan struct{}
	nextID int
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]orders.Order),
		subs:   make(map[int]chan struct{}),
	}
}

func (s *OrderStore) Create(_ context.Context, o orders.Order) (orders.Order, error) {
	if err := orders.CheckStatus(o); err != nil {
		return orders.Order{}, err
	}
	s.mu.Lock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, exists := s.orders[o.ID]; exists {
		s.mu.Unlock()
		return orders.Order{}, fmt.Errorf("%w: order %s already exists", orders.ErrConflict, o.ID)
	}
	o.Version = 1
	s.orders[o.ID] = o.Clone()
	s.mu.Unlock()

	s.notify()
	return o, nil
}

func (s *OrderStore) Get(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrNotFound, id)
	}
	return o.Clone(), nil
}

// Query returns matching orders newest first.
func (s *OrderStore) Query(_ context.Context, f orders.Filter) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(f), nil
}

func (s *OrderStore) query(f orders.Filter) []orders.Order {
	out := make([]orders.Order, 0)
	for _, o := range s.orders {
		if f.Match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *OrderStore) Update(_ context.Context, id string, expectedVersion int64, o orders.Order) (orders.Order, error) {
	if err := orders.CheckStatus(o); err != nil {
		return orders.Order{}, err
	}
	s.mu.Lock()
	cur, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrNotFound, id)
	}
	if cur.Version != expectedVersion {
		s.mu.Unlock()
		return orders.Order{}, fmt.Errorf("%w: %s at version %d, expected %d", orders.ErrConflict, id, cur.Version, expectedVersion)
	}
	o.ID = id
	o.Version = expectedVersion + 1
	s.orders[id] = o.Clone()
	s.mu.Unlock()

	s.notify()
	return o, nil
}

func (s *OrderStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.orders[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", orders.ErrNotFound, id)
	}
	delete(s.orders, id)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *OrderStore) Subscribe(ctx context.Context, f orders.Filter, onChange func([]orders.Order)) error {
	changed := make(chan struct{}, 1)
	s.mu.Lock()
	key := s.nextID
	s.nextID++
	s.subs[key] = changed
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, key)
		s.mu.Unlock()
	}()

	onChange(s.snapshot(f))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			onChange(s.snapshot(f))
		}
	}
}

func (s *OrderStore) snapshot(f orders.Filter) []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(f)
}

// notify wakes every subscriber; a pending wake-up already covers later changes.
func (s *OrderStore) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
