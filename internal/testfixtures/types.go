// Package testfixtures provides service types used by provider and
// registry tests. The source provider reads this file, so doc comments and
// directives here are part of the fixtures.
package testfixtures

import (
	"context"
	"errors"
	"time"
)

// OrderID identifies an order.
type OrderID string

// OrderLine is one line of an order.
type OrderLine struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"qty" validate:"gte=1"`
}

// Order is a stored order.
type Order struct {
	ID      OrderID     `json:"id"`
	Lines   []OrderLine `json:"lines"`
	Created time.Time   `json:"created"`
	Note    string      `json:"note,omitempty"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T    `json:"items"`
	Next  string `json:"next,omitempty"`
}

// Repo stores items keyed by string.
type Repo[T any] struct {
	items map[string]T
	keys  []string
}

// Save stores an item under key.
func (r *Repo[T]) Save(key string, item T) error {
	if r.items == nil {
		r.items = make(map[string]T)
	}
	if _, ok := r.items[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.items[key] = item
	return nil
}

// SaveAll stores several items.
func (r *Repo[T]) SaveAll(items map[string]T) (int, error) {
	for k, v := range items {
		if err := r.Save(k, v); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

// List returns stored items in insertion order.
//
//methodscan:tag storage Generic storage operations
func (r *Repo[T]) List(limit int) Page[T] {
	var p Page[T]
	for _, k := range r.keys {
		if limit > 0 && len(p.Items) == limit {
			p.Next = k
			break
		}
		p.Items = append(p.Items, r.items[k])
	}
	return p
}

// Count returns the number of stored items.
func (r *Repo[T]) Count() int { return len(r.items) }

// ErrNotFound is returned for unknown orders.
var ErrNotFound = errors.New("order not found")

// Orders is a service over an order repository.
type Orders struct {
	Repo[Order]
}

// AddOrder creates an order from its lines.
// Lines are stored in the order given.
func (o *Orders) AddOrder(ctx context.Context, id OrderID, lines []OrderLine) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	order := Order{ID: id, Lines: lines}
	if err := o.Save(string(id), order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// Cancel removes an order.
//
//methodscan:name cancelOrder
func (o *Orders) Cancel(id OrderID) error {
	if _, ok := o.items[string(id)]; !ok {
		return ErrNotFound
	}
	delete(o.items, string(id))
	return nil
}

// Reset drops all orders.
//
//methodscan:ignore
func (o *Orders) Reset() {
	o.items = nil
	o.keys = nil
}

// Watch is not exposable.
func (o *Orders) Watch(ch chan Order) {}

// Entry is a keyed value.
type Entry[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// Index maps keys to entries of itself.
type Index[K comparable, V any] struct {
	Entries []Entry[K, V] `json:"entries"`
}

// Lookup finds a value.
func (ix Index[K, V]) Lookup(key K) (V, bool) {
	var zero V
	return zero, false
}

// Merge combines two indexes.
func (ix Index[K, V]) Merge(other Index[K, V], prefer map[K]V) Index[K, V] {
	return ix
}

// Catalog exposes an index of prices by SKU.
type Catalog struct {
	Index[string, float64]
}
