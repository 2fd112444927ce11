package expansion

import (
	"mica/internal/source"
)

type uniqueEntry[V any] struct {
	loc source.Span
	val V
}

// UniqueMap is an insertion-ordered map that rejects duplicate keys,
// reporting the previous binding's location so callers can emit
// "previously defined here" notes.
type UniqueMap[V any] struct {
	order []string
	items map[string]uniqueEntry[V]
}

func NewUniqueMap[V any]() *UniqueMap[V] {
	return &UniqueMap[V]{items: make(map[string]uniqueEntry[V])}
}

// Add inserts the binding. On a duplicate key nothing changes and the
// previous location is returned with ok=false.
func (m *UniqueMap[V]) Add(key string, loc source.Span, v V) (source.Span, bool) {
	if prev, exists := m.items[key]; exists {
		return prev.loc, false
	}
	m.items[key] = uniqueEntry[V]{loc: loc, val: v}
	m.order = append(m.order, key)
	return source.Span{}, true
}

// Set inserts or overwrites without duplicate detection.
func (m *UniqueMap[V]) Set(key string, loc source.Span, v V) {
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = uniqueEntry[V]{loc: loc, val: v}
}

func (m *UniqueMap[V]) Get(key string) (V, bool) {
	e, ok := m.items[key]
	return e.val, ok
}

func (m *UniqueMap[V]) GetLoc(key string) (source.Span, bool) {
	e, ok := m.items[key]
	return e.loc, ok
}

func (m *UniqueMap[V]) Contains(key string) bool {
	_, ok := m.items[key]
	return ok
}

func (m *UniqueMap[V]) Remove(key string) (V, bool) {
	e, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return e.val, true
}

func (m *UniqueMap[V]) Len() int {
	return len(m.order)
}

// Keys returns keys in insertion order.
func (m *UniqueMap[V]) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Each visits entries in insertion order.
func (m *UniqueMap[V]) Each(fn func(key string, loc source.Span, v V)) {
	for _, k := range m.order {
		e := m.items[k]
		fn(k, e.loc, e.val)
	}
}
