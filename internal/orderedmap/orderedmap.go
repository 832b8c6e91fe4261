// Package orderedmap provides a map that iterates its elements in insertion
// order.
package orderedmap

// Map is a map datastructure that allows accessing it's element in a
// fixed order.
type Map[K comparable, V any] struct {
	keys    []K
	m       map[K]V
	zeroval V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		m: map[K]V{},
	}
}

// EnqueueIfNotExist adds val to the map if K does not exist.
func (m *Map[K, V]) EnqueueIfNotExist(key K, val V) (added bool) {
	if _, exist := m.m[key]; exist {
		return false
	}

	m.keys = append(m.keys, key)
	m.m[key] = val

	return true
}

// Set sets the value of key. A new key is appended to the end, the position
// of an existing key does not change.
func (m *Map[K, V]) Set(key K, val V) {
	if _, exist := m.m[key]; !exist {
		m.keys = append(m.keys, key)
	}

	m.m[key] = val
}

// Get returns the value for the given key.
// If the key does not exist, the zero value is returned
func (m *Map[K, V]) Get(key K) V {
	v, exist := m.m[key]
	if !exist {
		return m.zeroval
	}

	return v
}

// Len returns the number of elements in the maps.
func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Foreach itereates through the map in order.
// When fn returns false the iteration is aborted.
func (m *Map[K, V]) Foreach(fn func(K, V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.m[k]) {
			return
		}
	}
}

// Keys returns a new slice containing the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	result := make([]K, len(m.keys))
	copy(result, m.keys)

	return result
}

// AsSlice returns a new slice containing the elements of the orderedMap in
// order.
func (m *Map[K, V]) AsSlice() []V {
	result := make([]V, 0, len(m.keys))

	for _, k := range m.keys {
		result = append(result, m.m[k])
	}

	return result
}
